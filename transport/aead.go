package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"hash"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// packetAEAD seals and opens 1-RTT packet payloads using a secret
// crypto/tls exported via QUICSetReadSecret/QUICSetWriteSecret, per the
// QUIC-TLS key schedule (RFC 9001 5.1): "quic key" and "quic iv" derived
// from the secret with HKDF-Expand-Label.
type packetAEAD struct {
	aead cipher.AEAD
	iv   []byte
}

func newPacketAEAD(suite uint16, secret []byte) (*packetAEAD, error) {
	newHash, keyLen := suiteHashAndKeyLen(suite)
	key := hkdfExpandLabel(newHash, secret, "quic key", keyLen)
	iv := hkdfExpandLabel(newHash, secret, "quic iv", 12)

	var a cipher.AEAD
	var err error
	if suite == tls.TLS_CHACHA20_POLY1305_SHA256 {
		a, err = chacha20poly1305.New(key)
	} else {
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			a, err = cipher.NewGCM(block)
		}
	}
	if err != nil {
		return nil, err
	}
	return &packetAEAD{aead: a, iv: iv}, nil
}

func suiteHashAndKeyLen(suite uint16) (func() hash.Hash, int) {
	switch suite {
	case tls.TLS_AES_256_GCM_SHA384:
		return sha512.New384, 32
	case tls.TLS_CHACHA20_POLY1305_SHA256:
		return sha256.New, chacha20poly1305.KeySize
	default: // TLS_AES_128_GCM_SHA256
		return sha256.New, 16
	}
}

// hkdfExpandLabel implements RFC 8446 7.1's HKDF-Expand-Label with an empty
// context, the construction RFC 9001 5.1 reuses for "quic key"/"quic iv".
func hkdfExpandLabel(newHash func() hash.Hash, secret []byte, label string, length int) []byte {
	full := "tls13 " + label
	info := make([]byte, 0, 2+1+len(full)+1)
	info = append(info, byte(length>>8), byte(length))
	info = append(info, byte(len(full)))
	info = append(info, full...)
	info = append(info, 0) // empty context
	out := make([]byte, length)
	io.ReadFull(hkdf.Expand(newHash, secret, info), out)
	return out
}

// nonce xors the packet number into the low 8 bytes of the derived IV, per
// RFC 9001 5.3.
func (a *packetAEAD) nonce(pn uint64) []byte {
	nonce := append([]byte(nil), a.iv...)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(pn >> (8 * i))
	}
	return nonce
}

// seal encrypts payload into a new buffer, authenticating header as
// associated data, and returns a copy of header followed by the sealed
// payload and tag.
func (a *packetAEAD) seal(header, payload []byte, pn uint64) []byte {
	return a.aead.Seal(append([]byte(nil), header...), a.nonce(pn), payload, header)
}

// open authenticates header and decrypts ciphertext, returning the
// plaintext payload.
func (a *packetAEAD) open(header, ciphertext []byte, pn uint64) ([]byte, error) {
	return a.aead.Open(ciphertext[:0], a.nonce(pn), ciphertext, header)
}
