package transport

import "testing"

func TestBuildParseLongHeaderRoundTrip(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	hdr := buildLongHeader(packetTypeClientInitial, dcid, 42, 0xff000001)
	p, n, ok := parsePacket(hdr)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if n != len(hdr) {
		t.Fatalf("consumed %d of %d", n, len(hdr))
	}
	if p.typ != packetTypeClientInitial {
		t.Fatalf("got type %v, want client_initial", p.typ)
	}
	if p.packetNumber != 42 {
		t.Fatalf("packetNumber = %d, want 42", p.packetNumber)
	}
	if p.header.version != 0xff000001 {
		t.Fatalf("version = %x", p.header.version)
	}
	if string(p.header.dcid) != string(dcid) {
		t.Fatalf("dcid = %x, want %x", p.header.dcid, dcid)
	}
}

func TestBuildParseShortHeaderRoundTrip(t *testing.T) {
	dcid := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	hdr := buildShortHeader(dcid, true, 7)
	p, n, ok := parsePacket(hdr)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if n != len(hdr) {
		t.Fatalf("consumed %d of %d", n, len(hdr))
	}
	if p.typ != packetTypeShort {
		t.Fatalf("got type %v, want short", p.typ)
	}
	if p.packetNumber != 7 {
		t.Fatalf("packetNumber = %d, want 7", p.packetNumber)
	}
	if string(p.header.dcid) != string(dcid) {
		t.Fatalf("dcid = %x, want %x", p.header.dcid, dcid)
	}
}

func TestShortHeaderOmittedCID(t *testing.T) {
	hdr := buildShortHeader(nil, false, 1)
	p, _, ok := parsePacket(hdr)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if len(p.header.dcid) != 0 {
		t.Fatalf("expected no dcid, got %x", p.header.dcid)
	}
}

func TestParseVersionNegotiationCapturesSupportedVersions(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	hdr := buildLongHeader(packetTypeVersionNegotiation, dcid, 0, 0)
	versions := []uint32{0xff000001, 0x50435130}
	for _, v := range versions {
		tmp := make([]byte, 4)
		putUint32(tmp, v)
		hdr = append(hdr, tmp...)
	}
	p, n, ok := parsePacket(hdr)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if n != len(hdr) {
		t.Fatalf("consumed %d of %d", n, len(hdr))
	}
	if len(p.supportedVersions) != len(versions) {
		t.Fatalf("got %v, want %v", p.supportedVersions, versions)
	}
	for i, v := range versions {
		if p.supportedVersions[i] != v {
			t.Fatalf("version[%d] = %x, want %x", i, p.supportedVersions[i], v)
		}
	}
}

func TestShortHeaderFixedBits(t *testing.T) {
	hdr := buildShortHeader([]byte{1, 2, 3, 4, 5, 6, 7, 8}, false, 1)
	if hdr[0]&0x18 != 0x18 {
		t.Fatalf("first byte %08b missing fixed bits 4:3 = 11", hdr[0])
	}
	if hdr[0]&0x07 != 0x03 {
		t.Fatalf("first byte %08b missing fixed low bits 011", hdr[0])
	}
}

func TestParseShortHeaderRejectsBadFixedBits(t *testing.T) {
	hdr := buildShortHeader([]byte{1, 2, 3, 4, 5, 6, 7, 8}, false, 1)
	hdr[0] &^= 0x18 // clear the fixed "11" bits
	if _, _, ok := parsePacket(hdr); ok {
		t.Fatal("expected parse to reject a short header with missing fixed bits")
	}
}

func TestParsePacketRejectsEmptyInput(t *testing.T) {
	if _, _, ok := parsePacket(nil); ok {
		t.Fatal("expected empty input to fail")
	}
}

func TestPacketTypeIsLongHeader(t *testing.T) {
	if !packetTypeClientInitial.isLongHeader() {
		t.Fatal("client_initial must be a long header type")
	}
	if packetTypeShort.isLongHeader() {
		t.Fatal("short must not be a long header type")
	}
}

func TestPacketTypeIsCleartext(t *testing.T) {
	for _, typ := range []packetType{
		packetTypeVersionNegotiation, packetTypeClientInitial, packetTypeServerStatelessRetry,
		packetTypeServerCleartext, packetTypeClientCleartext,
	} {
		if !typ.isCleartext() {
			t.Errorf("%v should be cleartext", typ)
		}
	}
	if packetTypeShort.isCleartext() {
		t.Error("1-RTT short header must not be cleartext")
	}
}

func TestPeekHeaderIdentifiesClientInitial(t *testing.T) {
	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	hdr := buildLongHeader(packetTypeClientInitial, dcid, 0, 0xff000001)
	gotDcid, _, isInitial := PeekHeader(hdr)
	if !isInitial {
		t.Fatal("expected client_initial to be recognized")
	}
	if string(gotDcid) != string(dcid) {
		t.Fatalf("dcid = %x, want %x", gotDcid, dcid)
	}
}

func TestPeekHeaderRejectsNonInitial(t *testing.T) {
	hdr := buildShortHeader(nil, false, 1)
	_, _, isInitial := PeekHeader(hdr)
	if isInitial {
		t.Fatal("a short-header packet must never be treated as client_initial")
	}
}
