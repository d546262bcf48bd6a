package transport

import "testing"

func TestUint24RoundTrip(t *testing.T) {
	b := make([]byte, 3)
	putUint24(b, 0xabcdef)
	v, ok := getUint24(b)
	if !ok || v != 0xabcdef {
		t.Fatalf("got %x,%v want abcdef,true", v, ok)
	}
}

func TestGetUint32Short(t *testing.T) {
	if _, ok := getUint32([]byte{1, 2, 3}); ok {
		t.Fatal("expected short buffer to fail")
	}
}

func TestBytes16RoundTrip(t *testing.T) {
	b := make([]byte, 16)
	n := putBytes16(b, []byte("hello"))
	got, m, ok := getBytes16(b)
	if !ok || m != n || string(got) != "hello" {
		t.Fatalf("got %q,%d,%v", got, m, ok)
	}
}

func TestTime16SmallValuesExact(t *testing.T) {
	for _, v := range []uint64{0, 1, 42, 2047} {
		enc := encodeTime16(v)
		if enc != uint16(v) {
			t.Fatalf("encodeTime16(%d) = %d, want literal %d", v, enc, v)
		}
		if got := decodeTime16(enc); got != v {
			t.Fatalf("decodeTime16(encodeTime16(%d)) = %d", v, got)
		}
	}
}

func TestTime16LargeValuesApproximate(t *testing.T) {
	// Beyond the 11-bit mantissa, encoding loses precision (floating point)
	// but decoding an encoded value must never exceed the original by more
	// than the resolution at that exponent.
	for _, v := range []uint64{2048, 100000, 1 << 20, 1 << 30} {
		enc := encodeTime16(v)
		dec := decodeTime16(enc)
		if dec > v {
			t.Fatalf("decodeTime16(encodeTime16(%d)) = %d exceeds original", v, dec)
		}
	}
}

func TestTime16ZeroExponentIsLiteral(t *testing.T) {
	if decodeTime16(0x07FF) != 0x07FF {
		t.Fatal("top 5 bits zero must decode to the literal low 11 bits")
	}
}

func TestTime16NonZeroExponentImplicitBit(t *testing.T) {
	// exponent=1, mantissa=0 => (0x800|0)<<0 = 0x800
	v := uint16(1)<<time16MantissaBits | 0
	if got := decodeTime16(v); got != 0x800 {
		t.Fatalf("got %d want 0x800", got)
	}
}
