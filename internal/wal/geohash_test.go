package wal

import "testing"

func TestEncodeGeoHashDeg_DeterministicAndDistinguishesPoints(t *testing.T) {
	a := encodeGeoHashDeg(46.6, 13.3, 30)
	again := encodeGeoHashDeg(46.6, 13.3, 30)
	if a != again {
		t.Fatalf("encoding the same point twice produced different hashes: %d vs %d", a, again)
	}

	b := encodeGeoHashDeg(-33.8, 151.2, 30)
	if a == b {
		t.Fatal("distinct coordinates hashed to the same value")
	}

	if a>>30 != 0 {
		t.Fatalf("hash exceeds requested bit width: %d", a)
	}
}

func TestEncodeGeoHashDeg_MoreBitsRefinesPrefix(t *testing.T) {
	coarse := encodeGeoHashDeg(46.6, 13.3, 10)
	fine := encodeGeoHashDeg(46.6, 13.3, 30)
	if coarse != fine>>20 {
		t.Fatalf("coarse hash %d is not the top 10 bits of the fine hash %d", coarse, fine)
	}
}

func TestDecodeGeoHashStr_InvalidChar(t *testing.T) {
	if _, err := decodeGeoHashStr("sp0a2w", 30); err == nil {
		t.Fatal("expected error for invalid geohash character")
	}
}

func TestDecodeGeoHashStr_TruncatesToRequestedBits(t *testing.T) {
	full, err := decodeGeoHashStr("sp052w", 30)
	if err != nil {
		t.Fatalf("decode full: %v", err)
	}
	truncated, err := decodeGeoHashStr("sp052w", 10)
	if err != nil {
		t.Fatalf("decode truncated: %v", err)
	}
	if truncated != full>>20 {
		t.Fatalf("truncated hash %d does not match top 10 bits of full hash %d", truncated, full)
	}
}

func TestParseLong256Hex_FourWords(t *testing.T) {
	a, b, c, d, err := parseLong256Hex("0x1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a != 1 || b != 0 || c != 0 || d != 0 {
		t.Fatalf("expected only the low word set, got a=%d b=%d c=%d d=%d", a, b, c, d)
	}
}

func TestParseLong256Hex_AllFourWords(t *testing.T) {
	hex := "0000000000000004" + // d (most significant 16 hex digits)
		"0000000000000003" +
		"0000000000000002" +
		"0000000000000001" // a (least significant)
	a, b, c, d, err := parseLong256Hex(hex)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a != 1 || b != 2 || c != 3 || d != 4 {
		t.Fatalf("unexpected words: a=%d b=%d c=%d d=%d", a, b, c, d)
	}
}

func TestParseLong256Hex_TooLong(t *testing.T) {
	hex := make([]byte, 65)
	for i := range hex {
		hex[i] = '1'
	}
	if _, _, _, _, err := parseLong256Hex(string(hex)); err == nil {
		t.Fatal("expected error for hex literal longer than 64 digits")
	}
}
