package crypto

import (
	"bytes"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(PegPrefix, raw)
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if decoded.Prefix() != PegPrefix {
		t.Fatalf("prefix mismatch: %s", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("bytes mismatch: %x", decoded.Bytes())
	}
}

func TestPoolPrefixSurvivesEncoding(t *testing.T) {
	raw := make([]byte, 20)
	addr := NewAddress(PoolPrefix, raw)
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if decoded.Prefix() != PoolPrefix {
		t.Fatalf("prefix mismatch: %s", decoded.Prefix())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-a-bech32-address"); err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestNewAddressRequires20Bytes(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for short address")
		}
	}()
	NewAddress(PegPrefix, []byte{0x01})
}
