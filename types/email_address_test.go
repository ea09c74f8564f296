package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEmailAddress(t *testing.T) {
	addr, err := ParseEmailAddress("John Doe <john@example.com>")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	assert.Equal(t, "John Doe", addr.DisplayName)
	assert.Equal(t, "john@example.com", addr.AddrSpec)
	assert.Equal(t, "john", addr.Username())
	assert.Equal(t, "example.com", addr.Domain())
}

func TestParseEmailAddressBare(t *testing.T) {
	addr, err := ParseEmailAddress("john@example.com")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	assert.Equal(t, "", addr.DisplayName)
	assert.Equal(t, "john@example.com", addr.AddrSpec)
}

func TestParseEmailAddressInvalid(t *testing.T) {
	_, err := ParseEmailAddress("not an address")
	assert.Error(t, err)
	var parseErr *AddressParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Error(), "not an address")
}

func TestParseEmailAddressList(t *testing.T) {
	addrs, err := ParseEmailAddressList("one@example.com, Two <two@example.com>")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	assert.Len(t, addrs, 2)
	assert.Equal(t, "one@example.com", addrs[0].AddrSpec)
	assert.Equal(t, "Two", addrs[1].DisplayName)
}

func TestStringEncodesDisplayName(t *testing.T) {
	addr, _ := NewEmailAddress("Comma, Inc", "billing@example.com")
	assert.Equal(t, `"Comma, Inc" <billing@example.com>`, addr.String())

	// non-ASCII display names use RFC 2047 encoded words
	addr, _ = NewEmailAddress("Škofja Loka", "tourism@example.si")
	assert.Contains(t, addr.String(), "=?utf-8?")
	assert.Contains(t, addr.String(), "<tourism@example.si>")
}

func TestASCIIAddrSpecPunycodesDomain(t *testing.T) {
	addr, _ := NewEmailAddress("", "hello@büro.example.com")
	ascii, err := addr.ASCIIAddrSpec()
	if err != nil {
		t.Fatalf("ASCIIAddrSpec failed: %v", err)
	}
	assert.Equal(t, "hello@xn--bro-7ka.example.com", ascii)
}

func TestASCIIAddrSpecRejectsUnicodeLocalPart(t *testing.T) {
	addr, _ := NewEmailAddress("", "hellö@example.com")
	_, err := addr.ASCIIAddrSpec()
	assert.Error(t, err)
	var unsupported *UnsupportedFeatureError
	assert.True(t, errors.As(err, &unsupported))
	assert.Contains(t, err.Error(), "non-ASCII email username")
}

func TestIsZero(t *testing.T) {
	var zero EmailAddress
	assert.True(t, zero.IsZero())
	addr, _ := NewEmailAddress("", "a@b.c")
	assert.False(t, addr.IsZero())
}
