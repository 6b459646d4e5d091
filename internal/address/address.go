// Package address validates and normalizes eCash cashaddr addresses.
package address

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/kaspanet/kaspad/util/bech32"
	"github.com/mr-tron/base58"
)

// DefaultPrefix is the mainnet cashaddr prefix.
const DefaultPrefix = "ecash"

// Type is the output script type an address pays to.
type Type byte

const (
	P2PKH Type = 0x00
	P2SH  Type = 0x08
)

// hashLen is the only payload size in use (160-bit hash).
const hashLen = 20

// legacy base58check version bytes
const (
	legacyP2PKH byte = 0x00
	legacyP2SH  byte = 0x05
)

var (
	// ErrInvalid is returned for strings that are not valid addresses.
	ErrInvalid = errors.New("invalid address")

	// ErrWrongPrefix is returned for valid cashaddrs of another network.
	ErrWrongPrefix = errors.New("address prefix mismatch")
)

// Address is a decoded cashaddr.
type Address struct {
	Prefix string
	Type   Type
	Hash   []byte
}

// Parse decodes a cashaddr. A missing prefix is assumed to be the expected one.
func Parse(s, prefix string) (Address, error) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalid)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.Contains(clean, ":") {
		clean = prefix + ":" + clean
	}

	gotPrefix, payload, version, err := bech32.Decode(clean)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if gotPrefix != prefix {
		return Address{}, fmt.Errorf("%w: got %s, want %s", ErrWrongPrefix, gotPrefix, prefix)
	}
	t := Type(version)
	if t != P2PKH && t != P2SH {
		return Address{}, fmt.Errorf("%w: unsupported version byte %d", ErrInvalid, version)
	}
	if len(payload) != hashLen {
		return Address{}, fmt.Errorf("%w: payload length %d", ErrInvalid, len(payload))
	}
	return Address{Prefix: gotPrefix, Type: t, Hash: payload}, nil
}

// FromLegacy converts a base58check legacy address into cashaddr form.
func FromLegacy(s, prefix string) (Address, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(raw) != 1+hashLen+4 {
		return Address{}, fmt.Errorf("%w: legacy length %d", ErrInvalid, len(raw))
	}
	body, sum := raw[:1+hashLen], raw[1+hashLen:]
	if !bytes.Equal(checksum(body), sum) {
		return Address{}, fmt.Errorf("%w: legacy checksum mismatch", ErrInvalid)
	}

	var t Type
	switch body[0] {
	case legacyP2PKH:
		t = P2PKH
	case legacyP2SH:
		t = P2SH
	default:
		return Address{}, fmt.Errorf("%w: legacy version %d", ErrInvalid, body[0])
	}
	hash := make([]byte, hashLen)
	copy(hash, body[1:])
	return Address{Prefix: prefix, Type: t, Hash: hash}, nil
}

// String encodes the address as a prefixed cashaddr.
func (a Address) String() string {
	return bech32.Encode(a.Prefix, a.Hash, byte(a.Type))
}

// Legacy encodes the address as base58check.
func (a Address) Legacy() string {
	version := legacyP2PKH
	if a.Type == P2SH {
		version = legacyP2SH
	}
	body := append([]byte{version}, a.Hash...)
	return base58.Encode(append(body, checksum(body)...))
}

// ScriptType returns the script type name used by indexer subscriptions.
func (a Address) ScriptType() string {
	if a.Type == P2SH {
		return "p2sh"
	}
	return "p2pkh"
}

// ScriptPayload returns the hex hash the output script commits to.
func (a Address) ScriptPayload() string {
	return hex.EncodeToString(a.Hash)
}

// OutputScript returns the full hex output script.
func (a Address) OutputScript() string {
	if a.Type == P2SH {
		return "a914" + a.ScriptPayload() + "87"
	}
	return "76a914" + a.ScriptPayload() + "88ac"
}

// Validator checks user-entered destination addresses.
type Validator struct {
	Prefix      string
	AllowLegacy bool
}

// Normalize validates s and returns its canonical cashaddr form.
func (v Validator) Normalize(s string) (string, error) {
	a, err := Parse(s, v.Prefix)
	if err == nil {
		return a.String(), nil
	}
	if v.AllowLegacy && !strings.Contains(s, ":") {
		if la, lerr := FromLegacy(s, v.Prefix); lerr == nil {
			return la.String(), nil
		}
	}
	return "", err
}

func checksum(body []byte) []byte {
	first := sha256.Sum256(body)
	second := sha256.Sum256(first[:])
	return second[:4]
}
