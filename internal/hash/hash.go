// Package hash provides the content-addressed identity type used for both
// events and ref values: a validated, fixed-width, lowercase-hex SHA-256
// digest with a reserved zero sentinel.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	rcerrors "github.com/refchain/refchain/internal/errors"
)

// Size is the length of a Hash's hexadecimal form.
const Size = 64

// EventDomain is the domain prefix for event content hashing.
// The version suffix enables future algorithm migration.
const EventDomain = "refchain/event/v1"

var zeroHex = strings.Repeat("0", Size)

// Hash is an immutable 64-character lowercase-hex digest. The zero value is
// the zero hash: the sentinel meaning "no prior version". Hashes are
// comparable with == and ordered lexicographically.
type Hash struct {
	// s is either empty (the zero hash) or exactly 64 lowercase hex
	// characters. Parse normalizes the all-zeros string to empty so that
	// Hash{} == MustParse(zeroHex) holds.
	s string
}

// Zero returns the zero hash sentinel.
func Zero() Hash {
	return Hash{}
}

// Parse validates s and returns it as a Hash. It fails with an
// INVALID_ARGUMENT error unless s is exactly 64 characters of [0-9a-f].
// Input is never truncated, padded, or case-folded.
func Parse(s string) (Hash, error) {
	if len(s) != Size {
		return Hash{}, rcerrors.NewInvalidArgument("hash.parse",
			fmt.Sprintf("hash must be %d characters, got %d", Size, len(s)))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Hash{}, rcerrors.NewInvalidArgument("hash.parse",
				fmt.Sprintf("invalid character %q at position %d", c, i))
		}
	}
	if s == zeroHex {
		return Hash{}, nil
	}
	return Hash{s: s}, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParse(s string) Hash {
	h, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return h
}

// IsZero reports whether h is the zero hash sentinel.
func (h Hash) IsZero() bool {
	return h.s == ""
}

// String returns the 64-character hex form. The zero hash renders as 64 '0'
// characters, so String round-trips through Parse for every Hash.
func (h Hash) String() string {
	if h.s == "" {
		return zeroHex
	}
	return h.s
}

// Compare returns -1, 0, or +1 ordering h and o lexicographically by their
// hex form.
func (h Hash) Compare(o Hash) int {
	return strings.Compare(h.String(), o.String())
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Sum computes a domain-separated SHA-256 digest.
// Format: SHA256(domain + 0x00 + data). The NUL separator prevents
// domain/data boundary ambiguity.
func Sum(domain string, data []byte) Hash {
	d := sha256.New()
	d.Write([]byte(domain))
	d.Write([]byte{0x00})
	d.Write(data)
	return Hash{s: hex.EncodeToString(d.Sum(nil))}
}
