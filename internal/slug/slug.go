// Package slug generates and validates the short identifiers links are
// addressed by.
package slug

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Alphabet omits 0, o, 1, l and i so generated slugs can be read aloud and
// retyped. It is lowercase because slugs are case-insensitive.
const Alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

const (
	DefaultLength = 7
	MinLength     = 5
	MaxLength     = 16
)

var (
	ErrInvalidSlug   = errors.New("invalid slug")
	ErrInvalidLength = errors.New("invalid slug length")
)

var pattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// reserved slugs would be shadowed by the service's own routes.
var reserved = map[string]struct{}{
	"api":  {},
	"ping": {},
}

// Generate returns length random characters from Alphabet.
func Generate(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	out := make([]byte, length)
	max := big.NewInt(int64(len(Alphabet)))

	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = Alphabet[n.Int64()]
	}

	return string(out), nil
}

// Normalize trims and lowercases a candidate. It must run before any
// uniqueness check or write.
func Normalize(candidate string) string {
	return strings.ToLower(strings.TrimSpace(candidate))
}

// Validate rejects candidates outside [a-zA-Z0-9-], blank candidates and
// reserved route names.
func Validate(candidate string) error {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSlug)
	}

	if !pattern.MatchString(trimmed) {
		return fmt.Errorf("%w: %q", ErrInvalidSlug, trimmed)
	}

	if _, ok := reserved[strings.ToLower(trimmed)]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidSlug, trimmed)
	}

	return nil
}

// Codec carries the configured generated length.
type Codec struct {
	length int
}

func NewCodec(length int) (*Codec, error) {
	if length < MinLength || length > MaxLength {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidLength, length, MinLength, MaxLength)
	}
	return &Codec{length: length}, nil
}

func (c *Codec) Length() int {
	return c.length
}

func (c *Codec) Generate() (string, error) {
	return Generate(c.length)
}

// Prepare normalizes a user-supplied slug and validates the result.
func (c *Codec) Prepare(candidate string) (string, error) {
	normalized := Normalize(candidate)
	if err := Validate(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
