// Package verifier derives and checks salted one-way encodings of knowledge
// factors (credential serial numbers and secret answers).
//
// Encodings use argon2id in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// Parameters travel with each encoding, so raising them later does not
// invalidate hashes written earlier.
package verifier

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Params are the argon2id cost parameters.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams: 64 MiB, 1 pass, 4 lanes.
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  1,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// Verifier hashes and verifies knowledge factors. It is safe for concurrent use.
type Verifier struct {
	params Params
	rand   io.Reader
}

type Option func(*Verifier)

func WithParams(p Params) Option {
	return func(v *Verifier) {
		v.params = p
	}
}

// WithRandom replaces the salt source. Tests use it for deterministic salts.
func WithRandom(r io.Reader) Option {
	return func(v *Verifier) {
		v.rand = r
	}
}

func New(opts ...Option) *Verifier {
	v := &Verifier{params: DefaultParams, rand: rand.Reader}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Hash returns a fresh salted encoding. Two calls with the same input return
// different encodings that both verify.
func (v *Verifier) Hash(secret string) (string, error) {
	salt := make([]byte, v.params.SaltLength)
	if _, err := io.ReadFull(v.rand, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(secret), salt, v.params.Iterations, v.params.Memory, v.params.Parallelism, v.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		v.params.Memory, v.params.Iterations, v.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether candidate matches the stored encoding. Malformed
// encodings return false; Verify never panics or errors.
func (v *Verifier) Verify(candidate, encoded string) bool {
	p, salt, key, ok := decode(encoded)
	if !ok {
		return false
	}
	got := argon2.IDKey([]byte(candidate), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1
}

func decode(encoded string) (Params, []byte, []byte, bool) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, nil, false
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return Params{}, nil, nil, false
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 || p.Memory > 1<<22 {
		return Params{}, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, false
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > 128 {
		return Params{}, nil, nil, false
	}
	return p, salt, key, true
}

// NormalizeSerial trims surrounding whitespace. Serials are otherwise exact.
func NormalizeSerial(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeSecret trims, collapses inner whitespace and case-folds, so
// "  Maria  Silva" and "maria silva" are the same answer.
func NormalizeSecret(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
