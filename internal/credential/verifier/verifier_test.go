package verifier

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndVerify(t *testing.T) {
	v := New(WithParams(fastParams))

	h1, err := v.Hash("S-001")
	require.NoError(t, err)
	h2, err := v.Hash("S-001")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "salted encodings must differ")
	assert.True(t, v.Verify("S-001", h1))
	assert.True(t, v.Verify("S-001", h2))
	assert.False(t, v.Verify("S-002", h1))
	assert.True(t, strings.HasPrefix(h1, "$argon2id$v=19$m=1024,t=1,p=1$"))
}

func TestHashNeverContainsPlaintext(t *testing.T) {
	v := New(WithParams(fastParams))
	h, err := v.Hash("guardian-maria")
	require.NoError(t, err)
	assert.NotContains(t, h, "guardian-maria")
}

func TestVerifyUsesEncodedParams(t *testing.T) {
	old := New(WithParams(fastParams))
	h, err := old.Hash("secret")
	require.NoError(t, err)

	stronger := New(WithParams(Params{Memory: 2048, Iterations: 2, Parallelism: 2, SaltLength: 16, KeyLength: 32}))
	assert.True(t, stronger.Verify("secret", h))
}

func TestVerifyMalformedReturnsFalse(t *testing.T) {
	v := New(WithParams(fastParams))
	for _, encoded := range []string{
		"",
		"plain",
		"$2a$10$bcrypthashlookalike",
		"$argon2id$v=19$m=1024,t=1,p=1$!!notbase64$abc",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$$a2V5",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
	} {
		assert.NotPanics(t, func() {
			assert.False(t, v.Verify("anything", encoded), encoded)
		})
	}
}

func TestDeterministicSalt(t *testing.T) {
	salt := bytes.Repeat([]byte{0x01}, 32)
	a := New(WithParams(fastParams), WithRandom(bytes.NewReader(salt)))
	b := New(WithParams(fastParams), WithRandom(bytes.NewReader(salt)))

	ha, err := a.Hash("x")
	require.NoError(t, err)
	hb, err := b.Hash("x")
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHashFailsWhenRandomExhausted(t *testing.T) {
	v := New(WithParams(fastParams), WithRandom(bytes.NewReader(nil)))
	_, err := v.Hash("x")
	assert.Error(t, err)
}

func TestConcurrentVerify(t *testing.T) {
	v := New(WithParams(fastParams))
	h, err := v.Hash("S-001")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			assert.True(t, v.Verify("S-001", h))
		})
	}
	wg.Wait()
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "maria", NormalizeSecret("  Maria "))
	assert.Equal(t, "maria silva", NormalizeSecret("MARIA   Silva"))
	assert.Equal(t, NormalizeSecret("Maria"), NormalizeSecret("maria"))
	assert.Equal(t, "S-001", NormalizeSerial(" S-001\n"))
	assert.NotEqual(t, NormalizeSerial("s-001"), NormalizeSerial("S-001"))
}
