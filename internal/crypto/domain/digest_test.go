package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDigest(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	d := ComputeDigest([]byte("abc"))
	assert.Equal(t, want, d.Hex())
	assert.Equal(t, want, d.String())
	assert.False(t, d.IsZero())
	assert.True(t, Digest{}.IsZero())
}

func TestParseDigest(t *testing.T) {
	d := ComputeDigest([]byte("record"))

	t.Run("round trip", func(t *testing.T) {
		parsed, err := ParseDigest(d.Hex())
		require.NoError(t, err)
		assert.True(t, parsed.Equal(d))
	})

	t.Run("invalid hex", func(t *testing.T) {
		_, err := ParseDigest("zz")
		assert.Error(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := ParseDigest(strings.Repeat("ab", 16))
		assert.Error(t, err)
	})
}

func TestDigest_Equal(t *testing.T) {
	a := ComputeDigest([]byte("a"))
	b := ComputeDigest([]byte("b"))
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(b))
}
