package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		s, err := NewSealer("master")
		require.NoError(t, err)

		sealed, err := s.Seal("private-key")
		require.NoError(t, err)
		assert.NotContains(t, string(sealed), "private-key")

		plain, err := s.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "private-key", plain)
	})

	t.Run("nonce differs per seal", func(t *testing.T) {
		s, _ := NewSealer("master")
		a, _ := s.Seal("x")
		b, _ := s.Seal("x")
		assert.NotEqual(t, a, b)
	})

	t.Run("wrong key", func(t *testing.T) {
		s, _ := NewSealer("master")
		other, _ := NewSealer("other")
		sealed, _ := s.Seal("x")

		_, err := other.Open(sealed)
		assert.ErrorIs(t, err, ErrOpenFailed)
	})

	t.Run("short value", func(t *testing.T) {
		s, _ := NewSealer("master")
		_, err := s.Open([]byte("abc"))
		assert.ErrorIs(t, err, ErrSealedTooShort)
	})

	t.Run("empty master key", func(t *testing.T) {
		_, err := NewSealer("")
		assert.ErrorIs(t, err, ErrEmptyMasterKey)
	})
}
