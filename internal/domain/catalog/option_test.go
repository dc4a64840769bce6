package catalog

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestIdentityHash(t *testing.T) {
	t.Run("empty snapshot hashes the product id alone", func(t *testing.T) {
		assert.Equal(t, md5hex("[[],42]"), IdentityHash(nil, 42))
		assert.Equal(t, md5hex("[[],42]"), IdentityHash(AttributeSnapshot{}, 42))
	})

	t.Run("keys and multi values are sorted", func(t *testing.T) {
		snapshot := AttributeSnapshot{
			"pa_size":  {"m", "l"},
			"pa_color": {"blue"},
		}
		expected := md5hex(`[{"pa_color":"blue","pa_size":["l","m"]},7]`)
		assert.Equal(t, expected, IdentityHash(snapshot, 7))
	})

	t.Run("is deterministic", func(t *testing.T) {
		a := AttributeSnapshot{"pa_color": {"red"}, "pa_size": {"s"}}
		b := AttributeSnapshot{"pa_size": {"s"}, "pa_color": {"red"}}
		for i := 0; i < 5; i++ {
			assert.Equal(t, IdentityHash(a, 10), IdentityHash(b, 10))
		}
	})

	t.Run("distinct inputs give distinct hashes", func(t *testing.T) {
		inputs := []struct {
			snapshot AttributeSnapshot
			product  int64
		}{
			{AttributeSnapshot{"pa_color": {"red"}}, 1},
			{AttributeSnapshot{"pa_color": {"red"}}, 2},
			{AttributeSnapshot{"pa_color": {"blue"}}, 1},
			{AttributeSnapshot{"pa_colour": {"red"}}, 1},
			{nil, 1},
		}
		seen := map[string]bool{}
		for _, in := range inputs {
			h := IdentityHash(in.snapshot, in.product)
			assert.Len(t, h, 32)
			assert.False(t, seen[h], "collision for %v/%d", in.snapshot, in.product)
			seen[h] = true
		}
	})

	t.Run("empty values are ignored", func(t *testing.T) {
		assert.Equal(t, IdentityHash(nil, 3), IdentityHash(AttributeSnapshot{"pa_color": {""}}, 3))
	})
}

func TestSnapshotData(t *testing.T) {
	assert.Equal(t, "", SnapshotData(nil))
	data := SnapshotData(AttributeSnapshot{"pa_color": {"red"}, "pa_size": {"xl", "l"}})
	assert.Equal(t, `{"pa_color":"red","pa_size":["l","xl"]}`, data)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"red"}, decoded["pa_color"])
	assert.Equal(t, []string{"l", "xl"}, decoded["pa_size"])

	empty, err := DecodeSnapshot("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = DecodeSnapshot("{not json")
	assert.Error(t, err)
}
