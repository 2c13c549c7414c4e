package ulid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	id1 := Generate()
	id2 := Generate()

	assert.Len(t, id1, 26)
	assert.NotEqual(t, id1, id2)

	// Monotonic entropy keeps IDs generated in the same millisecond ordered
	assert.True(t, id1 < id2, "IDs should be lexicographically ordered")
}

func TestGenerateWithPrefix(t *testing.T) {
	id := RunID()
	assert.True(t, strings.HasPrefix(id, "run-"))

	vid := VerdictID()
	assert.True(t, strings.HasPrefix(vid, "fv-"))
}

func TestParse(t *testing.T) {
	t.Run("prefixed", func(t *testing.T) {
		id := RunID()
		prefix, raw, err := Parse(id)
		require.NoError(t, err)
		assert.Equal(t, PrefixRun, prefix)
		assert.Equal(t, strings.TrimPrefix(id, "run-"), raw.String())
	})

	t.Run("unprefixed", func(t *testing.T) {
		id := Generate()
		prefix, raw, err := Parse(id)
		require.NoError(t, err)
		assert.Empty(t, prefix)
		assert.Equal(t, id, raw.String())
	})

	t.Run("invalid", func(t *testing.T) {
		_, _, err := Parse("run-not-a-ulid")
		assert.Error(t, err)
	})
}

func TestTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := RunID()
	after := time.Now().Add(time.Second)

	ts, err := Time(id)
	require.NoError(t, err)
	assert.True(t, ts.After(before) && ts.Before(after), "embedded timestamp should be close to now")
}
