package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "exactly-10", TruncateString("exactly-10", 10))
	assert.Equal(t, "long st...", TruncateString("long string here", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "", TruncateString("anything", 0))
}

func TestShortCommit(t *testing.T) {
	full := "0123456789abcdef0123456789abcdef01234567"
	assert.Equal(t, "0123456", ShortCommit(full))

	assert.Equal(t, "main", ShortCommit("main"))
	assert.Equal(t, "v1.2.3", ShortCommit("v1.2.3"))
	assert.Equal(t, "deadbeef", ShortCommit("deadbeef"))
}
