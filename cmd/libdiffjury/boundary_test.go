package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffjury/diffjury/internal/analysis"
)

func strPtr(s string) *string { return &s }

func TestAnalyzeRejectsBadArguments(t *testing.T) {
	key := strPtr("sk-test")
	url := strPtr("https://example.com/repo.git")
	older := strPtr("abc123")
	newer := strPtr("def456")

	t.Run("NULL in any position", func(t *testing.T) {
		assert.False(t, callAnalyze(nil, url, older, newer))
		assert.False(t, callAnalyze(key, nil, older, newer))
		assert.False(t, callAnalyze(key, url, nil, newer))
		assert.False(t, callAnalyze(key, url, older, nil))
	})

	t.Run("invalid UTF-8 in any position", func(t *testing.T) {
		bad := strPtr("\xff\xfe")
		assert.False(t, callAnalyze(bad, url, older, newer))
		assert.False(t, callAnalyze(key, bad, older, newer))
		assert.False(t, callAnalyze(key, url, bad, newer))
		assert.False(t, callAnalyze(key, url, older, bad))
	})
}

func TestAskRejectsBadArguments(t *testing.T) {
	prompt := strPtr("what changed?")
	key := strPtr("sk-test")
	bad := strPtr("\xff\xfe")

	_, ok := callAsk(nil, key)
	assert.False(t, ok)

	_, ok = callAsk(prompt, nil)
	assert.False(t, ok)

	_, ok = callAsk(bad, key)
	assert.False(t, ok)

	_, ok = callAsk(prompt, bad)
	assert.False(t, ok)
}

func TestReleaseNilIsNoop(t *testing.T) {
	releaseNilResult()
	releaseNilString()
}

func TestStringRoundTrip(t *testing.T) {
	assert.Equal(t, "forty-two", stringRoundTrip("forty-two"))
	assert.Equal(t, "", stringRoundTrip(""))
}

func TestResultReleaseRoundTrip(t *testing.T) {
	resultReleaseRoundTrip(`[]`)
	resultReleaseRoundTrip(`[{"path":"a.go","is_good":true}]`)
}

func TestDetailEntriesShape(t *testing.T) {
	details := []analysis.FileVerdict{
		{Path: "good.go", IsGood: true},
		{Path: "bad.go", IsGood: false, Issue: "off-by-one in loop bound"},
		{Path: "gone.go", IsGood: true, Skipped: true, SkipReason: "file deleted"},
	}

	out, err := json.Marshal(detailEntries(details))
	require.NoError(t, err)

	// Fixed entry shape: path and is_good always, issue_description only for
	// bad files, nothing else.
	assert.JSONEq(t, `[
		{"path": "good.go", "is_good": true},
		{"path": "bad.go", "is_good": false, "issue_description": "off-by-one in loop bound"},
		{"path": "gone.go", "is_good": true}
	]`, string(out))

	assert.NotContains(t, string(out), "skipped")
	assert.NotContains(t, string(out), "skip_reason")

	empty, err := json.Marshal(detailEntries(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}
