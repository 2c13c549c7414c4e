package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffjury/diffjury/internal/loggy"
)

func TestVerdictParser(t *testing.T) {
	parser := NewVerdictParser(loggy.NewNoopLogger())

	t.Run("bare JSON object", func(t *testing.T) {
		verdict, err := parser.Parse(`{"is_good": true, "issue": null}`)
		require.NoError(t, err)
		assert.True(t, verdict.IsGood)
		assert.Empty(t, verdict.Issue)
	})

	t.Run("bad verdict with issue", func(t *testing.T) {
		verdict, err := parser.Parse(`{"is_good": false, "issue": "SQL injection in query builder"}`)
		require.NoError(t, err)
		assert.False(t, verdict.IsGood)
		assert.Equal(t, "SQL injection in query builder", verdict.Issue)
	})

	t.Run("markdown fenced JSON", func(t *testing.T) {
		content := "Here is my verdict:\n```json\n{\"is_good\": false, \"issue\": \"off-by-one in loop bound\"}\n```"
		verdict, err := parser.Parse(content)
		require.NoError(t, err)
		assert.False(t, verdict.IsGood)
		assert.Equal(t, "off-by-one in loop bound", verdict.Issue)
	})

	t.Run("prose before JSON", func(t *testing.T) {
		content := "After reviewing the change carefully, I conclude:\n\n{\"is_good\": true, \"issue\": null}"
		verdict, err := parser.Parse(content)
		require.NoError(t, err)
		assert.True(t, verdict.IsGood)
	})

	t.Run("bad verdict without issue text gets placeholder", func(t *testing.T) {
		verdict, err := parser.Parse(`{"is_good": false, "issue": null}`)
		require.NoError(t, err)
		assert.False(t, verdict.IsGood)
		assert.Equal(t, "unspecified issue", verdict.Issue)
	})

	t.Run("missing is_good is unparseable", func(t *testing.T) {
		_, err := parser.Parse(`{"issue": "something"}`)
		assert.ErrorIs(t, err, ErrUnparseable)
	})

	t.Run("non-boolean is_good is unparseable", func(t *testing.T) {
		_, err := parser.Parse(`{"is_good": "yes", "issue": null}`)
		assert.ErrorIs(t, err, ErrUnparseable)
	})

	t.Run("no JSON at all is unparseable", func(t *testing.T) {
		_, err := parser.Parse("The change looks fine to me.")
		assert.ErrorIs(t, err, ErrUnparseable)
	})

	t.Run("malformed JSON is unparseable", func(t *testing.T) {
		_, err := parser.Parse(`{"is_good": true, "issue":`)
		assert.ErrorIs(t, err, ErrUnparseable)
	})

	t.Run("braces inside issue string", func(t *testing.T) {
		verdict, err := parser.Parse(`{"is_good": false, "issue": "unbalanced block: missing }"}`)
		require.NoError(t, err)
		assert.False(t, verdict.IsGood)
		assert.Equal(t, "unbalanced block: missing }", verdict.Issue)
	})

	t.Run("trailing prose with a stray brace", func(t *testing.T) {
		content := "{\"is_good\": true, \"issue\": null}\n\nNote: see the hunk starting at { line 40 for context."
		verdict, err := parser.Parse(content)
		require.NoError(t, err)
		assert.True(t, verdict.IsGood)
	})

	t.Run("trailing nested object after the verdict", func(t *testing.T) {
		content := "{\"is_good\": false, \"issue\": \"leaked file handle\"}\nUsage: {\"tokens\": {\"prompt\": 812}}"
		verdict, err := parser.Parse(content)
		require.NoError(t, err)
		assert.False(t, verdict.IsGood)
		assert.Equal(t, "leaked file handle", verdict.Issue)
	})

	t.Run("stray brace in prose before the verdict", func(t *testing.T) {
		content := "The block at { line 12 is fine.\n{\"is_good\": true, \"issue\": null}"
		verdict, err := parser.Parse(content)
		require.NoError(t, err)
		assert.True(t, verdict.IsGood)
	})

	t.Run("balanced non-JSON fragment before the verdict", func(t *testing.T) {
		content := "Consider {option A} first.\n{\"is_good\": true, \"issue\": null}"
		verdict, err := parser.Parse(content)
		require.NoError(t, err)
		assert.True(t, verdict.IsGood)
	})
}
