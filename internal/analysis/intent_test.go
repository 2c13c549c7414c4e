package analysis

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffjury/diffjury/internal/gitdiff"
	"github.com/diffjury/diffjury/internal/llm"
)

func validIntentRequest() *IntentRequest {
	return &IntentRequest{
		RepoURL:     "https://example.com/repo.git",
		OlderCommit: "abc123",
		NewerCommit: "def456",
		Intent:      "I want the StartServer function in server.go to work",
		APIKey:      "test-key",
	}
}

// intentStub answers the three request shapes of a verification: target
// extraction, per-file judging and the overall assessment
func intentStub(targetsJSON string, perFile map[string]string, assessment string) *stubClient {
	return &stubClient{fn: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		last := req.Messages[len(req.Messages)-1].Content
		switch {
		case strings.Contains(last, "Extract from the following prompt"):
			return &llm.ChatResponse{Content: targetsJSON}, nil
		case strings.Contains(last, "overall assessment"):
			return &llm.ChatResponse{Content: assessment}, nil
		default:
			return &llm.ChatResponse{Content: perFile[promptedPath(req)]}, nil
		}
	}}
}

func TestVerifyIntent(t *testing.T) {
	ctx := context.Background()
	targetsJSON := `{"functions": ["StartServer"], "files": ["server.go"]}`

	t.Run("half the files supporting fulfills the intent", func(t *testing.T) {
		changes := &stubChanges{
			records: []gitdiff.ChangeRecord{
				textRecord("server.go", "+func StartServer() error { return listen() }\n"),
				textRecord("docs.md", "+typo fix\n"),
			},
			contents: map[string]string{"server.go": "package main\n\nfunc StartServer() error { return nil }\n"},
		}
		client := intentStub(targetsJSON, map[string]string{
			"server.go": `{"supports_intent": true, "reasoning": "implements the listener"}`,
			"docs.md":   `{"supports_intent": false, "reasoning": "documentation only"}`,
		}, "The listener change makes StartServer work; the doc change is unrelated.")

		verdict, err := newTestService(changes, client).VerifyIntent(ctx, validIntentRequest())
		require.NoError(t, err)

		assert.True(t, verdict.Fulfilled)
		assert.InDelta(t, 0.65, verdict.Confidence, 0.001)
		assert.Equal(t, "1 out of 2 changed files support the stated intent", verdict.Explanation)
		assert.Equal(t, "The listener change makes StartServer work; the doc change is unrelated.", verdict.Assessment)

		require.Len(t, verdict.Files, 2)
		assert.Equal(t, "server.go", verdict.Files[0].Path)
		assert.True(t, verdict.Files[0].SupportsIntent)
		assert.Equal(t, "implements the listener", verdict.Files[0].Reasoning)
		assert.False(t, verdict.Files[1].SupportsIntent)
	})

	t.Run("target code and intent reach the judge", func(t *testing.T) {
		changes := &stubChanges{
			records:  []gitdiff.ChangeRecord{textRecord("server.go", "+x\n")},
			contents: map[string]string{"server.go": "func StartServer() error { return nil }"},
		}

		var sawTargetCode, sawIntent bool
		client := &stubClient{fn: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			last := req.Messages[len(req.Messages)-1].Content
			if strings.Contains(last, "Extract from the following prompt") {
				return &llm.ChatResponse{Content: targetsJSON}, nil
			}
			if strings.Contains(last, "overall assessment") {
				return &llm.ChatResponse{Content: "ok"}, nil
			}
			for _, m := range req.Messages {
				if strings.Contains(m.Content, "func StartServer() error { return nil }") {
					sawTargetCode = true
				}
				if strings.Contains(m.Content, "Stated intent: I want the StartServer function") {
					sawIntent = true
				}
			}
			return &llm.ChatResponse{Content: `{"supports_intent": true, "reasoning": "ok"}`}, nil
		}}

		_, err := newTestService(changes, client).VerifyIntent(ctx, validIntentRequest())
		require.NoError(t, err)
		assert.True(t, sawTargetCode, "target file code must be in the judge's context")
		assert.True(t, sawIntent, "stated intent must be in the judge's prompt")
	})

	t.Run("deleted and binary files never support the intent", func(t *testing.T) {
		changes := &stubChanges{records: []gitdiff.ChangeRecord{
			{Path: "gone.go", Kind: gitdiff.ChangeKindDeleted},
			{Path: "logo.png", Kind: gitdiff.ChangeKindAdded, Binary: true, Diff: gitdiff.BinaryPlaceholder},
			textRecord("kept.go", "+fine\n"),
		}}
		client := intentStub(targetsJSON, map[string]string{
			"kept.go": `{"supports_intent": true, "reasoning": "relevant"}`,
		}, "assessment")

		verdict, err := newTestService(changes, client).VerifyIntent(ctx, validIntentRequest())
		require.NoError(t, err)

		require.Len(t, verdict.Files, 3)
		assert.False(t, verdict.Files[0].SupportsIntent)
		assert.Contains(t, verdict.Files[0].Reasoning, "file deleted")
		assert.False(t, verdict.Files[1].SupportsIntent)
		assert.Contains(t, verdict.Files[1].Reasoning, "binary file")
		assert.True(t, verdict.Files[2].SupportsIntent)

		// 1 of 3 supporting: intent not fulfilled
		assert.False(t, verdict.Fulfilled)
	})

	t.Run("unparseable per-file answer does not support", func(t *testing.T) {
		changes := &stubChanges{records: []gitdiff.ChangeRecord{
			textRecord("vague.go", "+hm\n"),
		}}
		client := intentStub(targetsJSON, map[string]string{
			"vague.go": "It depends on how you look at it.",
		}, "assessment")

		verdict, err := newTestService(changes, client).VerifyIntent(ctx, validIntentRequest())
		require.NoError(t, err)

		require.Len(t, verdict.Files, 1)
		assert.False(t, verdict.Files[0].SupportsIntent)
		assert.Contains(t, verdict.Files[0].Reasoning, "analysis failed")
		assert.False(t, verdict.Fulfilled)
	})

	t.Run("unparseable target extraction aborts", func(t *testing.T) {
		changes := &stubChanges{records: []gitdiff.ChangeRecord{textRecord("a.go", "+x\n")}}
		client := intentStub("no targets here", nil, "assessment")

		verdict, err := newTestService(changes, client).VerifyIntent(ctx, validIntentRequest())
		assert.ErrorIs(t, err, ErrUnparseable)
		assert.Nil(t, verdict)
	})

	t.Run("auth failure aborts", func(t *testing.T) {
		changes := &stubChanges{records: []gitdiff.ChangeRecord{textRecord("a.go", "+x\n")}}
		client := &stubClient{fn: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return nil, fmt.Errorf("%w: incorrect API key", llm.ErrAuthFailure)
		}}

		verdict, err := newTestService(changes, client).VerifyIntent(ctx, validIntentRequest())
		assert.ErrorIs(t, err, llm.ErrAuthFailure)
		assert.Nil(t, verdict)
	})

	t.Run("extraction errors propagate", func(t *testing.T) {
		changes := &stubChanges{err: fmt.Errorf("%w: resolving deadbeef", gitdiff.ErrCommitNotFound)}
		client := intentStub(targetsJSON, nil, "assessment")

		verdict, err := newTestService(changes, client).VerifyIntent(ctx, validIntentRequest())
		assert.ErrorIs(t, err, gitdiff.ErrCommitNotFound)
		assert.Nil(t, verdict)
	})

	t.Run("invalid request fails validation", func(t *testing.T) {
		service := newTestService(&stubChanges{}, &stubClient{})

		req := validIntentRequest()
		req.Intent = ""

		_, err := service.VerifyIntent(ctx, req)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
		assert.Equal(t, "intent", ve.Field)
	})
}

func TestFoldIntent(t *testing.T) {
	t.Run("no changed files", func(t *testing.T) {
		verdict := foldIntent(nil, 0)
		assert.False(t, verdict.Fulfilled)
		assert.InDelta(t, 0.3, verdict.Confidence, 0.001)
	})

	t.Run("all files supporting", func(t *testing.T) {
		analyses := []FileIntentAnalysis{
			{Path: "a.go", SupportsIntent: true},
			{Path: "b.go", SupportsIntent: true},
		}
		verdict := foldIntent(analyses, 2)
		assert.True(t, verdict.Fulfilled)
		assert.InDelta(t, 1.0, verdict.Confidence, 0.001)
	})

	t.Run("under half supporting", func(t *testing.T) {
		analyses := []FileIntentAnalysis{
			{Path: "a.go", SupportsIntent: true},
			{Path: "b.go"},
			{Path: "c.go"},
		}
		verdict := foldIntent(analyses, 1)
		assert.False(t, verdict.Fulfilled)
	})
}
