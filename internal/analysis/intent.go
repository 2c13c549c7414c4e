package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"text/template"

	"github.com/diffjury/diffjury/internal/gitdiff"
	"github.com/diffjury/diffjury/internal/llm"
)

// IntentRequest describes one intent verification: do the changes between
// the two commits serve the caller's stated intent?
type IntentRequest struct {
	RepoURL     string `json:"repo_url"`
	OlderCommit string `json:"older_commit"`
	NewerCommit string `json:"newer_commit"`
	Intent      string `json:"intent"`

	// APIKey is carried per request and never stored in the global
	// configuration or written to logs.
	APIKey string `json:"-"`
}

// Validate checks that all required fields are present
func (r *IntentRequest) Validate() error {
	if r.RepoURL == "" {
		return &ValidationError{Field: "repo_url", Reason: "must not be empty"}
	}
	if r.OlderCommit == "" {
		return &ValidationError{Field: "older_commit", Reason: "must not be empty"}
	}
	if r.NewerCommit == "" {
		return &ValidationError{Field: "newer_commit", Reason: "must not be empty"}
	}
	if r.Intent == "" {
		return &ValidationError{Field: "intent", Reason: "must not be empty"}
	}
	if r.APIKey == "" {
		return &ValidationError{Field: "api_key", Reason: "must not be empty"}
	}
	return nil
}

// IntentTargets names the functions and files the intent expects to work
type IntentTargets struct {
	Functions []string `json:"functions"`
	Files     []string `json:"files"`
}

// FileIntentAnalysis is the judge's answer for one changed file: does the
// change support the stated intent?
type FileIntentAnalysis struct {
	Path           string             `json:"path"`
	Kind           gitdiff.ChangeKind `json:"change_kind"`
	SupportsIntent bool               `json:"supports_intent"`
	Reasoning      string             `json:"reasoning"`
}

// IntentVerdict is the aggregate outcome of an intent verification.
//
// Fulfilled holds when at least one changed file supports the intent and at
// least half of them do; Confidence grows with the supporting share.
type IntentVerdict struct {
	Fulfilled   bool                 `json:"fulfilled"`
	Confidence  float64              `json:"confidence"`
	Explanation string               `json:"explanation"`
	Files       []FileIntentAnalysis `json:"files"`
	Assessment  string               `json:"assessment"`
}

const intentSystemInstruction = `You are a strict reviewer verifying whether code changes fulfill a stated intent.
- Analyze each change in the context of the intent and its named targets
- Determine whether the change supports making the intent work
- Answer with strict JSON only:

{
  "supports_intent": true,
  "reasoning": "..."
}

"supports_intent" MUST be a JSON boolean; "reasoning" MUST be a short plain-text explanation. Do not add fields.`

const targetExtractionPrompt = `Extract from the following prompt the list of function names and file names that the user expects to work.

Respond ONLY in this strict JSON format:
{
  "functions": ["..."],
  "files": ["..."]
}

Prompt:
%q`

const fileIntentTemplate = `Stated intent: {{.Intent}}

## Change to verify:
File: {{.Path}}
Change: {{.Kind}}

{{.Diff}}

Do these changes support fulfilling the stated intent and making its targets work?`

var fileIntentTmpl = template.Must(template.New("intent").Parse(fileIntentTemplate))

// VerifyIntent checks whether the changes between the two commits serve the
// stated intent. The intent's targets are extracted by the judge, their code
// is read at the newer commit for context, and every changed file is then
// judged against the intent. Run-level failures (bad request, repository or
// commit resolution, rejected credentials) return a nil verdict.
func (s *Service) VerifyIntent(ctx context.Context, req *IntentRequest) (*IntentVerdict, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.logger.Info("Starting intent verification",
		"repo", req.RepoURL,
		"older", req.OlderCommit,
		"newer", req.NewerCommit)

	client := s.clients(req.APIKey)

	targets, err := s.extractIntentTargets(ctx, client, req.Intent)
	if err != nil {
		return nil, err
	}

	contents, err := s.changes.FileContentsAt(ctx, req.RepoURL, req.NewerCommit, targets.Files)
	if err != nil {
		return nil, err
	}

	records, err := s.changes.ExtractChanges(ctx, req.RepoURL, req.OlderCommit, req.NewerCommit)
	if err != nil {
		return nil, err
	}

	targetContext := buildTargetContext(targets, contents)

	analyses := make([]FileIntentAnalysis, 0, len(records))
	supporting := 0
	for i := range records {
		record := &records[i]

		if !record.Analyzable() {
			analyses = append(analyses, FileIntentAnalysis{
				Path:           record.Path,
				Kind:           record.Kind,
				SupportsIntent: false,
				Reasoning:      skipReason(record) + ", cannot support the stated intent",
			})
			continue
		}

		analysis, err := s.judgeFileIntent(ctx, client, record, targetContext, req.Intent)
		if err != nil {
			return nil, err
		}
		if analysis.SupportsIntent {
			supporting++
		}
		analyses = append(analyses, *analysis)
	}

	assessment, err := s.overallAssessment(ctx, client, req.Intent, targets, contents, analyses)
	if err != nil {
		return nil, err
	}

	verdict := foldIntent(analyses, supporting)
	verdict.Assessment = assessment

	s.logger.Info("Intent verification complete",
		"repo", req.RepoURL,
		"fulfilled", verdict.Fulfilled,
		"confidence", verdict.Confidence,
		"files", len(verdict.Files))

	return verdict, nil
}

// extractIntentTargets asks the judge which functions and files the intent
// expects to work. A response without usable JSON fails the verification.
func (s *Service) extractIntentTargets(ctx context.Context, client llm.Client, intent string) (*IntentTargets, error) {
	resp, err := client.GenerateChat(ctx, llm.ChatRequest{
		Messages: []llm.Message{llm.NewUserMessage(fmt.Sprintf(targetExtractionPrompt, intent))},
	})
	if err != nil {
		return nil, err
	}

	jsonContent, err := extractJSON(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: extracting intent targets: %v", ErrUnparseable, err)
	}

	var targets IntentTargets
	if err := json.Unmarshal([]byte(jsonContent), &targets); err != nil {
		return nil, fmt.Errorf("%w: extracting intent targets: %v", ErrUnparseable, err)
	}

	return &targets, nil
}

// judgeFileIntent asks the judge whether one change supports the intent.
// Judge failures that are not credential rejections mark the file as not
// supporting; auth failures propagate and abort the verification.
func (s *Service) judgeFileIntent(ctx context.Context, client llm.Client, record *gitdiff.ChangeRecord, targetContext, intent string) (*FileIntentAnalysis, error) {
	diff := record.Diff
	if max := s.config.Analysis.MaxDiffBytes; len(diff) > max {
		diff = SplitDiff(diff, max)[0]
	}

	var buf bytes.Buffer
	err := fileIntentTmpl.Execute(&buf, map[string]string{
		"Intent": intent,
		"Path":   record.Path,
		"Kind":   string(record.Kind),
		"Diff":   diff,
	})
	if err != nil {
		return nil, fmt.Errorf("building intent prompt for %s: %w", record.Path, err)
	}

	resp, err := client.GenerateChat(ctx, llm.ChatRequest{Messages: []llm.Message{
		llm.NewSystemMessage(intentSystemInstruction),
		llm.NewUserMessage(targetContext),
		llm.NewUserMessage(buf.String()),
	}})
	if err != nil {
		if errors.Is(err, llm.ErrAuthFailure) || ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn("Intent judging failed for file", "path", record.Path, "error", err)
		return &FileIntentAnalysis{
			Path:      record.Path,
			Kind:      record.Kind,
			Reasoning: fmt.Sprintf("analysis failed: %v", err),
		}, nil
	}

	analysis, err := parseIntentAnalysis(resp.Content)
	if err != nil {
		s.logger.Warn("Intent judging failed for file", "path", record.Path, "error", err)
		return &FileIntentAnalysis{
			Path:      record.Path,
			Kind:      record.Kind,
			Reasoning: fmt.Sprintf("analysis failed: %v", err),
		}, nil
	}

	analysis.Path = record.Path
	analysis.Kind = record.Kind
	return analysis, nil
}

// parseIntentAnalysis decodes the judge's per-file intent answer. A missing
// or non-boolean supports_intent is ErrUnparseable; an answer is never
// invented for it.
func parseIntentAnalysis(content string) (*FileIntentAnalysis, error) {
	jsonContent, err := extractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	var intermediate struct {
		SupportsIntent json.RawMessage `json:"supports_intent"`
		Reasoning      string          `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(jsonContent), &intermediate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	if len(intermediate.SupportsIntent) == 0 {
		return nil, fmt.Errorf("%w: missing supports_intent field", ErrUnparseable)
	}

	var supports bool
	if err := json.Unmarshal(intermediate.SupportsIntent, &supports); err != nil {
		return nil, fmt.Errorf("%w: supports_intent is not a boolean", ErrUnparseable)
	}

	reasoning := strings.TrimSpace(intermediate.Reasoning)
	if reasoning == "" {
		reasoning = "no reasoning provided"
	}

	return &FileIntentAnalysis{SupportsIntent: supports, Reasoning: reasoning}, nil
}

// buildTargetContext renders the intent's targets and any code found for
// them into one context message for the judge
func buildTargetContext(targets *IntentTargets, contents map[string]string) string {
	var b strings.Builder
	b.WriteString("## Intent targets:\n")

	if len(targets.Functions) > 0 {
		b.WriteString("Functions that need to work: ")
		b.WriteString(strings.Join(targets.Functions, ", "))
		b.WriteString("\n")
	}

	for _, path := range targets.Files {
		content, ok := contents[path]
		if !ok {
			fmt.Fprintf(&b, "File %s: not found in the repository\n", path)
			continue
		}
		if content == gitdiff.BinaryPlaceholder {
			fmt.Fprintf(&b, "File %s: binary\n", path)
			continue
		}
		fmt.Fprintf(&b, "File %s:\n```\n%s\n```\n", path, content)
	}

	if len(targets.Functions) == 0 && len(targets.Files) == 0 {
		b.WriteString("No specific targets named; judge against the intent text alone.\n")
	}

	return b.String()
}

// overallAssessment asks the judge for a short free-form summary of the
// per-file findings
func (s *Service) overallAssessment(ctx context.Context, client llm.Client, intent string, targets *IntentTargets, contents map[string]string, analyses []FileIntentAnalysis) (string, error) {
	var summary strings.Builder
	for _, a := range analyses {
		verdict := "DOES NOT SUPPORT"
		if a.SupportsIntent {
			verdict = "SUPPORTS"
		}
		fmt.Fprintf(&summary, "- %s: %s (%s)\n", a.Path, verdict, a.Reasoning)
	}

	prompt := fmt.Sprintf(`Provide a concise overall assessment of whether the code changes fulfill the stated intent.

Intent: %q
Target functions: %s
Target files: %s (found %d of %d in the repository)

File analysis summary:
%s
Provide a 2-3 sentence assessment of whether the intent is likely fulfilled, naming key supporting or missing changes. Respond with just the assessment text (no JSON).`,
		intent,
		strings.Join(targets.Functions, ", "),
		strings.Join(targets.Files, ", "),
		len(contents), len(targets.Files),
		summary.String())

	resp, err := client.GenerateChat(ctx, llm.ChatRequest{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.Content), nil
}

// foldIntent computes the aggregate intent verdict from the per-file
// analyses. Confidence is anchored at 0.3 and grows with the supporting
// share, capped at 1.
func foldIntent(analyses []FileIntentAnalysis, supporting int) *IntentVerdict {
	ratio := 0.0
	if len(analyses) > 0 {
		ratio = float64(supporting) / float64(len(analyses))
	}

	return &IntentVerdict{
		Fulfilled:  supporting > 0 && ratio >= 0.5,
		Confidence: math.Min(ratio*0.7+0.3, 1.0),
		Explanation: fmt.Sprintf("%d out of %d changed files support the stated intent",
			supporting, len(analyses)),
		Files: analyses,
	}
}
