package analysis

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/go-enry/go-enry/v2"

	"github.com/diffjury/diffjury/internal/gitdiff"
	"github.com/diffjury/diffjury/internal/llm"
)

// Templates for building judge prompts
const systemInstructionTemplate = `You are a strict code reviewer judging a single file's change from a git diff. Your **PRIMARY GOAL** is to provide a **VALID JSON response** as your final statement, even if other text comes before it.

Follow this schema **EXACTLY** without adding any additional fields:

{
  "is_good": true,
  "issue": null
}

IMPORTANT:
- "is_good" **MUST** be a JSON boolean: true when the change is acceptable, false when it has a problem worth blocking on.
- "issue" **MUST** be null when is_good is true, and a short plain-text description of the problem when is_good is false.
- Judge only the change shown. Look for bugs, security problems, data loss, broken error handling and obviously wrong logic. Style nits alone do not make a change bad.
- Do **NOT** add fields, arrays or comments.

Provide the JSON response as your **LAST** statement.`

const fileContextTemplate = `## Change to judge:
File: {{.Path}}{{if .OldPath}} (renamed from {{.OldPath}}){{end}}
Change: {{.Kind}}{{if .Language}}
Language: {{.Language}}{{end}}{{if .Part}}
Part: {{.Part}}{{end}}

{{.Diff}}`

var (
	systemTmpl      = template.Must(template.New("system").Parse(systemInstructionTemplate))
	fileContextTmpl = template.Must(template.New("context").Parse(fileContextTemplate))
)

// BuildSystemInstruction builds the system prompt for the judge
func BuildSystemInstruction() string {
	var buf bytes.Buffer
	// Template has no fields today; kept as a template alongside the user
	// prompt so both render the same way.
	_ = systemTmpl.Execute(&buf, nil)
	return buf.String()
}

// BuildFileContext builds the user prompt for one diff chunk. The part label
// is empty for unsplit diffs and "chunk i/n" for split ones.
func BuildFileContext(record *gitdiff.ChangeRecord, diff, part string) (string, error) {
	var buf bytes.Buffer
	err := fileContextTmpl.Execute(&buf, map[string]string{
		"Path":     record.Path,
		"OldPath":  record.OldPath,
		"Kind":     string(record.Kind),
		"Language": detectLanguage(record.Path, diff),
		"Part":     part,
		"Diff":     diff,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildMessages builds the message list for one judge request
func BuildMessages(record *gitdiff.ChangeRecord, diff, part string) ([]llm.Message, error) {
	fileContext, err := BuildFileContext(record, diff, part)
	if err != nil {
		return nil, err
	}

	return []llm.Message{
		llm.NewSystemMessage(BuildSystemInstruction()),
		llm.NewUserMessage(fileContext),
	}, nil
}

// detectLanguage names the file's language for the prompt header. Detection
// is by filename first, falling back to content classification.
func detectLanguage(path, content string) string {
	if lang, ok := enry.GetLanguageByExtension(path); ok {
		return lang
	}
	if lang, ok := enry.GetLanguageByFilename(path); ok {
		return lang
	}
	if lang := enry.GetLanguage(path, []byte(content)); lang != enry.OtherLanguage {
		return lang
	}
	return ""
}

// SplitDiff splits a diff that exceeds maxBytes into chunks, preferring hunk
// boundaries so the judge sees coherent pieces. Diffs at or under the limit
// come back as a single chunk.
func SplitDiff(diff string, maxBytes int) []string {
	if len(diff) <= maxBytes {
		return []string{diff}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.SplitAfter(diff, "\n") {
		// A hunk header closes the current chunk when the next hunk cannot
		// fit alongside it; any line that would overflow the limit does too.
		if current.Len() > 0 && current.Len()+len(line) > maxBytes {
			flush()
		} else if strings.HasPrefix(line, "@@") && current.Len() > maxBytes/2 {
			flush()
		}

		current.WriteString(line)
	}
	flush()

	return chunks
}
