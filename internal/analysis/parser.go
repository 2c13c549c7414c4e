package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/diffjury/diffjury/internal/loggy"
)

// JudgeVerdict is the judge's raw answer for one diff chunk
type JudgeVerdict struct {
	IsGood bool
	Issue  string
}

// VerdictParser extracts a structured verdict from a judge response
type VerdictParser struct {
	logger *loggy.Logger
}

// NewVerdictParser creates a new VerdictParser
func NewVerdictParser(logger *loggy.Logger) *VerdictParser {
	return &VerdictParser{logger: logger}
}

var codeBlockRegex = regexp.MustCompile("```(?:json)?([\\s\\S]*?)```")

// Parse extracts the verdict JSON from a judge response. The judge is told to
// answer with a bare JSON object, but responses wrapped in markdown fences or
// preceded by prose are tolerated. A response whose JSON lacks a boolean
// "is_good" is ErrUnparseable; a verdict is never invented for it.
func (p *VerdictParser) Parse(content string) (*JudgeVerdict, error) {
	jsonContent, err := extractJSON(content)
	if err != nil {
		p.logger.Debug("No JSON found in judge response", "length", len(content))
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	// Decode through RawMessage so a missing or non-boolean is_good is
	// distinguishable from an explicit false.
	var intermediate struct {
		IsGood json.RawMessage `json:"is_good"`
		Issue  *string         `json:"issue"`
	}
	if err := json.Unmarshal([]byte(jsonContent), &intermediate); err != nil {
		p.logger.Debug("Failed to unmarshal judge response", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	if len(intermediate.IsGood) == 0 {
		return nil, fmt.Errorf("%w: missing is_good field", ErrUnparseable)
	}

	var isGood bool
	if err := json.Unmarshal(intermediate.IsGood, &isGood); err != nil {
		return nil, fmt.Errorf("%w: is_good is not a boolean", ErrUnparseable)
	}

	verdict := &JudgeVerdict{IsGood: isGood}
	if intermediate.Issue != nil {
		verdict.Issue = strings.TrimSpace(*intermediate.Issue)
	}

	if !verdict.IsGood && verdict.Issue == "" {
		verdict.Issue = "unspecified issue"
	}

	return verdict, nil
}

// extractJSON finds the verdict JSON object in the content
func extractJSON(content string) (string, error) {
	// Try code blocks first
	for _, match := range codeBlockRegex.FindAllStringSubmatch(content, -1) {
		if len(match) > 1 {
			potential := strings.TrimSpace(match[1])
			if strings.HasPrefix(potential, "{") && strings.HasSuffix(potential, "}") {
				return potential, nil
			}
		}
	}

	// Scan candidate objects from the first opening brace forward: a stray
	// brace in prose is unbalanced or not valid JSON, so the scan moves on to
	// the next candidate instead of failing the whole response.
	for start := strings.IndexByte(content, '{'); start >= 0; {
		if candidate, ok := balancedObject(content[start:]); ok && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		next := strings.IndexByte(content[start+1:], '{')
		if next < 0 {
			break
		}
		start += 1 + next
	}

	return "", fmt.Errorf("no JSON object found in content")
}

// balancedObject returns the brace-balanced prefix of s, which must start at
// an opening brace. Braces inside JSON strings do not count.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i, char := range s {
		switch {
		case escaped:
			escaped = false
		case char == '\\' && inString:
			escaped = true
		case char == '"':
			inString = !inString
		case char == '{' && !inString:
			depth++
		case char == '}' && !inString:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
