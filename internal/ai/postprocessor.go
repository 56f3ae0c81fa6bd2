package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	dangerousTags = regexp.MustCompile(`(?is)<(script|iframe|object|embed|style)[^>]*>.*?</(script|iframe|object|embed|style)>|<(script|iframe|object|embed|link|meta)[^>]*>`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
)

// PostProcessor validates and cleans model output
type PostProcessor struct {
	maxHeadlineRunes int
}

func NewPostProcessor(maxHeadlineRunes int) *PostProcessor {
	return &PostProcessor{maxHeadlineRunes: maxHeadlineRunes}
}

// ParseRewrite decodes a rewrite response and cleans its fields
func (p *PostProcessor) ParseRewrite(response string) (Rewrite, error) {
	var result Rewrite
	if err := json.Unmarshal([]byte(extractJSON(response)), &result); err != nil {
		return Rewrite{}, fmt.Errorf("failed to parse rewrite response: %w", err)
	}

	result.Headline = p.cleanHeadline(result.Headline)
	result.Body = cleanBody(result.Body)

	if result.Headline == "" {
		return Rewrite{}, errors.New("missing required field: headline")
	}
	if result.Body == "" {
		return Rewrite{}, errors.New("missing required field: body")
	}
	return result, nil
}

// ParseIndices decodes a ranking response. Both {"indices": [...]} and a
// bare array are accepted; numbers may be quoted. Elements that are not
// integers are dropped.
func ParseIndices(response string) ([]int, error) {
	raw := extractJSON(response)

	var wrapped struct {
		Indices []json.RawMessage `json:"indices"`
	}
	var list []json.RawMessage

	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse ranking response: %w", err)
		}
		if wrapped.Indices == nil {
			return nil, errors.New("ranking response has no indices field")
		}
		list = wrapped.Indices
	} else if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("failed to parse ranking response: %w", err)
	}

	indices := make([]int, 0, len(list))
	for _, item := range list {
		n, err := parseIndex(item)
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	return indices, nil
}

func parseIndex(raw json.RawMessage) (int, error) {
	if string(raw) == "null" {
		return 0, errors.New("index is null")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f != float64(int(f)) {
			return 0, fmt.Errorf("index %v is not an integer", f)
		}
		return int(f), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, convErr := strconv.Atoi(strings.TrimSpace(s))
		if convErr != nil {
			return 0, fmt.Errorf("index %q is not a number", s)
		}
		return n, nil
	}
	return 0, fmt.Errorf("unexpected index value %s", string(raw))
}

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object or array.
func extractJSON(response string) string {
	s := strings.TrimSpace(response)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// cleanHeadline normalizes whitespace and caps the length in runes
func (p *PostProcessor) cleanHeadline(s string) string {
	s = cleanText(s)
	s = strings.Trim(s, `"'“”`)
	if p.maxHeadlineRunes <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= p.maxHeadlineRunes {
		return s
	}
	return strings.TrimSpace(string(r[:p.maxHeadlineRunes-1])) + "…"
}

// cleanText removes control characters and normalizes whitespace
func cleanText(s string) string {
	s = controlChars.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// cleanBody drops executable markup and normalizes line endings, keeping
// paragraph breaks
func cleanBody(s string) string {
	s = dangerousTags.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = controlChars.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
