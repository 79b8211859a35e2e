package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"personal-color-workers/internal/common/validation"
	"personal-color-workers/internal/ensemble"
)

// replySchema only checks the reply's shape. Field values are left to the
// normalizer, which knows the aliases and fallbacks.
var replySchema = validation.MustCompile("color-reply", `{
  "type": "object",
  "minProperties": 1,
  "properties": {
    "personal_color_type": {"type": ["string", "null"]},
    "personalColorType":   {"type": ["string", "null"]},
    "confidence":          {"type": ["number", "string", "null"]},
    "undertone":           {"type": ["string", "null"]},
    "season":              {"type": ["string", "null"]},
    "subtype":             {"type": ["string", "null"]},
    "reasoning":           {"type": ["string", "null"]}
  }
}`)

var errEmptyText = errors.New("reply contains no text")

// ParseReply decodes the JSON object in a model's text reply. Markdown code
// fences and prose around the object are tolerated.
func ParseReply(text string) (ensemble.RawColorResult, error) {
	body := stripFences(text)
	if body == "" {
		return nil, errEmptyText
	}
	if !strings.HasPrefix(body, "{") {
		start := strings.IndexByte(body, '{')
		end := strings.LastIndexByte(body, '}')
		if start < 0 || end < start {
			return nil, fmt.Errorf("no JSON object in reply: %q", truncate(body, 80))
		}
		body = body[start : end+1]
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	if result := replySchema.Validate(raw); !result.Valid {
		return nil, fmt.Errorf("reply does not match schema: %s", result.Error())
	}
	return ensemble.RawColorResult(raw), nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
