package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/imageutil"
)

const anthropicVersion = "2023-06-01"

// claudeDialect speaks the Anthropic messages API.
type claudeDialect struct{}

type claudeBlock struct {
	Type   string             `json:"type"`
	Text   string             `json:"text,omitempty"`
	Source *claudeImageSource `json:"source,omitempty"`
}

type claudeImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (claudeDialect) endpoint(cfg config.ProviderConfig) string {
	return strings.TrimRight(cfg.BaseURL, "/") + "/v1/messages"
}

func (claudeDialect) headers(cfg config.ProviderConfig) map[string]string {
	return map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
}

func (claudeDialect) request(cfg config.ProviderConfig, call callSpec) interface{} {
	content := []claudeBlock{}
	if len(call.image) > 0 {
		content = append(content, claudeBlock{
			Type: "image",
			Source: &claudeImageSource{
				Type:      "base64",
				MediaType: call.mime,
				Data:      imageutil.Encode(call.image),
			},
		})
	}
	content = append(content, claudeBlock{Type: "text", Text: call.prompt})

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return claudeRequest{
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: call.temperature,
		System:      call.system,
		Messages:    []claudeMessage{{Role: "user", Content: content}},
	}
}

func (claudeDialect) extractText(body []byte) (string, error) {
	var resp claudeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode claude response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("claude returned no text (stop_reason %q)", resp.StopReason)
	}
	return sb.String(), nil
}
