package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/imageutil"
)

// openAIDialect speaks the chat completions API with JSON-object output.
type openAIDialect struct{}

type openAIMessage struct {
	Role    string        `json:"role"`
	Content []openAIBlock `json:"content"`
}

type openAIBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

func (openAIDialect) endpoint(cfg config.ProviderConfig) string {
	return strings.TrimRight(cfg.BaseURL, "/") + "/v1/chat/completions"
}

func (openAIDialect) headers(cfg config.ProviderConfig) map[string]string {
	return map[string]string{"Authorization": "Bearer " + cfg.APIKey}
}

func (openAIDialect) request(cfg config.ProviderConfig, call callSpec) interface{} {
	content := []openAIBlock{{Type: "text", Text: call.prompt}}
	if len(call.image) > 0 {
		content = append(content, openAIBlock{
			Type:     "image_url",
			ImageURL: &openAIImageURL{URL: "data:" + call.mime + ";base64," + imageutil.Encode(call.image)},
		})
	}

	return openAIRequest{
		Model: cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: []openAIBlock{{Type: "text", Text: call.system}}},
			{Role: "user", Content: content},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    call.temperature,
		MaxTokens:      cfg.MaxTokens,
	}
}

func (openAIDialect) extractText(body []byte) (string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("openai refused: %s", msg.Refusal)
	}
	return msg.Content, nil
}
