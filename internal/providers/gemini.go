package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/imageutil"
)

// geminiDialect speaks the Generative Language generateContent API.
type geminiDialect struct{}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent       `json:"system_instruction,omitempty"`
	Contents          []geminiContent      `json:"contents"`
	GenerationConfig  geminiGenerateConfig `json:"generationConfig"`
}

type geminiGenerateConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (geminiDialect) endpoint(cfg config.ProviderConfig) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(cfg.BaseURL, "/"), cfg.Model)
}

func (geminiDialect) headers(cfg config.ProviderConfig) map[string]string {
	return map[string]string{"x-goog-api-key": cfg.APIKey}
}

func (geminiDialect) request(cfg config.ProviderConfig, call callSpec) interface{} {
	parts := []geminiPart{}
	if len(call.image) > 0 {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: call.mime,
			Data:     imageutil.Encode(call.image),
		}})
	}
	parts = append(parts, geminiPart{Text: call.prompt})

	return geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: call.system}}},
		Contents:          []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerateConfig{
			ResponseMimeType: "application/json",
			Temperature:      call.temperature,
			MaxOutputTokens:  cfg.MaxTokens,
		},
	}
}

func (geminiDialect) extractText(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
