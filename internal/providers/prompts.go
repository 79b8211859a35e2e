package providers

import (
	"encoding/json"
	"fmt"

	"personal-color-workers/internal/ensemble"
)

const systemPrompt = `You are an expert personal color analyst. You classify people into the
12-season color system (Light/Warm/Bright Spring, Light/Cool/Soft Summer,
Soft/Warm/Deep Autumn, Deep/Cool/Bright Winter) from a front-facing photo,
judging undertone (warm, cool or neutral), depth and chroma from skin, hair
and eyes. Ignore makeup and filters where you can, and lower your confidence
when lighting makes the undertone ambiguous.`

const replyFormat = `{
  "personal_color_type": "one of the 12 types, e.g. 'Deep Autumn' or 'Light Spring'",
  "confidence": 0.0-1.0,
  "undertone": "warm, cool or neutral",
  "season": "spring, summer, autumn or winter",
  "subtype": "light, warm, bright, cool, soft or deep",
  "reasoning": "brief explanation of the analysis"
}`

// analysisPrompt asks for a single JSON classification of the photo.
const analysisPrompt = "Analyze the person's personal color season and return ONLY a valid JSON object " +
	"with exactly this structure (no markdown, no code fences):\n" + replyFormat

// judgeCandidate is how a candidate answer is shown to the judge.
type judgeCandidate struct {
	Model             string  `json:"model"`
	PersonalColorType string  `json:"personal_color_type"`
	Confidence        float64 `json:"confidence"`
	Undertone         string  `json:"undertone"`
	Season            string  `json:"season"`
	Subtype           string  `json:"subtype"`
	Reasoning         string  `json:"reasoning"`
}

// judgePrompt summarises the candidates' answers and asks the judge for a
// final classification of the same photo.
func judgePrompt(candidates []ensemble.ColorAnalysisResult) (string, error) {
	summary := make([]judgeCandidate, len(candidates))
	for i, c := range candidates {
		summary[i] = judgeCandidate{
			Model:             fmt.Sprintf("Model %d", i+1),
			PersonalColorType: string(c.PersonalColorType),
			Confidence:        c.Confidence,
			Undertone:         string(c.Undertone),
			Season:            string(c.Season),
			Subtype:           c.Subtype,
			Reasoning:         c.Reasoning,
		}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}

	return fmt.Sprintf(`You are an expert color analyst judge. Review the following color analysis
results from multiple AI models for the attached photo and give a final,
authoritative analysis.

Results from different models:
%s

Consider which analysis is best supported by its reasoning and by the photo.
If the models agree, use that as the basis; if they disagree, decide which
answer is most likely correct, or give a different type if none fits.
Adjust confidence to the level of agreement.

Return ONLY a valid JSON object with this structure:
%s`, data, replyFormat), nil
}
