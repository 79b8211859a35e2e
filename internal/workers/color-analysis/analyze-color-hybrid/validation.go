package analyzecolorhybrid

import "personal-color-workers/internal/common/validation"

var inputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["image"],
	"properties": {
		"image":      {"type": "string", "minLength": 1},
		"judgeModel": {"type": ["string", "null"], "maxLength": 32},
		"userId":     {"type": ["string", "null"], "maxLength": 128}
	}
}`)
