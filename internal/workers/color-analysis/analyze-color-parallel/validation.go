package analyzecolorparallel

import "personal-color-workers/internal/common/validation"

// Process variables in scope are passed along with the job, so unknown
// properties are allowed.
var inputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["image"],
	"properties": {
		"image":             {"type": "string", "minLength": 1},
		"aggregationMethod": {"type": ["string", "null"], "maxLength": 32},
		"userId":            {"type": ["string", "null"], "maxLength": 128}
	}
}`)
