package recommendproducts

import "personal-color-workers/internal/common/validation"

var inputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["personalColorType"],
	"properties": {
		"personalColorType": {"type": "string", "minLength": 1, "maxLength": 64},
		"category":          {"type": ["string", "null"], "maxLength": 64},
		"limit":             {"type": ["integer", "null"], "minimum": 1, "maximum": 100}
	}
}`)
