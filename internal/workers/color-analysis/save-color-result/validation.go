package savecolorresult

import "personal-color-workers/internal/common/validation"

var inputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["userId", "decision"],
	"properties": {
		"userId": {"type": "string", "minLength": 1, "maxLength": 128},
		"decision": {
			"type": "object",
			"required": ["personal_color_type", "confidence", "aggregation_method"],
			"properties": {
				"request_id":          {"type": "string"},
				"personal_color_type": {"type": "string", "minLength": 1},
				"confidence":          {"type": "number", "minimum": 0, "maximum": 1},
				"agreement_ratio":     {"type": "number", "minimum": 0, "maximum": 1},
				"aggregation_method":  {"type": "string", "enum": ["voting", "weighted_average", "consensus", "hybrid_judge"]},
				"model_results":       {"type": ["array", "null"]}
			}
		}
	}
}`)
