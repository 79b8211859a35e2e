package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "required": ["image"],
  "properties": {
    "image": {"type": "string", "minLength": 1},
    "aggregationMethod": {"type": "string", "enum": ["voting", "weighted_average", "consensus"]},
    "limit": {"type": "integer", "minimum": 1, "maximum": 100}
  },
  "additionalProperties": false
}`

func TestSchema_Validate(t *testing.T) {
	schema := MustCompile("test", testSchema)

	tests := []struct {
		name     string
		document map[string]interface{}
		valid    bool
		code     string
	}{
		{
			name:     "valid",
			document: map[string]interface{}{"image": "aGVsbG8=", "aggregationMethod": "voting"},
			valid:    true,
		},
		{
			name:     "missing image",
			document: map[string]interface{}{"aggregationMethod": "voting"},
			code:     "REQUIRED_FIELD_MISSING",
		},
		{
			name:     "empty image",
			document: map[string]interface{}{"image": ""},
			code:     "INVALID_LENGTH",
		},
		{
			name:     "unknown method",
			document: map[string]interface{}{"image": "x", "aggregationMethod": "hybrid_judge"},
			code:     "INVALID_ENUM_VALUE",
		},
		{
			name:     "limit out of range",
			document: map[string]interface{}{"image": "x", "limit": 500},
			code:     "OUT_OF_RANGE",
		},
		{
			name:     "wrong type",
			document: map[string]interface{}{"image": 42},
			code:     "INVALID_TYPE",
		},
		{
			name:     "extra field",
			document: map[string]interface{}{"image": "x", "debug": true},
			code:     "EXTRA_FIELD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := schema.Validate(tt.document)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.code, result.Errors[0].Code)
				assert.NotEmpty(t, result.Error())
			}
		})
	}
}

func TestSchema_ValidateJSON(t *testing.T) {
	schema := MustCompile("test", testSchema)

	assert.True(t, schema.ValidateJSON([]byte(`{"image":"x"}`)).Valid)

	result := schema.ValidateJSON([]byte(`{"image":`))
	assert.False(t, result.Valid)
	assert.Equal(t, "INVALID_JSON", result.Errors[0].Code)

	result = schema.ValidateJSON([]byte(`["image"]`))
	assert.False(t, result.Valid)
}

func TestCompile(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)

	s, err := CompileMap("registry", map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"userId"},
	})
	require.NoError(t, err)
	assert.Equal(t, "registry", s.Name())
	assert.False(t, s.Validate(map[string]interface{}{}).Valid)

	assert.Panics(t, func() { MustCompile("broken", `{`) })
}
