package ensemble

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Color Type Parsing Tests
// ==========================

func TestParseColorType(t *testing.T) {
	tests := []struct {
		input    string
		expected ColorType
		ok       bool
	}{
		{"Warm Autumn", WarmAutumn, true},
		{"warm-autumn", WarmAutumn, true},
		{"AUTUMN_WARM", WarmAutumn, true},
		{"  deep   autumn ", DeepAutumn, true},
		{"True Autumn", WarmAutumn, true},
		{"True Summer", CoolSummer, true},
		{"true winter", CoolWinter, true},
		{"Dark Winter", DeepWinter, true},
		{"Clear Spring", BrightSpring, true},
		{"Muted Summer", SoftSummer, true},
		{"Soft Fall", SoftAutumn, true},
		{"Light Spring type", LightSpring, true},
		{"Autumn", "", false},
		{"Deep Spring", "", false},
		{"Warm Autumn Winter", "", false},
		{"sunshine", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseColorType(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseColorType_EveryCanonicalNameRoundTrips(t *testing.T) {
	for _, ct := range AllColorTypes() {
		got, ok := ParseColorType(string(ct))
		require.True(t, ok, ct)
		assert.Equal(t, ct, got)
	}
}

// ==========================
// Normalize Tests
// ==========================

func TestNormalizer_Normalize_Success(t *testing.T) {
	n := NewNormalizer(0.5)

	result, err := n.Normalize(RawColorResult{
		"personal_color_type": "warm-autumn",
		"season":              "autumn",
		"undertone":           "Warm",
		"confidence":          0.82,
		"reasoning":           "golden skin, dark brown hair",
	}, ProviderOpenAI)

	require.NoError(t, err)
	assert.Equal(t, WarmAutumn, result.PersonalColorType)
	assert.Equal(t, SeasonAutumn, result.Season)
	assert.Equal(t, "warm", result.Subtype)
	assert.Equal(t, UndertoneWarm, result.Undertone)
	assert.InDelta(t, 0.82, result.Confidence, 1e-9)
	assert.Equal(t, "golden skin, dark brown hair", result.Reasoning)
	assert.Equal(t, ProviderOpenAI, result.SourceModel)
	assert.True(t, result.Consistent())
	assert.Empty(t, result.Notes)
}

func TestNormalizer_Normalize_FieldAliases(t *testing.T) {
	n := NewNormalizer(0.5)

	result, err := n.Normalize(RawColorResult{
		"personalColorType": "Cool Winter",
		"confidence":        0.7,
	}, ProviderClaude)
	require.NoError(t, err)
	assert.Equal(t, CoolWinter, result.PersonalColorType)

	result, err = n.Normalize(RawColorResult{
		"type":       "Soft Summer",
		"confidence": 0.7,
	}, ProviderClaude)
	require.NoError(t, err)
	assert.Equal(t, SoftSummer, result.PersonalColorType)
}

func TestNormalizer_Normalize_CombinesSubtypeAndSeason(t *testing.T) {
	n := NewNormalizer(0.5)

	result, err := n.Normalize(RawColorResult{
		"personal_color_type": "Autumn",
		"subtype":             "deep",
		"season":              "autumn",
		"confidence":          0.6,
	}, ProviderGemini)

	require.NoError(t, err)
	assert.Equal(t, DeepAutumn, result.PersonalColorType)
	assert.True(t, result.Consistent())
}

func TestNormalizer_Normalize_SeasonConflictDerivedWins(t *testing.T) {
	n := NewNormalizer(0.5)

	result, err := n.Normalize(RawColorResult{
		"personal_color_type": "Deep Winter",
		"season":              "autumn",
		"subtype":             "soft",
		"confidence":          0.9,
	}, ProviderGemini)

	require.NoError(t, err)
	assert.Equal(t, DeepWinter, result.PersonalColorType)
	assert.Equal(t, SeasonWinter, result.Season)
	assert.Equal(t, "deep", result.Subtype)
	assert.True(t, result.Consistent())
	require.Len(t, result.Notes, 2)
	assert.Contains(t, result.Notes[0], "season")
	assert.Contains(t, result.Notes[1], "subtype")
}

func TestNormalizer_Normalize_TrueSubtypeIsNotAConflict(t *testing.T) {
	n := NewNormalizer(0.5)

	result, err := n.Normalize(RawColorResult{
		"personal_color_type": "True Summer",
		"season":              "Summer",
		"subtype":             "true",
		"confidence":          0.9,
	}, ProviderGemini)

	require.NoError(t, err)
	assert.Equal(t, CoolSummer, result.PersonalColorType)
	assert.Empty(t, result.Notes)
}

func TestNormalizer_Normalize_UnrecognizedType(t *testing.T) {
	n := NewNormalizer(0.5)

	_, err := n.Normalize(RawColorResult{
		"personal_color_type": "Unknown",
		"confidence":          0.2,
	}, ProviderClaude)

	require.Error(t, err)
	var normErr *NormalizationError
	require.True(t, errors.As(err, &normErr))
	assert.Equal(t, NormalizationUnrecognizedType, normErr.Kind)
	assert.Equal(t, ProviderClaude, normErr.Provider)
	assert.Equal(t, "Unknown", normErr.Value)
	assert.Equal(t, "unrecognized_type", failureKind(err))
}

func TestNormalizer_Normalize_Confidence(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected float64
		noted    bool
	}{
		{"missing", nil, 0.5, true},
		{"plain float", 0.73, 0.73, false},
		{"integer one", 1, 1, false},
		{"percentage", 85.0, 0.85, true},
		{"numeric string", "0.4", 0.4, false},
		{"percent string", "64%", 0.64, false},
		{"json number", json.Number("0.9"), 0.9, false},
		{"unreadable string", "high", 0.5, true},
		{"negative", -0.3, 0, true},
		{"too large", 250.0, 1, true},
		{"wrong type", []int{1}, 0.5, true},
	}

	n := NewNormalizer(0.5)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawColorResult{"personal_color_type": "Light Spring"}
			if tt.value != nil {
				raw["confidence"] = tt.value
			}

			result, err := n.Normalize(raw, ProviderGemini)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, result.Confidence, 1e-9)
			if tt.noted {
				assert.NotEmpty(t, result.Notes)
			} else {
				assert.Empty(t, result.Notes)
			}
		})
	}
}

func TestNormalizer_Normalize_Undertone(t *testing.T) {
	tests := []struct {
		name      string
		colorType string
		undertone interface{}
		expected  Undertone
	}{
		{"explicit cool", "Warm Autumn", "cool", UndertoneCool},
		{"olive reads neutral", "Soft Autumn", "olive", UndertoneNeutral},
		{"missing uses season default", "Bright Spring", nil, UndertoneWarm},
		{"unknown uses season default", "Light Summer", "unknown", UndertoneCool},
		{"garbage uses season default", "Deep Winter", "???", UndertoneCool},
	}

	n := NewNormalizer(0.5)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawColorResult{"personal_color_type": tt.colorType, "confidence": 0.8}
			if tt.undertone != nil {
				raw["undertone"] = tt.undertone
			}
			result, err := n.Normalize(raw, ProviderOpenAI)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Undertone)
		})
	}
}
