package ensemble

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Normalizer converts provider replies into canonical results. Nothing past
// the normalizer sees provider vocabulary.
type Normalizer struct {
	fallbackConfidence float64
}

// NewNormalizer returns a normalizer that substitutes fallbackConfidence for
// missing or unreadable confidences.
func NewNormalizer(fallbackConfidence float64) *Normalizer {
	return &Normalizer{fallbackConfidence: fallbackConfidence}
}

var (
	typeKeys      = []string{"personal_color_type", "personalColorType", "color_type", "colorType", "type"}
	seasonKeys    = []string{"season"}
	subtypeKeys   = []string{"subtype", "sub_type", "subType"}
	undertoneKeys = []string{"undertone", "under_tone"}
	reasonKeys    = []string{"reasoning", "reason", "explanation"}
)

// Normalize maps raw onto a ColorAnalysisResult tagged with source.
// Unmappable color types fail with *NormalizationError.
func (n *Normalizer) Normalize(raw RawColorResult, source ProviderID) (ColorAnalysisResult, error) {
	typeText := firstString(raw, typeKeys...)
	seasonText := firstString(raw, seasonKeys...)
	subtypeText := firstString(raw, subtypeKeys...)

	colorType, ok := ParseColorType(typeText)
	if !ok {
		// Some replies split the answer, e.g. {"personal_color_type": "Autumn", "subtype": "deep"}.
		for _, combined := range []string{typeText + " " + subtypeText, subtypeText + " " + seasonText} {
			if colorType, ok = ParseColorType(combined); ok {
				break
			}
		}
	}
	if !ok {
		value := typeText
		if value == "" {
			value = strings.TrimSpace(subtypeText + " " + seasonText)
		}
		return ColorAnalysisResult{}, &NormalizationError{
			Provider: source,
			Kind:     NormalizationUnrecognizedType,
			Value:    value,
		}
	}

	result := ColorAnalysisResult{
		PersonalColorType: colorType,
		Season:            colorType.Season(),
		Subtype:           colorType.Subtype(),
		SourceModel:       source,
		Reasoning:         firstString(raw, reasonKeys...),
	}

	if reported := strings.TrimSpace(seasonText); reported != "" && !isUnknown(reported) {
		if s, ok := parseSeason(reported); !ok || s != result.Season {
			result.Notes = append(result.Notes,
				fmt.Sprintf("provider season %q conflicts with %s; derived season kept", reported, result.Season))
		}
	}
	if reported := strings.TrimSpace(subtypeText); reported != "" && !isUnknown(reported) {
		if q := canonicalQualifier(strings.ToLower(reported), result.Season); q != result.Subtype {
			result.Notes = append(result.Notes,
				fmt.Sprintf("provider subtype %q conflicts with %s; derived subtype kept", reported, result.Subtype))
		}
	}

	undertoneText := firstString(raw, undertoneKeys...)
	if u, ok := parseUndertone(undertoneText); ok {
		result.Undertone = u
	} else {
		result.Undertone = result.Season.DefaultUndertone()
		if undertoneText != "" && !isUnknown(undertoneText) {
			result.Notes = append(result.Notes,
				fmt.Sprintf("unrecognized undertone %q; using %s", undertoneText, result.Undertone))
		}
	}

	confidence, note := n.confidence(raw["confidence"])
	result.Confidence = confidence
	if note != "" {
		result.Notes = append(result.Notes, note)
	}

	return result, nil
}

// confidence reads a provider confidence; the second return is a note when
// the value had to be defaulted or rescaled.
func (n *Normalizer) confidence(v interface{}) (float64, string) {
	var c float64
	switch val := v.(type) {
	case nil:
		return n.fallbackConfidence, fmt.Sprintf("confidence missing; defaulted to %.2f", n.fallbackConfidence)
	case float64:
		c = val
	case float32:
		c = float64(val)
	case int:
		c = float64(val)
	case int64:
		c = float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return n.fallbackConfidence, fmt.Sprintf("confidence %q unreadable; defaulted to %.2f", val, n.fallbackConfidence)
		}
		c = f
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(val), "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return n.fallbackConfidence, fmt.Sprintf("confidence %q unreadable; defaulted to %.2f", val, n.fallbackConfidence)
		}
		c = f
		if strings.HasSuffix(strings.TrimSpace(val), "%") {
			c = f / 100
		}
	default:
		return n.fallbackConfidence, fmt.Sprintf("confidence of type %T unreadable; defaulted to %.2f", v, n.fallbackConfidence)
	}

	switch {
	case math.IsNaN(c) || math.IsInf(c, 0):
		return n.fallbackConfidence, fmt.Sprintf("confidence not finite; defaulted to %.2f", n.fallbackConfidence)
	case c > 1 && c <= 100:
		return c / 100, fmt.Sprintf("confidence %.2f read as a percentage", c)
	case c > 100:
		return 1, fmt.Sprintf("confidence %.2f clamped to 1", c)
	case c < 0:
		return 0, fmt.Sprintf("confidence %.2f clamped to 0", c)
	}
	return c, ""
}

// ParseColorType maps free-form provider vocabulary ("Warm Autumn",
// "warm-autumn", "AUTUMN_WARM", "True Autumn", "dark winter") onto one of the
// twelve canonical types.
func ParseColorType(s string) (ColorType, bool) {
	var (
		season     Season
		qualifiers []string
	)
	for _, tok := range tokenize(s) {
		if sea, ok := parseSeason(tok); ok {
			if season != "" && season != sea {
				return "", false
			}
			season = sea
			continue
		}
		if q, ok := qualifierAliases[tok]; ok {
			qualifiers = append(qualifiers, q)
		}
	}
	if season == "" || len(qualifiers) == 0 {
		return "", false
	}
	for _, q := range qualifiers {
		if t, ok := lookupSeasonSubtype(season, canonicalQualifier(q, season)); ok {
			return t, true
		}
	}
	return "", false
}

var qualifierAliases = map[string]string{
	"light":  "light",
	"warm":   "warm",
	"bright": "bright",
	"clear":  "bright",
	"cool":   "cool",
	"cold":   "cool",
	"soft":   "soft",
	"muted":  "soft",
	"deep":   "deep",
	"dark":   "deep",
	"true":   "true",
	"pure":   "true",
}

// canonicalQualifier resolves aliases and "true" against a season.
func canonicalQualifier(q string, season Season) string {
	if alias, ok := qualifierAliases[strings.TrimSpace(q)]; ok {
		q = alias
	}
	if q == "true" {
		switch season {
		case SeasonSpring, SeasonAutumn:
			return "warm"
		case SeasonSummer, SeasonWinter:
			return "cool"
		}
	}
	return q
}

func parseSeason(s string) (Season, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spring":
		return SeasonSpring, true
	case "summer":
		return SeasonSummer, true
	case "autumn", "fall":
		return SeasonAutumn, true
	case "winter":
		return SeasonWinter, true
	default:
		return "", false
	}
}

func parseUndertone(s string) (Undertone, bool) {
	for _, tok := range tokenize(s) {
		switch tok {
		case "warm", "golden", "yellow":
			return UndertoneWarm, true
		case "cool", "cold", "pink":
			return UndertoneCool, true
		case "neutral", "olive":
			return UndertoneNeutral, true
		}
	}
	return "", false
}

// tokenize lowercases s and splits it on anything that is not a letter.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func isUnknown(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unknown", "n/a", "none", "null":
		return true
	}
	return false
}

// firstString returns the first non-empty string value among keys.
func firstString(raw RawColorResult, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
