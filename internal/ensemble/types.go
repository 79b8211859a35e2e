// Package ensemble combines the color-season answers of several vision models
// into one decision. It dispatches a request to every configured model
// adapter concurrently, normalizes each provider reply into a closed
// enumeration of twelve color types, and then either aggregates the survivors
// (parallel mode) or asks a third model to judge two candidates (hybrid mode).
package ensemble

import (
	"fmt"
	"strings"
	"time"
)

// ProviderID identifies a model adapter.
type ProviderID string

const (
	// ProviderGemini is Google's Gemini vision model.
	ProviderGemini ProviderID = "gemini"
	// ProviderOpenAI is OpenAI's GPT vision model.
	ProviderOpenAI ProviderID = "openai"
	// ProviderClaude is Anthropic's Claude vision model.
	ProviderClaude ProviderID = "claude"
)

// String returns the provider as a string.
func (p ProviderID) String() string {
	return string(p)
}

// IsValid returns true if this is a known provider.
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderClaude:
		return true
	default:
		return false
	}
}

// AllProviders returns the providers in their default dispatch and
// tie-break priority order.
func AllProviders() []ProviderID {
	return []ProviderID{ProviderGemini, ProviderOpenAI, ProviderClaude}
}

// ParseProvider maps a provider name onto a ProviderID.
// "anthropic" and "google" are accepted as aliases.
func ParseProvider(s string) (ProviderID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gemini", "google":
		return ProviderGemini, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "claude", "anthropic":
		return ProviderClaude, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// AggregationMethod selects how a decision is formed.
type AggregationMethod string

const (
	// MethodVoting picks the type with the most votes.
	MethodVoting AggregationMethod = "voting"
	// MethodWeightedAverage scores types by the confidence of their votes.
	MethodWeightedAverage AggregationMethod = "weighted_average"
	// MethodConsensus refuses to answer below a supermajority.
	MethodConsensus AggregationMethod = "consensus"
	// MethodHybridJudge lets a third model judge two candidates.
	MethodHybridJudge AggregationMethod = "hybrid_judge"
)

// String returns the method as a string.
func (m AggregationMethod) String() string {
	return string(m)
}

// IsParallel returns true for the methods usable in parallel mode.
func (m AggregationMethod) IsParallel() bool {
	switch m {
	case MethodVoting, MethodWeightedAverage, MethodConsensus:
		return true
	default:
		return false
	}
}

// ParseAggregationMethod maps a method name onto an AggregationMethod.
// An empty string returns "" without error so callers can apply a default.
func ParseAggregationMethod(s string) (AggregationMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if normalized == "" {
		return "", nil
	}
	m := AggregationMethod(normalized)
	if !m.IsParallel() {
		return "", fmt.Errorf("unknown aggregation method %q", s)
	}
	return m, nil
}

// Mode is the execution mode of a request.
type Mode string

const (
	// ModeParallel queries all providers and aggregates.
	ModeParallel Mode = "parallel"
	// ModeHybrid queries two providers and lets the third judge.
	ModeHybrid Mode = "hybrid"
)

// Season is one of the four macro color seasons.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// IsValid returns true if this is a known season.
func (s Season) IsValid() bool {
	switch s {
	case SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter:
		return true
	default:
		return false
	}
}

// DefaultUndertone is the undertone a season implies when a provider
// reports none.
func (s Season) DefaultUndertone() Undertone {
	switch s {
	case SeasonSpring, SeasonAutumn:
		return UndertoneWarm
	case SeasonSummer, SeasonWinter:
		return UndertoneCool
	default:
		return UndertoneNeutral
	}
}

// Undertone is the warm/cool/neutral classification of natural coloring.
type Undertone string

const (
	UndertoneWarm    Undertone = "warm"
	UndertoneCool    Undertone = "cool"
	UndertoneNeutral Undertone = "neutral"
)

// IsValid returns true if this is a known undertone.
func (u Undertone) IsValid() bool {
	switch u {
	case UndertoneWarm, UndertoneCool, UndertoneNeutral:
		return true
	default:
		return false
	}
}

// ColorType is one of the twelve canonical season subtypes, e.g. "Deep Autumn".
type ColorType string

const (
	LightSpring  ColorType = "Light Spring"
	WarmSpring   ColorType = "Warm Spring"
	BrightSpring ColorType = "Bright Spring"
	LightSummer  ColorType = "Light Summer"
	CoolSummer   ColorType = "Cool Summer"
	SoftSummer   ColorType = "Soft Summer"
	SoftAutumn   ColorType = "Soft Autumn"
	WarmAutumn   ColorType = "Warm Autumn"
	DeepAutumn   ColorType = "Deep Autumn"
	DeepWinter   ColorType = "Deep Winter"
	CoolWinter   ColorType = "Cool Winter"
	BrightWinter ColorType = "Bright Winter"
)

// colorTypeEntry is one row of the fixed season table.
type colorTypeEntry struct {
	colorType ColorType
	season    Season
	subtype   string
}

// seasonTable holds exactly three subtypes per season.
var seasonTable = []colorTypeEntry{
	{LightSpring, SeasonSpring, "light"},
	{WarmSpring, SeasonSpring, "warm"},
	{BrightSpring, SeasonSpring, "bright"},
	{LightSummer, SeasonSummer, "light"},
	{CoolSummer, SeasonSummer, "cool"},
	{SoftSummer, SeasonSummer, "soft"},
	{SoftAutumn, SeasonAutumn, "soft"},
	{WarmAutumn, SeasonAutumn, "warm"},
	{DeepAutumn, SeasonAutumn, "deep"},
	{DeepWinter, SeasonWinter, "deep"},
	{CoolWinter, SeasonWinter, "cool"},
	{BrightWinter, SeasonWinter, "bright"},
}

func lookupColorType(t ColorType) (colorTypeEntry, bool) {
	for _, e := range seasonTable {
		if e.colorType == t {
			return e, true
		}
	}
	return colorTypeEntry{}, false
}

// lookupSeasonSubtype finds the type for a season and subtype qualifier.
func lookupSeasonSubtype(season Season, subtype string) (ColorType, bool) {
	for _, e := range seasonTable {
		if e.season == season && e.subtype == subtype {
			return e.colorType, true
		}
	}
	return "", false
}

// String returns the type as a string.
func (t ColorType) String() string {
	return string(t)
}

// IsValid returns true if this is one of the twelve canonical types.
func (t ColorType) IsValid() bool {
	_, ok := lookupColorType(t)
	return ok
}

// Season returns the macro season of the type, or "" for unknown types.
func (t ColorType) Season() Season {
	e, _ := lookupColorType(t)
	return e.season
}

// Subtype returns the qualifier of the type ("deep", "soft", ...).
func (t ColorType) Subtype() string {
	e, _ := lookupColorType(t)
	return e.subtype
}

// AllColorTypes returns the twelve canonical types in table order.
func AllColorTypes() []ColorType {
	out := make([]ColorType, 0, len(seasonTable))
	for _, e := range seasonTable {
		out = append(out, e.colorType)
	}
	return out
}

// RawColorResult is a provider reply decoded from JSON but not yet trusted.
type RawColorResult map[string]interface{}

// ColorAnalysisResult is the canonical, post-normalization answer of a model.
type ColorAnalysisResult struct {
	PersonalColorType ColorType  `json:"personal_color_type"`
	Season            Season     `json:"season"`
	Subtype           string     `json:"subtype"`
	Undertone         Undertone  `json:"undertone"`
	Confidence        float64    `json:"confidence"`
	Reasoning         string     `json:"reasoning"`
	SourceModel       ProviderID `json:"source_model"`

	// Notes records normalization corrections (season conflicts, defaulted
	// confidence, ...).
	Notes []string `json:"notes,omitempty"`
}

// Consistent reports whether Season and Subtype match PersonalColorType.
func (r ColorAnalysisResult) Consistent() bool {
	e, ok := lookupColorType(r.PersonalColorType)
	return ok && e.season == r.Season && e.subtype == r.Subtype
}

// OutcomeStatus tells whether a model call produced a usable result.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// ParticipantRole is the part a model played in a request.
type ParticipantRole string

const (
	// RoleVoter is a parallel-mode participant.
	RoleVoter ParticipantRole = "voter"
	// RoleCandidate is a hybrid-mode analyst whose answer goes to the judge.
	RoleCandidate ParticipantRole = "candidate"
	// RoleJudge is the hybrid-mode judge.
	RoleJudge ParticipantRole = "judge"
)

// ModelOutcome is the per-model entry of a decision's diagnostic trail.
// Failed calls are kept with their failure kind rather than dropped.
type ModelOutcome struct {
	Provider    ProviderID           `json:"provider"`
	Role        ParticipantRole      `json:"role"`
	Status      OutcomeStatus        `json:"status"`
	Result      *ColorAnalysisResult `json:"result,omitempty"`
	FailureKind string               `json:"failure_kind,omitempty"`
	Error       string               `json:"error,omitempty"`
	LatencyMS   int64                `json:"latency_ms"`
}

// Succeeded returns true if the outcome carries a normalized result.
func (o ModelOutcome) Succeeded() bool {
	return o.Status == OutcomeSuccess && o.Result != nil
}

// EnsembleDecision is the merged answer returned for one request.
type EnsembleDecision struct {
	RequestID         string            `json:"request_id"`
	Mode              Mode              `json:"mode"`
	PersonalColorType ColorType         `json:"personal_color_type"`
	Season            Season            `json:"season"`
	Subtype           string            `json:"subtype"`
	Undertone         Undertone         `json:"undertone"`
	Confidence        float64           `json:"confidence"`
	Reasoning         string            `json:"reasoning"`
	AggregationMethod AggregationMethod `json:"aggregation_method"`
	ModelResults      []ModelOutcome    `json:"model_results"`
	AgreementRatio    float64           `json:"agreement_ratio"`

	// ReducedEnsemble is set when fewer models contributed than were dispatched.
	ReducedEnsemble bool `json:"reduced_ensemble"`
	// JudgeFallback is set when the hybrid judge failed and the best
	// candidate was returned instead.
	JudgeFallback bool     `json:"judge_fallback"`
	Diagnostics   []string `json:"diagnostics,omitempty"`

	CompletedAt time.Time `json:"completed_at"`
}

// SuccessCount returns the number of participants that produced a result.
func (d *EnsembleDecision) SuccessCount() int {
	n := 0
	for _, o := range d.ModelResults {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

func (d *EnsembleDecision) addDiagnostic(format string, args ...interface{}) {
	d.Diagnostics = append(d.Diagnostics, fmt.Sprintf(format, args...))
}

// applyType sets the type and its derived season and subtype.
func (d *EnsembleDecision) applyType(t ColorType) {
	d.PersonalColorType = t
	d.Season = t.Season()
	d.Subtype = t.Subtype()
}

// RequestState is a step of the per-request state machine.
type RequestState string

const (
	StateDispatched  RequestState = "DISPATCHED"
	StateCollecting  RequestState = "COLLECTING"
	StateAggregating RequestState = "AGGREGATING"
	StateJudging     RequestState = "JUDGING"
	StateDone        RequestState = "DONE"
	StateFailed      RequestState = "FAILED"
)

// IsTerminal returns true for DONE and FAILED.
func (s RequestState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether the state machine allows s → next.
func (s RequestState) CanTransition(next RequestState) bool {
	switch s {
	case StateDispatched:
		return next == StateCollecting
	case StateCollecting:
		return next == StateAggregating || next == StateJudging || next == StateFailed
	case StateAggregating, StateJudging:
		return next == StateDone || next == StateFailed
	default:
		return false
	}
}
