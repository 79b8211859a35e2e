package ensemble

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the orchestrator settings. It is copied into the orchestrator
// at construction and never mutated afterwards.
type Config struct {
	// CallTimeout bounds every analysis call.
	CallTimeout time.Duration
	// JudgeTimeout bounds the hybrid judge call.
	JudgeTimeout time.Duration

	DefaultMethod AggregationMethod
	DefaultJudge  ProviderID

	// ConsensusThreshold is the minimum share of results that must agree in
	// consensus mode. A share equal to the threshold passes.
	ConsensusThreshold float64

	// FallbackConfidence replaces a missing provider confidence.
	FallbackConfidence float64

	// ProviderOrder fixes both dispatch order and voting tie-break priority.
	// Hybrid mode needs all three providers; see HybridEnabled.
	ProviderOrder []ProviderID
}

// DefaultConsensusThreshold accepts two agreeing results out of three.
const DefaultConsensusThreshold = 2.0 / 3.0

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout:        15 * time.Second,
		JudgeTimeout:       20 * time.Second,
		DefaultMethod:      MethodWeightedAverage,
		DefaultJudge:       ProviderGemini,
		ConsensusThreshold: DefaultConsensusThreshold,
		FallbackConfidence: 0.5,
		ProviderOrder:      AllProviders(),
	}
}

// Validate checks the configuration for values the orchestrator cannot run with.
// A two-provider order is valid but runs parallel mode only: hybrid requests
// then fail with ErrHybridUnavailable.
func (c Config) Validate() error {
	if c.CallTimeout <= 0 {
		return errors.New("call timeout must be positive")
	}
	if c.JudgeTimeout <= 0 {
		return errors.New("judge timeout must be positive")
	}
	if !c.DefaultMethod.IsParallel() {
		return fmt.Errorf("invalid default aggregation method %q", c.DefaultMethod)
	}
	if !c.DefaultJudge.IsValid() {
		return fmt.Errorf("invalid default judge %q", c.DefaultJudge)
	}
	if c.ConsensusThreshold <= 0 || c.ConsensusThreshold > 1 {
		return fmt.Errorf("consensus threshold %.3f out of range (0,1]", c.ConsensusThreshold)
	}
	if c.FallbackConfidence < 0 || c.FallbackConfidence > 1 {
		return fmt.Errorf("fallback confidence %.3f out of range [0,1]", c.FallbackConfidence)
	}
	if len(c.ProviderOrder) < 2 || len(c.ProviderOrder) > 3 {
		return fmt.Errorf("provider order must list 2 or 3 providers, got %d", len(c.ProviderOrder))
	}
	seen := make(map[ProviderID]bool, len(c.ProviderOrder))
	for _, p := range c.ProviderOrder {
		if !p.IsValid() {
			return fmt.Errorf("invalid provider %q in provider order", p)
		}
		if seen[p] {
			return fmt.Errorf("duplicate provider %q in provider order", p)
		}
		seen[p] = true
	}
	return nil
}

// HybridEnabled reports whether the provider order leaves two candidates
// beside any judge.
func (c Config) HybridEnabled() bool {
	return len(c.ProviderOrder) == len(AllProviders())
}

// priority returns the tie-break rank of a provider; lower wins.
func (c Config) priority(p ProviderID) int {
	for i, candidate := range c.ProviderOrder {
		if candidate == p {
			return i
		}
	}
	return len(c.ProviderOrder)
}

// clone returns a copy that shares no slices with c.
func (c Config) clone() Config {
	out := c
	out.ProviderOrder = append([]ProviderID(nil), c.ProviderOrder...)
	return out
}
