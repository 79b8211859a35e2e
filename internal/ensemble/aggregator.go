package ensemble

import (
	"fmt"
	"sort"
)

// Aggregator combines the normalized results of a parallel request.
type Aggregator struct {
	cfg Config
}

// NewAggregator returns an aggregator using the threshold and provider
// priority of cfg.
func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg.clone()}
}

// typeTally accumulates the votes cast for one color type.
type typeTally struct {
	colorType ColorType
	votes     int
	confSum   float64
	confSqSum float64
	// rank is the best provider priority among the voters.
	rank    int
	members []ColorAnalysisResult
}

func (t *typeTally) meanConfidence() float64 {
	if t.votes == 0 {
		return 0
	}
	return t.confSum / float64(t.votes)
}

// Aggregate merges results with method. results are the survivors only;
// the caller owns ModelResults, RequestID and CompletedAt on the returned
// decision.
func (a *Aggregator) Aggregate(method AggregationMethod, results []ColorAnalysisResult) (*EnsembleDecision, error) {
	if !method.IsParallel() {
		return nil, fmt.Errorf("aggregation method %q is not a parallel method", method)
	}
	switch len(results) {
	case 0:
		return nil, &AggregationError{
			Kind:   AggregationAllModelsFailed,
			Method: method,
			Detail: "no model produced a usable result",
		}
	case 1:
		return a.single(method, results[0]), nil
	}

	tallies := a.tally(results)
	switch method {
	case MethodVoting:
		return a.vote(method, tallies, len(results)), nil
	case MethodWeightedAverage:
		return a.weighted(tallies, len(results)), nil
	default:
		return a.consensus(tallies, len(results))
	}
}

// single returns the only surviving result unchanged.
func (a *Aggregator) single(method AggregationMethod, r ColorAnalysisResult) *EnsembleDecision {
	d := &EnsembleDecision{
		Mode:              ModeParallel,
		Undertone:         r.Undertone,
		Confidence:        r.Confidence,
		Reasoning:         r.Reasoning,
		AggregationMethod: method,
		AgreementRatio:    1.0,
		ReducedEnsemble:   true,
	}
	d.applyType(r.PersonalColorType)
	d.addDiagnostic("ensemble reduced to a single result from %s; returned verbatim", r.SourceModel)
	return d
}

// tally groups results by type. The returned slice is in order of first
// appearance by provider priority.
func (a *Aggregator) tally(results []ColorAnalysisResult) []*typeTally {
	ordered := make([]ColorAnalysisResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return a.cfg.priority(ordered[i].SourceModel) < a.cfg.priority(ordered[j].SourceModel)
	})

	index := make(map[ColorType]*typeTally)
	var out []*typeTally
	for _, r := range ordered {
		t, ok := index[r.PersonalColorType]
		if !ok {
			t = &typeTally{colorType: r.PersonalColorType, rank: a.cfg.priority(r.SourceModel)}
			index[r.PersonalColorType] = t
			out = append(out, t)
		}
		t.votes++
		t.confSum += r.Confidence
		t.confSqSum += r.Confidence * r.Confidence
		t.members = append(t.members, r)
	}
	return out
}

// byVotes ranks by vote count, then confidence sum, then provider priority.
func byVotes(tallies []*typeTally) []*typeTally {
	ranked := append([]*typeTally(nil), tallies...)
	sort.SliceStable(ranked, func(i, j int) bool {
		x, y := ranked[i], ranked[j]
		if x.votes != y.votes {
			return x.votes > y.votes
		}
		if x.confSum != y.confSum {
			return x.confSum > y.confSum
		}
		return x.rank < y.rank
	})
	return ranked
}

// byWeight ranks by confidence weight, then vote count, then provider priority.
func byWeight(tallies []*typeTally) []*typeTally {
	ranked := append([]*typeTally(nil), tallies...)
	sort.SliceStable(ranked, func(i, j int) bool {
		x, y := ranked[i], ranked[j]
		if x.confSum != y.confSum {
			return x.confSum > y.confSum
		}
		if x.votes != y.votes {
			return x.votes > y.votes
		}
		return x.rank < y.rank
	})
	return ranked
}

func (a *Aggregator) vote(method AggregationMethod, tallies []*typeTally, total int) *EnsembleDecision {
	winner := byVotes(tallies)[0]
	d := a.decide(method, winner, total)
	d.Confidence = winner.meanConfidence()
	if len(tallies) > 1 && byVotes(tallies)[1].votes == winner.votes {
		d.addDiagnostic("vote tie broken in favor of %s", winner.colorType)
	}
	return d
}

func (a *Aggregator) weighted(tallies []*typeTally, total int) *EnsembleDecision {
	var totalWeight float64
	for _, t := range tallies {
		totalWeight += t.confSum
	}
	if totalWeight <= 0 {
		d := a.vote(MethodWeightedAverage, tallies, total)
		d.addDiagnostic("all confidences are zero; weighted average fell back to vote counting")
		return d
	}

	winner := byWeight(tallies)[0]
	d := a.decide(MethodWeightedAverage, winner, total)
	// Confidence-weighted mean of the winning votes, scaled by the share of
	// all weight they hold.
	d.Confidence = clamp01((winner.confSqSum / winner.confSum) * (winner.confSum / totalWeight))
	return d
}

func (a *Aggregator) consensus(tallies []*typeTally, total int) (*EnsembleDecision, error) {
	winner := byVotes(tallies)[0]
	share := float64(winner.votes) / float64(total)
	if share+1e-9 < a.cfg.ConsensusThreshold {
		return nil, &AggregationError{
			Kind:   AggregationNoConsensus,
			Method: MethodConsensus,
			Total:  total,
			Detail: fmt.Sprintf("best agreement %d/%d (%.3f) below threshold %.3f",
				winner.votes, total, share, a.cfg.ConsensusThreshold),
		}
	}
	d := a.decide(MethodConsensus, winner, total)
	d.Confidence = winner.meanConfidence()
	return d, nil
}

// decide fills the fields shared by every method.
func (a *Aggregator) decide(method AggregationMethod, winner *typeTally, total int) *EnsembleDecision {
	d := &EnsembleDecision{
		Mode:              ModeParallel,
		AggregationMethod: method,
		Undertone:         majorityUndertone(winner.members),
		AgreementRatio:    float64(winner.votes) / float64(total),
	}
	d.applyType(winner.colorType)
	d.Reasoning = ensembleReasoning(method, winner, total)
	return d
}

// majorityUndertone picks the undertone with the highest confidence weight
// among members; ties keep the first in priority order.
func majorityUndertone(members []ColorAnalysisResult) Undertone {
	weights := make(map[Undertone]float64)
	counts := make(map[Undertone]int)
	var order []Undertone
	for _, m := range members {
		if _, seen := counts[m.Undertone]; !seen {
			order = append(order, m.Undertone)
		}
		weights[m.Undertone] += m.Confidence
		counts[m.Undertone]++
	}
	best := order[0]
	for _, u := range order[1:] {
		if weights[u] > weights[best] || (weights[u] == weights[best] && counts[u] > counts[best]) {
			best = u
		}
	}
	return best
}

func ensembleReasoning(method AggregationMethod, winner *typeTally, total int) string {
	text := fmt.Sprintf("Ensemble result from %d models (%s). Consensus: %d/%d models agree on '%s'.",
		total, method, winner.votes, total, winner.colorType)
	best := winner.members[0]
	for _, m := range winner.members[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}
	if best.Reasoning != "" {
		text += " " + best.Reasoning
	}
	return text
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
