package scoring

import "fmt"

// Strategy selects how passed judgments collapse into one representative
// probability. The set is closed; ParseStrategy rejects anything else.
type Strategy string

const (
	// StrategyMaxPos takes the positive probability of the strongest pair.
	StrategyMaxPos Strategy = "max_pos"
	// StrategyMaxGap takes the positive probability of the widest-gap pair.
	StrategyMaxGap Strategy = "max_gap"
	// StrategyWeightedPos is the weighted mean of positive probabilities.
	StrategyWeightedPos Strategy = "weighted_pos"
	// StrategyWeightedGap is the weighted mean of the gaps themselves, for
	// when the aggregate should reflect contrast strength.
	StrategyWeightedGap Strategy = "weighted_gap"
)

// DefaultStrategy is applied when a request leaves the selector empty.
const DefaultStrategy = StrategyWeightedPos

// ParseStrategy validates a request-supplied strategy selector.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyMaxPos, StrategyMaxGap, StrategyWeightedPos, StrategyWeightedGap:
		return Strategy(s), nil
	case "":
		return DefaultStrategy, nil
	}
	return "", fmt.Errorf("unknown aggregation strategy %q", s)
}

// WeightKey names the judgment field used as weight in the weighted modes.
type WeightKey string

const (
	// WeightDiff weights by the positive-minus-negative gap.
	WeightDiff WeightKey = "diff"
	// WeightConfidence weights by the strongest side's probability.
	WeightConfidence WeightKey = "confidence"
)

// ParseWeightKey validates a request-supplied weight key.
func ParseWeightKey(s string) (WeightKey, error) {
	switch WeightKey(s) {
	case WeightDiff, WeightConfidence:
		return WeightKey(s), nil
	case "":
		return WeightDiff, nil
	}
	return "", fmt.Errorf("unknown weight key %q", s)
}

// AggregateMeta describes how a representative value was produced.
type AggregateMeta struct {
	Mode      string  `json:"mode"`
	UsedVotes int     `json:"used_votes"`
	WeightSum float64 `json:"weight_sum,omitempty"`
	BestGap   float64 `json:"best_gap,omitempty"`
}

// Aggregate collapses the passed subset into one representative value. The
// second return reports whether a value exists at all (false when no judgment
// passed). Weighted modes fall back to max_pos when the weight sum is zero.
// Pure and idempotent: the same inputs always produce the same value.
func Aggregate(passed []Judgment, strategy Strategy, weight WeightKey) (float64, AggregateMeta, bool) {
	if len(passed) == 0 {
		return 0, AggregateMeta{Mode: string(strategy)}, false
	}

	switch strategy {
	case StrategyMaxGap:
		best := passed[0]
		for _, j := range passed[1:] {
			if j.Diff > best.Diff {
				best = j
			}
		}
		return best.PosProb, AggregateMeta{Mode: string(StrategyMaxGap), UsedVotes: len(passed), BestGap: best.Diff}, true

	case StrategyWeightedPos:
		if val, wsum, ok := weightedMean(passed, weight, false); ok {
			meta := AggregateMeta{Mode: fmt.Sprintf("%s[%s]", StrategyWeightedPos, weight), UsedVotes: len(passed), WeightSum: wsum}
			return val, meta, true
		}

	case StrategyWeightedGap:
		if val, wsum, ok := weightedMean(passed, weight, true); ok {
			meta := AggregateMeta{Mode: fmt.Sprintf("%s[%s]", StrategyWeightedGap, weight), UsedVotes: len(passed), WeightSum: wsum}
			return val, meta, true
		}
	}

	// max_pos, plus the fallback for degenerate weighted aggregations.
	best := passed[0]
	for _, j := range passed[1:] {
		if j.PosProb > best.PosProb {
			best = j
		}
	}
	mode := string(StrategyMaxPos)
	if strategy != StrategyMaxPos {
		mode = "fallback_" + mode
	}
	return best.PosProb, AggregateMeta{Mode: mode, UsedVotes: len(passed)}, true
}

// weightedMean averages either PosProb or Diff over judgments carrying a
// strictly positive weight. ok is false when no weight contributes.
func weightedMean(judgments []Judgment, weight WeightKey, useDiff bool) (val, weightSum float64, ok bool) {
	var num, den float64
	for _, j := range judgments {
		w := j.Diff
		if weight == WeightConfidence {
			w = j.Confidence
		}
		if w <= 0 {
			continue
		}
		v := j.PosProb
		if useDiff {
			v = j.Diff
		}
		num += w * v
		den += w
	}
	if den <= 0 {
		return 0, 0, false
	}
	return num / den, den, true
}

// GateScore aggregates one stage-1 group into a single score: the diff-
// weighted mean of positive probabilities, restricted to judgments with
// sufficient evidence and a positive gap. Zero when nothing is eligible.
func GateScore(judgments []Judgment) float64 {
	var num, den float64
	for _, j := range judgments {
		if !j.EvidenceOK || j.Diff <= 0 {
			continue
		}
		num += j.Diff * j.PosProb
		den += j.Diff
	}
	if den <= 0 {
		return 0
	}
	return num / den
}
