// Package scoring implements the deterministic decision policy applied to
// oracle probabilities: per-pair threshold judging, per-pair renormalization
// of batched softmax scores, and the aggregation strategies that collapse
// many pair judgments into one representative probability.
package scoring

// Thresholds are the tunable decision constants. Zero values are never valid;
// construct via Defaults and override from configuration.
type Thresholds struct {
	// Margin is the minimum positive probability for a pair to count.
	Margin float64
	// BorderlineAbsMargin is the evidence floor: pairs whose strongest side
	// stays below it are treated as too ambiguous to vote.
	BorderlineAbsMargin float64
	// DiffMin is the minimum positive-minus-negative gap.
	DiffMin float64
	// Gate is the minimum stage-1 group score for evaluation to proceed.
	Gate float64
	// TotalVoteRequire is the minimum number of passed stage-2 pairs.
	TotalVoteRequire int
}

// Defaults returns the calibrated threshold set.
func Defaults() Thresholds {
	return Thresholds{
		Margin:              0.5,
		BorderlineAbsMargin: 0.12,
		DiffMin:             0.05,
		Gate:                0.3,
		TotalVoteRequire:    8,
	}
}

// Judgment is the outcome of judging one prompt pair against one image.
type Judgment struct {
	Positive   string  `json:"positive"`
	Negative   string  `json:"negative"`
	PosProb    float64 `json:"pos_prob"`
	NegProb    float64 `json:"neg_prob"`
	Diff       float64 `json:"diff"`
	EvidenceOK bool    `json:"evidence_ok"`
	MarginOK   bool    `json:"margin_ok"`
	GapOK      bool    `json:"gap_ok"`
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence"`
}

// Judge applies the three pass criteria to a renormalized probability pair.
// Pure; inputs are expected to already sum to one (or both be zero when the
// oracle had no mass on either prompt).
func (t Thresholds) Judge(posProb, negProb float64) Judgment {
	maxP := posProb
	if negProb > maxP {
		maxP = negProb
	}
	diff := posProb - negProb

	evidenceOK := maxP >= t.BorderlineAbsMargin
	marginOK := posProb >= t.Margin
	gapOK := diff >= t.DiffMin

	return Judgment{
		PosProb:    posProb,
		NegProb:    negProb,
		Diff:       diff,
		EvidenceOK: evidenceOK,
		MarginOK:   marginOK,
		GapOK:      gapOK,
		Passed:     evidenceOK && marginOK && gapOK,
		Confidence: maxP,
	}
}
