package scoring

// Renormalize converts the raw scores of one pair taken from a jointly
// softmaxed batch back into a two-way distribution, so pairwise thresholds
// stay meaningful no matter how many prompts shared the batch. When the
// oracle put no mass on either prompt, both sides are defined as zero.
func Renormalize(rawPos, rawNeg float64) (posProb, negProb float64) {
	total := rawPos + rawNeg
	if total <= 0 {
		return 0, 0
	}
	return rawPos / total, rawNeg / total
}
