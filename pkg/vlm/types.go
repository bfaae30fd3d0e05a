// Package vlm abstracts the vision-language scoring oracle behind a single
// batched-scoring capability, so the decision pipeline never depends on a
// concrete model backend.
package vlm

import (
	"context"
	"errors"
)

// ErrIncompleteScores indicates the backend answered without covering every
// submitted prompt. Callers treat the whole batch as unusable.
var ErrIncompleteScores = errors.New("backend returned scores for fewer prompts than submitted")

// Scorer scores one image against an ordered list of text prompts and
// returns a probability per prompt, keyed by exact prompt text. Probabilities
// for prompts submitted together may be jointly softmax-normalized; callers
// renormalize per pair.
type Scorer interface {
	Score(ctx context.Context, image []byte, prompts []string) (map[string]float64, error)
}
