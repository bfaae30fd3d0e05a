package dto

import (
	"time"

	"github.com/bodylens/bodylens-go-api/internal/scoring"
	"github.com/bodylens/bodylens-go-api/internal/window"
)

// AnalyzeRequest asks for raw oracle scores over caller-supplied prompts.
type AnalyzeRequest struct {
	URLs       []string `json:"urls" validate:"required,min=1,dive,required"`
	Prompts    []string `json:"prompts" validate:"required,min=2,dive,required"`
	TimeoutSec int      `json:"timeout" validate:"omitempty,min=1,max=120"`
}

// AnalyzeResult carries one URL's raw scores, or the error that stopped it.
type AnalyzeResult struct {
	URL    string             `json:"url"`
	Scores map[string]float64 `json:"scores,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// EvaluateRequest runs the full gated voting pipeline over each URL. When
// UserID is set, each result is pushed into that user's exposure window and
// the response is decorated with the window decision.
type EvaluateRequest struct {
	URLs       []string `json:"urls" validate:"required,min=1,dive,required"`
	Agg        string   `json:"agg" validate:"omitempty,oneof=max_pos max_gap weighted_pos weighted_gap"`
	WeightKey  string   `json:"weight_key" validate:"omitempty,oneof=diff confidence"`
	UserID     string   `json:"user_id"`
	TimeoutSec int      `json:"timeout" validate:"omitempty,min=1,max=120"`
}

// ThresholdsView echoes the active decision constants in each result so any
// stored evaluation can be audited against the policy that produced it.
type ThresholdsView struct {
	Margin              float64 `json:"margin_threshold"`
	BorderlineAbsMargin float64 `json:"borderline_abs_margin"`
	DiffMin             float64 `json:"diff_min"`
	Gate                float64 `json:"gate_threshold"`
	TotalVoteRequire    int     `json:"total_vote_require"`
}

// NewThresholdsView converts the scoring constants for transport.
func NewThresholdsView(t scoring.Thresholds) ThresholdsView {
	return ThresholdsView{
		Margin:              t.Margin,
		BorderlineAbsMargin: t.BorderlineAbsMargin,
		DiffMin:             t.DiffMin,
		Gate:                t.Gate,
		TotalVoteRequire:    t.TotalVoteRequire,
	}
}

// GateView is the stage-1 diagnostic block.
type GateView struct {
	Passed      bool               `json:"passed"`
	PersonScore float64            `json:"person_score"`
	FemaleScore float64            `json:"female_score"`
	Person      []scoring.Judgment `json:"person"`
	Female      []scoring.Judgment `json:"female"`
}

// EvaluationResponse is the complete outcome of evaluating one image. It is
// always fully populated for auditability: business failures (gate failure,
// insufficient votes, incomplete oracle coverage) are encoded in the flags,
// never as transport errors.
type EvaluationResponse struct {
	URL           string                `json:"url"`
	FinalProb     float64               `json:"final_prob"`
	ClothingValue *float64              `json:"clothing_value"`
	Gate          GateView              `json:"gate"`
	FormFit       []scoring.Judgment    `json:"form_fit"`
	BodyExposure  []scoring.Judgment    `json:"body_exposure"`
	Votes         int                   `json:"votes"`
	VotesRequired int                   `json:"votes_required"`
	VotesPassed   bool                  `json:"votes_passed"`
	Incomplete    bool                  `json:"incomplete,omitempty"`
	Agg           string                `json:"agg"`
	WeightKey     string                `json:"weight_key"`
	AggMeta       scoring.AggregateMeta `json:"agg_meta"`
	Thresholds    ThresholdsView        `json:"thresholds"`
	Error         string                `json:"error,omitempty"`
	Window        *window.Decision      `json:"window,omitempty"`
}

// WindowResponse exposes one user's exposure window state.
type WindowResponse struct {
	UserID       string    `json:"user_id"`
	Window       []float64 `json:"window"`
	Cumulative   float64   `json:"cumulative"`
	Intervention bool      `json:"intervention"`
}

// EvaluationRecordResponse is one persisted audit entry.
type EvaluationRecordResponse struct {
	ID           uint      `json:"id"`
	URL          string    `json:"url"`
	UserID       string    `json:"user_id,omitempty"`
	FinalProb    float64   `json:"final_prob"`
	Votes        int       `json:"votes"`
	GatePassed   bool      `json:"gate_passed"`
	PersonScore  float64   `json:"person_score"`
	FemaleScore  float64   `json:"female_score"`
	Agg          string    `json:"agg"`
	Intervention bool      `json:"intervention"`
	CreatedAt    time.Time `json:"created_at"`
}

// PaginationMeta describes paging of list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// EvaluationListResponse pages through persisted audit entries.
type EvaluationListResponse struct {
	Items      []EvaluationRecordResponse `json:"items"`
	Pagination PaginationMeta             `json:"pagination"`
}
