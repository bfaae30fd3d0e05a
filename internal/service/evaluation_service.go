package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bodylens/bodylens-go-api/internal/dto"
	"github.com/bodylens/bodylens-go-api/internal/models"
	"github.com/bodylens/bodylens-go-api/internal/observability"
	"github.com/bodylens/bodylens-go-api/internal/prompts"
	"github.com/bodylens/bodylens-go-api/internal/repository"
	"github.com/bodylens/bodylens-go-api/internal/scoring"
	"github.com/bodylens/bodylens-go-api/internal/window"
	"github.com/bodylens/bodylens-go-api/pkg/vlm"
)

// Fetcher resolves an image URL into raw bytes. Retry, caching, and header
// spoofing live behind this boundary.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// EvaluationConfig tunes the pipeline.
type EvaluationConfig struct {
	Thresholds scoring.Thresholds
	// GateFastPairs truncates each stage-1 group to its first n pairs.
	// Both gate groups hold a single pair today, so the default of 1 still
	// evaluates everything; raise it if the gate groups ever grow.
	GateFastPairs int
	// CacheTTL bounds how long a URL's decision is served from cache.
	CacheTTL time.Duration
	// DefaultTimeout applies when a request does not carry its own.
	DefaultTimeout time.Duration
}

func (c EvaluationConfig) withDefaults() EvaluationConfig {
	if c.Thresholds == (scoring.Thresholds{}) {
		c.Thresholds = scoring.Defaults()
	}
	if c.GateFastPairs <= 0 {
		c.GateFastPairs = 1
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	return c
}

// EvaluateOptions are the per-request pipeline knobs.
type EvaluateOptions struct {
	Strategy  scoring.Strategy
	WeightKey scoring.WeightKey
}

// EvaluationService runs the two-stage gated scoring pipeline.
type EvaluationService interface {
	Analyze(ctx context.Context, req dto.AnalyzeRequest) ([]dto.AnalyzeResult, error)
	EvaluateBatch(ctx context.Context, req dto.EvaluateRequest) ([]dto.EvaluationResponse, error)
	WindowSnapshot(userID string) dto.WindowResponse
	WindowReset(userID string)
	ListEvaluations(ctx context.Context, filter repository.EvaluationFilter) (dto.EvaluationListResponse, error)
}

type evaluationService struct {
	scorer    vlm.Scorer
	fetcher   Fetcher
	windows   *window.Store
	repo      repository.EvaluationRepository
	cache     *redis.Client
	publisher InterventionPublisher
	validator *validator.Validate
	cfg       EvaluationConfig
	logger    zerolog.Logger
}

// NewEvaluationService wires the pipeline. repo, cache, and publisher may be
// nil; the corresponding side effects are then skipped.
func NewEvaluationService(
	scorer vlm.Scorer,
	fetcher Fetcher,
	windows *window.Store,
	repo repository.EvaluationRepository,
	cache *redis.Client,
	publisher InterventionPublisher,
	validate *validator.Validate,
	cfg EvaluationConfig,
	logger zerolog.Logger,
) EvaluationService {
	return &evaluationService{
		scorer:    scorer,
		fetcher:   fetcher,
		windows:   windows,
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		validator: validate,
		cfg:       cfg.withDefaults(),
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
	}
}

// Analyze returns raw oracle scores for caller-supplied prompts. Each URL is
// handled independently; one failure never aborts the batch.
func (s *evaluationService) Analyze(ctx context.Context, req dto.AnalyzeRequest) ([]dto.AnalyzeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	results := make([]dto.AnalyzeResult, 0, len(req.URLs))
	for _, url := range req.URLs {
		result := dto.AnalyzeResult{URL: url}

		callCtx, cancel := s.requestContext(ctx, req.TimeoutSec)
		image, err := s.fetcher.Fetch(callCtx, url)
		if err == nil {
			var scores map[string]float64
			scores, err = s.scorer.Score(callCtx, image, req.Prompts)
			result.Scores = scores
		}
		cancel()

		if err != nil {
			result.Error = err.Error()
			s.logger.Warn().Err(err).Str("url", url).Msg("analyze failed for url")
		}
		results = append(results, result)
	}

	return results, nil
}

// EvaluateBatch runs the full pipeline over each URL, optionally feeding the
// per-user exposure window, the audit log, and the intervention publisher.
func (s *evaluationService) EvaluateBatch(ctx context.Context, req dto.EvaluateRequest) ([]dto.EvaluationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	strategy, err := scoring.ParseStrategy(req.Agg)
	if err != nil {
		return nil, err
	}
	weightKey, err := scoring.ParseWeightKey(req.WeightKey)
	if err != nil {
		return nil, err
	}
	opts := EvaluateOptions{Strategy: strategy, WeightKey: weightKey}

	results := make([]dto.EvaluationResponse, 0, len(req.URLs))
	for _, url := range req.URLs {
		callCtx, cancel := s.requestContext(ctx, req.TimeoutSec)
		result := s.evaluate(callCtx, url, opts)
		cancel()

		if req.UserID != "" {
			result.Window = s.pushWindow(ctx, req.UserID, url, result)
		}
		s.record(ctx, req.UserID, result)
		results = append(results, result)
	}

	return results, nil
}

// evaluate runs stage-1 gating and stage-2 voting for one image. It always
// returns a fully populated response; hard failures surface in the Error
// field, business failures in the flags.
func (s *evaluationService) evaluate(ctx context.Context, url string, opts EvaluateOptions) dto.EvaluationResponse {
	start := time.Now()
	defer func() {
		observability.EvaluationLatency().Observe(time.Since(start).Seconds())
	}()

	result := dto.EvaluationResponse{
		URL:           url,
		VotesRequired: s.cfg.Thresholds.TotalVoteRequire,
		Agg:           string(opts.Strategy),
		WeightKey:     string(opts.WeightKey),
		Thresholds:    dto.NewThresholdsView(s.cfg.Thresholds),
	}

	if cached, ok := s.readCache(ctx, url, opts); ok {
		return cached
	}

	image, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		result.Error = fmt.Sprintf("fetch image: %v", err)
		observability.Evaluations().WithLabelValues(observability.OutcomeError).Inc()
		s.logger.Warn().Err(err).Str("url", url).Msg("image fetch failed")
		return result
	}

	// Stage 1: person and female gates in one batched oracle call.
	female := prompts.Female.Truncate(s.cfg.GateFastPairs)
	person := prompts.Person.Truncate(s.cfg.GateFastPairs)

	gateScores, failed := s.score(ctx, image, &result, prompts.Flatten(female, person))
	if failed {
		return result
	}

	result.Gate.Female = s.judgeGroup(gateScores, female)
	result.Gate.Person = s.judgeGroup(gateScores, person)
	result.Gate.FemaleScore = scoring.GateScore(result.Gate.Female)
	result.Gate.PersonScore = scoring.GateScore(result.Gate.Person)
	result.Gate.Passed = result.Gate.PersonScore >= s.cfg.Thresholds.Gate &&
		result.Gate.FemaleScore >= s.cfg.Thresholds.Gate

	if !result.Gate.Passed {
		// Gate failure short-circuits before the second oracle call.
		observability.Evaluations().WithLabelValues(observability.OutcomeGateFailed).Inc()
		s.writeCache(ctx, url, opts, result)
		return result
	}

	// Stage 2: every form-fit and body-exposure pair, never truncated.
	voteScores, failed := s.score(ctx, image, &result, prompts.Flatten(prompts.FormFit, prompts.BodyExposure))
	if failed {
		return result
	}

	result.FormFit = s.judgeGroup(voteScores, prompts.FormFit)
	result.BodyExposure = s.judgeGroup(voteScores, prompts.BodyExposure)

	passed := make([]scoring.Judgment, 0, len(result.FormFit)+len(result.BodyExposure))
	for _, j := range append(append([]scoring.Judgment{}, result.FormFit...), result.BodyExposure...) {
		if j.Passed {
			passed = append(passed, j)
		}
	}

	result.Votes = len(passed)
	result.VotesPassed = result.Votes >= s.cfg.Thresholds.TotalVoteRequire

	// The representative value is computed even when the vote fails, so the
	// audit trail shows what would have been reported; it becomes the final
	// probability only when the vote requirement holds.
	if value, meta, ok := scoring.Aggregate(passed, opts.Strategy, opts.WeightKey); ok {
		result.ClothingValue = &value
		result.AggMeta = meta
	}

	if result.VotesPassed && result.ClothingValue != nil {
		result.FinalProb = *result.ClothingValue
		observability.Evaluations().WithLabelValues(observability.OutcomePassed).Inc()
	} else {
		observability.Evaluations().WithLabelValues(observability.OutcomeInsufficientVotes).Inc()
	}

	s.writeCache(ctx, url, opts, result)
	return result
}

// score performs one batched oracle call, folding failure modes into the
// result. The bool reports whether evaluation must stop.
func (s *evaluationService) score(ctx context.Context, image []byte, result *dto.EvaluationResponse, batch []string) (map[string]float64, bool) {
	scores, err := s.scorer.Score(ctx, image, batch)
	if err == nil {
		return scores, false
	}

	if errors.Is(err, vlm.ErrIncompleteScores) {
		// Fail closed: a partially scored batch is never judged.
		result.Incomplete = true
		observability.Evaluations().WithLabelValues(observability.OutcomeIncomplete).Inc()
		s.logger.Warn().Err(err).Str("url", result.URL).Msg("oracle returned incomplete coverage")
	} else {
		result.Error = fmt.Sprintf("score image: %v", err)
		observability.Evaluations().WithLabelValues(observability.OutcomeError).Inc()
		s.logger.Error().Err(err).Str("url", result.URL).Msg("oracle call failed")
	}
	return nil, true
}

func (s *evaluationService) judgeGroup(scores map[string]float64, group prompts.Group) []scoring.Judgment {
	judgments := make([]scoring.Judgment, 0, len(group.Pairs))
	for _, pair := range group.Pairs {
		pos, neg := scoring.Renormalize(scores[pair.Positive], scores[pair.Negative])
		j := s.cfg.Thresholds.Judge(pos, neg)
		j.Positive = pair.Positive
		j.Negative = pair.Negative
		judgments = append(judgments, j)
	}
	return judgments
}

// pushWindow feeds the user's exposure window after the probability is
// known. A failed evaluation must not poison the window, so errors fall back
// to a read-only decision over the current contents.
func (s *evaluationService) pushWindow(ctx context.Context, userID, url string, result dto.EvaluationResponse) *window.Decision {
	var decision window.Decision
	if result.Error != "" {
		decision = s.windows.Decide(userID)
	} else {
		decision = s.windows.Push(userID, result.FinalProb)
	}

	if decision.Intervention {
		observability.Interventions().Inc()
		if s.publisher != nil {
			event := InterventionEvent{
				UserID:     userID,
				URL:        url,
				Cumulative: decision.Cumulative,
				Window:     decision.Window,
				OccurredAt: time.Now().UTC(),
			}
			if err := s.publisher.Publish(ctx, event); err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to publish intervention event")
			}
		}
	}

	return &decision
}

func (s *evaluationService) record(ctx context.Context, userID string, result dto.EvaluationResponse) {
	if s.repo == nil || result.Error != "" {
		return
	}

	entry := models.Evaluation{
		URL:         result.URL,
		UserID:      userID,
		FinalProb:   result.FinalProb,
		Votes:       result.Votes,
		GatePassed:  result.Gate.Passed,
		PersonScore: result.Gate.PersonScore,
		FemaleScore: result.Gate.FemaleScore,
		Agg:         result.Agg,
	}
	if result.Window != nil {
		entry.Intervention = result.Window.Intervention
	}

	if err := s.repo.Create(ctx, &entry); err != nil {
		s.logger.Warn().Err(err).Str("url", result.URL).Msg("failed to persist evaluation record")
	}
}

// WindowSnapshot returns the user's current exposure state without mutating it.
func (s *evaluationService) WindowSnapshot(userID string) dto.WindowResponse {
	decision := s.windows.Decide(userID)
	return dto.WindowResponse{
		UserID:       userID,
		Window:       decision.Window,
		Cumulative:   decision.Cumulative,
		Intervention: decision.Intervention,
	}
}

// WindowReset clears one user's exposure window.
func (s *evaluationService) WindowReset(userID string) {
	s.windows.Reset(userID)
}

// ListEvaluations pages through persisted audit entries.
func (s *evaluationService) ListEvaluations(ctx context.Context, filter repository.EvaluationFilter) (dto.EvaluationListResponse, error) {
	if s.repo == nil {
		return dto.EvaluationListResponse{Items: []dto.EvaluationRecordResponse{}}, nil
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.EvaluationListResponse{}, err
	}

	items := make([]dto.EvaluationRecordResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.EvaluationRecordResponse{
			ID:           entry.ID,
			URL:          entry.URL,
			UserID:       entry.UserID,
			FinalProb:    entry.FinalProb,
			Votes:        entry.Votes,
			GatePassed:   entry.GatePassed,
			PersonScore:  entry.PersonScore,
			FemaleScore:  entry.FemaleScore,
			Agg:          entry.Agg,
			Intervention: entry.Intervention,
			CreatedAt:    entry.CreatedAt,
		})
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pagination := dto.PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}

	return dto.EvaluationListResponse{Items: items, Pagination: pagination}, nil
}

func (s *evaluationService) requestContext(ctx context.Context, timeoutSec int) (context.Context, context.CancelFunc) {
	timeout := s.cfg.DefaultTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *evaluationService) cacheKey(url string, opts EvaluateOptions) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("eval:%s:%s:%s", opts.Strategy, opts.WeightKey, hex.EncodeToString(sum[:]))
}

func (s *evaluationService) readCache(ctx context.Context, url string, opts EvaluateOptions) (dto.EvaluationResponse, bool) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return dto.EvaluationResponse{}, false
	}

	cached, err := s.cache.Get(ctx, s.cacheKey(url, opts)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read evaluation cache")
		}
		return dto.EvaluationResponse{}, false
	}

	var result dto.EvaluationResponse
	if err := json.Unmarshal([]byte(cached), &result); err != nil {
		return dto.EvaluationResponse{}, false
	}
	s.logger.Debug().Str("url", url).Msg("evaluation cache hit")
	return result, true
}

func (s *evaluationService) writeCache(ctx context.Context, url string, opts EvaluateOptions, result dto.EvaluationResponse) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 || result.Error != "" || result.Incomplete {
		return
	}

	// The window decision is per-user state and never cached.
	result.Window = nil

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(url, opts), payload, s.cfg.CacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store evaluation cache")
	}
}
