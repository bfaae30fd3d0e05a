package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/bodylens/bodylens-go-api/internal/dto"
	"github.com/bodylens/bodylens-go-api/internal/repository"
	"github.com/bodylens/bodylens-go-api/internal/service"
	"github.com/bodylens/bodylens-go-api/internal/utils"
)

// EvaluationHandler exposes the scoring pipeline over HTTP.
type EvaluationHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires evaluation routes.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/analyze", h.analyze)
	router.Post("/evaluate", h.evaluate)
	router.Get("/evaluations", h.list)
}

func (h *EvaluationHandler) analyze(c *fiber.Ctx) error {
	var payload dto.AnalyzeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	results, err := h.service.Analyze(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("analyze batch failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to analyze images")
	}

	return utils.SendSuccess(c, "analysis completed", results)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	// An authenticated caller evaluates against its own window unless the
	// request names a user explicitly.
	if payload.UserID == "" {
		payload.UserID = userIDFromContext(c)
	}

	results, err := h.service.EvaluateBatch(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("evaluation batch failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to evaluate images")
	}

	return utils.SendSuccess(c, "evaluation completed", results)
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	filter := repository.EvaluationFilter{
		UserID:           c.Query("user_id"),
		InterventionOnly: c.QueryBool("intervention_only"),
		Page:             page,
		PageSize:         pageSize,
	}

	listing, err := h.service.ListEvaluations(c.Context(), filter)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list evaluations")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list evaluations")
	}

	return utils.SendSuccess(c, "evaluations retrieved", listing)
}
