package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/bodylens/bodylens-go-api/internal/service"
	"github.com/bodylens/bodylens-go-api/internal/utils"
)

// WindowHandler exposes per-user exposure window state.
type WindowHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewWindowHandler constructs a window handler.
func NewWindowHandler(service service.EvaluationService, logger zerolog.Logger) *WindowHandler {
	return &WindowHandler{
		service: service,
		logger:  logger.With().Str("component", "window_handler").Logger(),
	}
}

// Register wires window routes.
func (h *WindowHandler) Register(router fiber.Router) {
	router.Get("/:user_id", h.snapshot)
	router.Delete("/:user_id", h.reset)
}

func (h *WindowHandler) snapshot(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "user id is required")
	}

	return utils.SendSuccess(c, "window retrieved", h.service.WindowSnapshot(userID))
}

func (h *WindowHandler) reset(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "user id is required")
	}

	h.service.WindowReset(userID)
	requestLogger(h.logger, c).Info().Str("user_id", userID).Msg("exposure window reset")
	return utils.SendSuccess(c, "window reset", h.service.WindowSnapshot(userID))
}
