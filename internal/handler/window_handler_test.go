package handler_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bodylens/bodylens-go-api/internal/dto"
	"github.com/bodylens/bodylens-go-api/internal/handler"
)

func newWindowApp(svc *mockEvaluationService) *fiber.App {
	app := fiber.New()
	handler.NewWindowHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/window"))
	return app
}

func TestWindowHandler_Snapshot(t *testing.T) {
	svc := &mockEvaluationService{
		snapshots: map[string]dto.WindowResponse{
			"alice": {UserID: "alice", Window: []float64{0.9, 0.95}, Cumulative: 1.85, Intervention: true},
		},
	}
	app := newWindowApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/window/alice", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool               `json:"success"`
		Data    dto.WindowResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "alice", response.Data.UserID)
	require.InDelta(t, 1.85, response.Data.Cumulative, 1e-9)
	require.True(t, response.Data.Intervention)
}

func TestWindowHandler_SnapshotUnseenUser(t *testing.T) {
	app := newWindowApp(&mockEvaluationService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/window/ghost", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.WindowResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Empty(t, response.Data.Window)
	require.False(t, response.Data.Intervention)
}

func TestWindowHandler_Reset(t *testing.T) {
	svc := &mockEvaluationService{
		snapshots: map[string]dto.WindowResponse{
			"bob": {UserID: "bob", Window: []float64{0.8}, Cumulative: 0.8},
		},
	}
	app := newWindowApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/window/bob", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"bob"}, svc.resets)

	var response struct {
		Data dto.WindowResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Empty(t, response.Data.Window, "reset responds with the cleared window")
}
