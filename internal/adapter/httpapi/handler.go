// Package httpapi exposes the orchestrator over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"stylist-orchestrator/internal/usecase"
)

// TurnRequest is the request payload for POST /v1/turns.
type TurnRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// Handler serves the conversational endpoints.
type Handler struct {
	orchestrator *usecase.Orchestrator
	logger       *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(orchestrator *usecase.Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, logger: logger}
}

// Register mounts the routes on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/turns", h.PostTurn)
}

// PostTurn runs one conversational turn and returns the structured result.
func (h *Handler) PostTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ThreadID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "thread_id is required"})
	}

	result, err := h.orchestrator.RunTurn(c.Request().Context(), req.ThreadID, req.Message)
	if err != nil {
		h.logger.Error("turn_failed",
			slog.String("thread_id", req.ThreadID),
			slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "turn failed"})
	}

	return c.JSON(http.StatusOK, result)
}
