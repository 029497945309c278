package api

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	signDB "sign-scheduler-service/internal/sign-manager/db"
	"sign-scheduler-service/internal/sign-manager/services"
	"sign-scheduler-service/pkg/signwire"
)

// SignHandler exposes manual sign control, bypassing the scheduler.
type SignHandler struct {
	Executor *services.ExecutorService
}

func NewSignHandler(executor *services.ExecutorService) *SignHandler {
	return &SignHandler{Executor: executor}
}

type SetTextRequest struct {
	Text  string `json:"text"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"` // "#rrggbb", defaults to yellow
}

func (h *SignHandler) SetText(ctx context.Context, c *app.RequestContext) {
	var req SetTextRequest
	if err := c.Bind(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	if req.Text == "" {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Text cannot be empty"})
		return
	}
	if req.X < 0 || req.Y < 0 {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Position values must be non-negative"})
		return
	}
	colorHex := req.Color
	if colorHex == "" {
		colorHex = "#ffff00"
	}
	color, err := signDB.ParseHexColor(colorHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	response := h.Executor.SetText(req.Text, req.X, req.Y, color)
	if signwire.IsErrorResponse(response) {
		c.JSON(http.StatusBadGateway, utils.H{"error": response})
		return
	}
	c.JSON(http.StatusOK, utils.H{"response": response})
}

func (h *SignHandler) ClearSign(ctx context.Context, c *app.RequestContext) {
	response := h.Executor.ClearSign()
	if signwire.IsErrorResponse(response) {
		c.JSON(http.StatusBadGateway, utils.H{"error": response})
		return
	}
	c.JSON(http.StatusOK, utils.H{"response": response})
}
