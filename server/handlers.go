package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arbiterhq/arbiter/governor"
	"github.com/arbiterhq/arbiter/pipeline"
)

// SubmitRunRequest is the POST /v1/runs body.
type SubmitRunRequest struct {
	UserID       string            `json:"userId"`
	ContextType  string            `json:"contextType"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Requirements map[string]int64  `json:"requirements,omitempty"`
}

// SubmitRunResponse carries the accepted run's pipeline ID.
type SubmitRunResponse struct {
	PipelineID string `json:"pipelineId"`
}

func (s *Server) handleSubmitRun(c echo.Context) error {
	var req SubmitRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}

	runCtx := pipeline.RunContext{
		UserID:      req.UserID,
		ContextType: req.ContextType,
		Metadata:    req.Metadata,
	}
	if len(req.Requirements) > 0 {
		runCtx.Requirements = make(map[governor.Resource]int64, len(req.Requirements))
		for name, amount := range req.Requirements {
			runCtx.Requirements[governor.Resource(name)] = amount
		}
	}

	pipelineID, err := s.coordinator.SubmitRun(c.Request().Context(), runCtx)
	if err != nil {
		if errors.Is(err, pipeline.ErrResourceDenied) {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": err.Error(),
			})
		}
		if errors.Is(err, pipeline.ErrShuttingDown) {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"error": err.Error(),
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, SubmitRunResponse{PipelineID: pipelineID})
}
