package perf

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes adds the performance summary endpoint to an Echo group.
func (t *Tracker) RegisterRoutes(g *echo.Group) {
	g.GET("/performance", t.handleGetSummary)
}

func (t *Tracker) handleGetSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, t.GetSummary())
}
