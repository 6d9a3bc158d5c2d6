package tracker

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes adds run status endpoints to an Echo group.
func (t *Tracker) RegisterRoutes(g *echo.Group) {
	g.GET("/runs/:id", t.handleGetStatus)
	g.GET("/runs/:id/history", t.handleGetHistory)
}

func (t *Tracker) handleGetStatus(c echo.Context) error {
	record := t.GetStatus(c.Param("id"))
	if record == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
	}
	return c.JSON(http.StatusOK, record)
}

func (t *Tracker) handleGetHistory(c echo.Context) error {
	return c.JSON(http.StatusOK, t.GetHistory(c.Param("id")))
}
