package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/runs", s.ListRunsHandler)
	e.GET("/runs/:id", s.GetRunHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	if s.store == nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	return c.String(http.StatusOK, "health_check: OK")
}

func (s *Server) ListRunsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.List())
}

func (s *Server) GetRunHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid run id")
	}
	run, ok := s.store.Get(id)
	if !ok {
		return c.String(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, run)
}
