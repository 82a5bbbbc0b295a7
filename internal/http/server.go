package http

import (
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the operational surface of the relay process: health and
// metrics only. The business API that writes outbox entries lives in a
// different service.
type Server struct{ e *echo.Echo }

func NewServer(db *sqlx.DB) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health: readiness includes a database ping since a relay that lost
	// its store is not serving its purpose.
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/readyz", func(c echo.Context) error {
		if err := db.PingContext(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.String(http.StatusOK, "ok")
	})

	return &Server{e: e}
}

func (s *Server) Start(addr string) error { return s.e.Start(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
