// Package adminapi exposes a read-only HTTP view of the chat server's
// state for operators: health, connected users, and room rosters. It
// never mutates ServerState — all writes happen through the TCP protocol.
package adminapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/brady131313/rschat/internal/chatstate"
)

// Server is the Echo application.
type Server struct {
	echo  *echo.Echo
	state chatstate.ServerState
}

// New constructs an Echo app with read-only introspection routes over
// state.
func New(state chatstate.ServerState) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, state: state}
	s.registerRoutes()
	return s
}

// requestLogger returns Echo middleware that logs each HTTP request via slog.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			path := req.URL.Path

			if path == "/health" {
				slog.Debug("http request",
					"method", req.Method,
					"path", path,
					"status", c.Response().Status,
					"duration_ms", time.Since(start).Milliseconds(),
				)
			} else {
				slog.Info("http request",
					"method", req.Method,
					"path", path,
					"status", c.Response().Status,
					"duration_ms", time.Since(start).Milliseconds(),
					"remote", c.RealIP(),
				)
			}
			return nil
		}
	}
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/rooms", s.handleListRooms)
	s.echo.GET("/api/users", s.handleListUsers)
	s.echo.GET("/api/rooms/:name", s.handleRoom)
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down admin api")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		slog.Info("admin api stopped")
		return nil
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Users  int    `json:"users"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status: "ok",
		Users:  len(s.state.Users()),
	})
}

type roomsResponse struct {
	Rooms []string `json:"rooms"`
}

func (s *Server) handleListRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, roomsResponse{Rooms: s.state.Rooms()})
}

type usersResponse struct {
	Users []string `json:"users"`
}

func (s *Server) handleListUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, usersResponse{Users: s.state.Users()})
}

type roomResponse struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

func (s *Server) handleRoom(c echo.Context) error {
	name := c.Param("name")
	members, ok := s.state.RoomMembers(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "room not found")
	}
	return c.JSON(http.StatusOK, roomResponse{Room: name, Users: members})
}
