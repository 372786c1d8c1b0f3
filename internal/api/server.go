// Package api serves the pipeline over a local HTTP interface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/takecut/internal/domain/edits"
	"github.com/forPelevin/takecut/internal/pipeline"
	"github.com/forPelevin/takecut/internal/store"
)

// RunService is the part of the pipeline the API drives.
type RunService interface {
	Process(ctx context.Context, input, script string) (pipeline.RunResult, error)
	Edit(ctx context.Context, input string, payload edits.Payload) (pipeline.RunResult, error)
	Cut(ctx context.Context, input string, start, end float64) (pipeline.RunResult, error)
	Split(ctx context.Context, input string, parts int) (pipeline.RunResult, error)
	Runs(ctx context.Context, limit int) ([]*store.Run, error)
	Run(ctx context.Context, id string) (*store.Run, error)
}

type ServerConfig struct {
	Addr      string
	Runner    RunService
	Logger    zerolog.Logger
	StartTime time.Time
	Version   string
}

type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:        cfg.Addr,
			Handler:     NewRouter(cfg),
			ReadTimeout: 15 * time.Second,
			// runs block until the media work is done
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
