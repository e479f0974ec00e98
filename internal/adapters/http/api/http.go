// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-chi/chi/v5"

	"github.com/okian/jackcount/internal/domain/model"
	"github.com/okian/jackcount/internal/domain/pose"
	"github.com/okian/jackcount/internal/domain/types"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	SessionDependencies
	FrameDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	framesHandler   *FramesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		sessionsHandler: NewSessionsHandler(deps),
		framesHandler:   NewFramesHandler(deps),
	}
}

// NewRouter returns a chi router with every API route registered.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()
	NewServer(deps).Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.sessionsHandler.HandleCreate)
		r.Get("/", s.sessionsHandler.HandleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.sessionsHandler.HandleGet)
			r.Delete("/", s.sessionsHandler.HandleDelete)
			r.Post("/reset", s.sessionsHandler.HandleReset)
			r.Post("/frames", s.framesHandler.HandlePostFrame)
		})
	})
}

// frameRequest mirrors the OpenAPI schema for POST /sessions/{id}/frames.
type frameRequest = types.FrameRequest

var errSeqNegative = errors.New("seq must not be negative")

func validateFrame(req *frameRequest) error {
	if len(req.Keypoints) != pose.COCOKeypointCount {
		return fmt.Errorf("keypoints: got %d, want %d", len(req.Keypoints), pose.COCOKeypointCount)
	}
	if req.Seq < 0 {
		return errSeqNegative
	}
	for i, kp := range req.Keypoints {
		if !finite(kp.X) || !finite(kp.Y) || !finite(kp.Score) {
			return fmt.Errorf("keypoint %d is not a finite number", i)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type ackResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	FrameID   string `json:"frame_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FrameDependencies defines what the frame handler needs.
type FrameDependencies interface {
	Submit(ctx context.Context, f model.Frame) (types.FrameResult, error)
	Enqueue(ctx context.Context, f model.Frame) (duplicate bool, err error)
}
