package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/pkg/ai"
)

// Model readiness values reported by StatusService.
const (
	ModelReady       = "ready"
	ModelUnavailable = "unavailable"
)

// StatusService reports whether the tutor model can currently serve requests.
type StatusService interface {
	Status(ctx context.Context) dto.StatusResponse
}

type busyReporter interface {
	Busy() bool
}

type statusService struct {
	model    ai.Generator
	provider string
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewStatusService constructs the status service. model may be nil.
func NewStatusService(model ai.Generator, provider string, logger zerolog.Logger) StatusService {
	return &statusService{
		model:    model,
		provider: provider,
		timeout:  5 * time.Second,
		logger:   logger.With().Str("component", "status_service").Logger(),
	}
}

func (s *statusService) Status(ctx context.Context) dto.StatusResponse {
	resp := dto.StatusResponse{Status: ModelUnavailable, Provider: s.provider}
	if s.model == nil {
		resp.Detail = "no model provider configured"
		return resp
	}
	resp.Model = s.model.Model()

	if b, ok := s.model.(busyReporter); ok && b.Busy() {
		// the backend is answering someone else, so it is up
		resp.Busy = true
		resp.Status = ModelReady
		return resp
	}

	pinger, ok := s.model.(ai.Pinger)
	if !ok {
		resp.Status = ModelReady
		return resp
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := pinger.Ping(probeCtx); err != nil {
		s.logger.Debug().Err(err).Msg("model health probe failed")
		resp.Detail = err.Error()
		return resp
	}
	resp.Status = ModelReady
	return resp
}
