package ai

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds a generation including time spent waiting for the slot.
const DefaultTimeout = 120 * time.Second

var (
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "xilo",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of language model generations",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"model"})

	generationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xilo",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of failed language model generations",
	}, []string{"model"})

	generationInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "xilo",
		Subsystem: "ai",
		Name:      "generation_in_flight",
		Help:      "Generations currently holding the model slot",
	})
)

// Serialized admits one generation at a time to the wrapped backend and bounds
// each call with a timeout. It never retries.
type Serialized struct {
	next    Generator
	slot    chan struct{}
	timeout time.Duration
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// NewSerialized wraps next with the single-slot guard.
func NewSerialized(next Generator, timeout time.Duration, logger zerolog.Logger) *Serialized {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Serialized{
		next:    next,
		slot:    make(chan struct{}, 1),
		timeout: timeout,
		tracer:  otel.Tracer("github.com/ligth279/xilov5-overhual/pkg/ai"),
		logger:  logger.With().Str("component", "ai_guard").Logger(),
	}
}

// Model returns the wrapped backend's model identifier.
func (s *Serialized) Model() string {
	return s.next.Model()
}

// Busy reports whether a generation currently holds the slot.
func (s *Serialized) Busy() bool {
	return len(s.slot) > 0
}

// Generate runs one guarded generation.
func (s *Serialized) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return s.run(ctx, "ai.generate", func(ctx context.Context) (string, error) {
		return s.next.Generate(ctx, prompt, opts)
	})
}

// GenerateStream runs one guarded streaming generation.
func (s *Serialized) GenerateStream(ctx context.Context, prompt string, opts Options, onChunk func(string) error) (string, error) {
	return s.run(ctx, "ai.generate_stream", func(ctx context.Context) (string, error) {
		return Stream(ctx, s.next, prompt, opts, onChunk)
	})
}

// Ping forwards to the wrapped backend when it supports health probes.
func (s *Serialized) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Serialized) run(parent context.Context, name string, call func(context.Context) (string, error)) (string, error) {
	model := s.next.Model()
	ctx, span := s.tracer.Start(parent, name, trace.WithAttributes(
		attribute.String("model", model),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		err := unavailable(model, ctx.Err())
		s.fail(span, model, err)
		return "", err
	}
	generationInFlight.Inc()
	defer func() {
		generationInFlight.Dec()
		<-s.slot
	}()

	start := time.Now()
	text, err := call(ctx)
	generationDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = unavailable(model, err)
		}
		s.fail(span, model, err)
		return text, err
	}

	return text, nil
}

func (s *Serialized) fail(span trace.Span, model string, err error) {
	generationFailures.WithLabelValues(model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn().Err(err).Str("model", model).Msg("generation failed")
}
