package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/observability"
)

// Evaluation event destinations.
const (
	EvaluationSubject = "xilo.evaluation.completed"
	EvaluationChannel = "xilo:evaluation:completed"
)

// EventPublisher fans evaluation events out to the configured buses.
type EventPublisher interface {
	PublishEvaluation(ctx context.Context, event dto.EvaluationEvent) error
	// Durable reports whether a bus with queue consumers is attached.
	Durable() bool
}

type busPublisher struct {
	redis  *redis.Client
	nats   *nats.Conn
	logger zerolog.Logger
}

// NewEventPublisher publishes to redis pub/sub and NATS. Either client may be nil.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, logger zerolog.Logger) EventPublisher {
	return &busPublisher{
		redis:  redisClient,
		nats:   natsConn,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *busPublisher) Durable() bool {
	return p.nats != nil
}

func (p *busPublisher) PublishEvaluation(ctx context.Context, event dto.EvaluationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.redis != nil {
		if err := p.redis.Publish(ctx, EvaluationChannel, payload).Err(); err != nil {
			observability.EventPublishFailures().WithLabelValues("redis").Inc()
			errs = append(errs, err)
		}
	}
	if p.nats != nil {
		if err := p.nats.Publish(EvaluationSubject, payload); err != nil {
			observability.EventPublishFailures().WithLabelValues("nats").Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
