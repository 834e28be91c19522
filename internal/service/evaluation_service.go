package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/evaluation"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/models"
	"github.com/ligth279/xilov5-overhual/internal/observability"
	"github.com/ligth279/xilov5-overhual/internal/repository"
)

// Identity used when a client evaluates without naming a learner or session.
const (
	AnonymousUserID  = "anonymous"
	DefaultSessionID = "default"
	noMoreHints      = "No more hints available. Try your best!"
)

// EvaluationService runs student submissions through the evaluation pipeline
// and keeps their attempt state between requests.
type EvaluationService interface {
	Evaluate(ctx context.Context, req dto.EvaluateAnswerRequest) (dto.EvaluateAnswerResponse, error)
	Hint(ctx context.Context, req dto.HintRequest) (dto.HintResponse, error)
	ResetAttempts(ctx context.Context, req dto.ResetAttemptsRequest) (dto.ResetAttemptsResponse, error)
}

// EvaluationDeps groups the collaborators of the evaluation service. Progress,
// Logs and Events are optional.
type EvaluationDeps struct {
	Lessons     LessonService
	Evaluator   *evaluation.Evaluator
	Attempts    repository.AttemptStore
	Progress    ProgressService
	Logs        repository.EvaluationLogRepository
	Events      EventPublisher
	MaxAttempts int
}

type evaluationService struct {
	deps      EvaluationDeps
	sanitizer *bluemonday.Policy
	locks     *keyedMutex
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewEvaluationService constructs the evaluation service.
func NewEvaluationService(deps EvaluationDeps, logger zerolog.Logger) EvaluationService {
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = evaluation.DefaultMaxAttempts
	}
	return &evaluationService{
		deps:      deps,
		sanitizer: bluemonday.StrictPolicy(),
		locks:     newKeyedMutex(),
		tracer:    observability.Tracer(),
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, req dto.EvaluateAnswerRequest) (dto.EvaluateAnswerResponse, error) {
	start := time.Now()
	defer func() {
		observability.EvaluationLatency().Observe(time.Since(start).Seconds())
	}()

	ctx, span := s.tracer.Start(ctx, "evaluation.evaluate", trace.WithAttributes(
		attribute.String("lesson.id", req.LessonID),
		attribute.String("question.id", req.QuestionID),
	))
	defer span.End()

	answer := s.sanitize(req.Answer)
	if answer == "" {
		return dto.EvaluateAnswerResponse{}, fmt.Errorf("%w: answer is empty", evaluation.ErrInvalidInput)
	}

	question, err := s.deps.Lessons.GetQuestion(ctx, req.QuestionRef)
	if err != nil {
		return dto.EvaluateAnswerResponse{}, err
	}

	key := repository.AttemptKey{
		UserID:     defaultString(req.UserID, AnonymousUserID),
		SessionID:  defaultString(req.SessionID, DefaultSessionID),
		Grade:      req.Grade,
		Subject:    req.Subject,
		LessonID:   req.LessonID,
		SectionID:  req.SectionID,
		QuestionID: req.QuestionID,
	}

	unlock := s.locks.Lock(key.String())
	defer unlock()

	state, found, err := s.deps.Attempts.Load(ctx, key)
	if err != nil {
		span.RecordError(err)
		return dto.EvaluateAnswerResponse{}, err
	}
	if !found {
		state = evaluation.NewAttemptState(s.deps.MaxAttempts)
	}

	result, next, err := s.deps.Evaluator.Evaluate(ctx, question, answer, state)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return dto.EvaluateAnswerResponse{}, err
	}

	if err := s.deps.Attempts.Save(ctx, key, next); err != nil {
		span.RecordError(err)
		return dto.EvaluateAnswerResponse{}, err
	}

	outcome := evaluationOutcome(result, next)
	observability.Evaluations().WithLabelValues(string(result.Method), outcome).Inc()
	span.SetAttributes(
		attribute.String("evaluation.method", string(result.Method)),
		attribute.String("evaluation.outcome", outcome),
		attribute.Bool("evaluation.degraded", result.Degraded),
	)

	s.afterEvaluation(ctx, key, result, next)

	return dto.EvaluateAnswerResponse{
		IsCorrect:         result.IsCorrect,
		Confidence:        result.Confidence,
		Feedback:          result.Feedback,
		HintLevel:         result.HintLevel,
		CloseQuiz:         result.CloseQuiz,
		Method:            string(result.Method),
		AttemptsMade:      next.AttemptsMade,
		AttemptsRemaining: next.Remaining(),
		Resolved:          next.Resolved,
	}, nil
}

// afterEvaluation records the submission in progress, the audit log and the event
// buses. None of these may change the evaluation outcome, so failures are logged.
func (s *evaluationService) afterEvaluation(ctx context.Context, key repository.AttemptKey, result evaluation.Result, state evaluation.AttemptState) {
	logger := middleware.LoggerWithCorrelation(ctx, s.logger)
	hintsUsed := len(state.HintsShown)

	durable := s.deps.Events != nil && s.deps.Events.Durable()
	if s.deps.Progress != nil && !durable {
		_, err := s.deps.Progress.RecordAnswer(ctx, dto.RecordAnswerRequest{
			LessonProgressRequest: dto.LessonProgressRequest{
				UserID:   key.UserID,
				Grade:    key.Grade,
				Subject:  key.Subject,
				LessonID: key.LessonID,
			},
			QuestionID: key.QuestionID,
			IsCorrect:  result.IsCorrect,
			HintsUsed:  hintsUsed,
		})
		if err != nil {
			logger.Warn().Err(err).Str("user_id", key.UserID).Msg("failed to record answer progress")
		}
	}

	if s.deps.Logs != nil {
		entry := &models.EvaluationLog{
			UserID:       key.UserID,
			SessionID:    key.SessionID,
			Grade:        key.Grade,
			Subject:      key.Subject,
			LessonID:     key.LessonID,
			SectionID:    key.SectionID,
			QuestionID:   key.QuestionID,
			Method:       string(result.Method),
			IsCorrect:    result.IsCorrect,
			Confidence:   result.Confidence,
			CloseQuiz:    result.CloseQuiz,
			HintLevel:    result.HintLevel,
			AttemptsMade: state.AttemptsMade,
			Degraded:     result.Degraded,
			Metadata: datatypes.JSONMap{
				"correlation_id": middleware.CorrelationIDFromContext(ctx),
				"hints_shown":    state.HintsShown,
				"resolved":       state.Resolved,
			},
		}
		if err := s.deps.Logs.Create(ctx, entry); err != nil {
			logger.Warn().Err(err).Msg("failed to persist evaluation log")
		}
	}

	if s.deps.Events != nil {
		event := dto.EvaluationEvent{
			ID:            uuid.NewString(),
			CorrelationID: middleware.CorrelationIDFromContext(ctx),
			UserID:        key.UserID,
			SessionID:     key.SessionID,
			Grade:         key.Grade,
			Subject:       key.Subject,
			LessonID:      key.LessonID,
			SectionID:     key.SectionID,
			QuestionID:    key.QuestionID,
			IsCorrect:     result.IsCorrect,
			Confidence:    result.Confidence,
			Method:        string(result.Method),
			CloseQuiz:     result.CloseQuiz,
			AttemptsMade:  state.AttemptsMade,
			HintsUsed:     hintsUsed,
			Resolved:      state.Resolved,
			OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.deps.Events.PublishEvaluation(ctx, event); err != nil {
			logger.Warn().Err(err).Msg("failed to publish evaluation event")
		}
	}
}

func (s *evaluationService) Hint(ctx context.Context, req dto.HintRequest) (dto.HintResponse, error) {
	if req.HintLevel < 0 {
		return dto.HintResponse{}, fmt.Errorf("%w: hint level must not be negative", evaluation.ErrInvalidInput)
	}
	question, err := s.deps.Lessons.GetQuestion(ctx, req.QuestionRef)
	if err != nil {
		return dto.HintResponse{}, err
	}

	resp := dto.HintResponse{
		Hint:       noMoreHints,
		HintLevel:  req.HintLevel,
		TotalHints: len(question.Hints),
	}
	if req.HintLevel < len(question.Hints) {
		resp.Hint = question.Hints[req.HintLevel]
		resp.HasMore = req.HintLevel+1 < len(question.Hints)
	}
	return resp, nil
}

func (s *evaluationService) ResetAttempts(ctx context.Context, req dto.ResetAttemptsRequest) (dto.ResetAttemptsResponse, error) {
	key := repository.AttemptKey{
		UserID:    defaultString(req.UserID, AnonymousUserID),
		SessionID: defaultString(req.SessionID, DefaultSessionID),
		Grade:     req.Grade,
		Subject:   req.Subject,
		LessonID:  req.LessonID,
		SectionID: req.SectionID,
	}
	cleared, err := s.deps.Attempts.ResetSection(ctx, key)
	if err != nil {
		return dto.ResetAttemptsResponse{}, err
	}
	logger := middleware.LoggerWithCorrelation(ctx, s.logger)
	logger.Info().
		Str("user_id", key.UserID).
		Str("section_id", key.SectionID).
		Int("cleared", cleared).
		Msg("attempt states reset")
	return dto.ResetAttemptsResponse{Cleared: cleared}, nil
}

// sanitize strips markup; entities bluemonday escapes are turned back into text.
func (s *evaluationService) sanitize(answer string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(answer)))
}

func evaluationOutcome(result evaluation.Result, state evaluation.AttemptState) string {
	switch {
	case result.IsCorrect:
		return "correct"
	case result.CloseQuiz:
		return "closed"
	case state.Resolved:
		return "revealed"
	default:
		return "retry"
	}
}

func defaultString(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

// keyedMutex serialises work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
