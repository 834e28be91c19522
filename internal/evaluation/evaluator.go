package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Evaluator composes the lexical, spelling and categorizer stages. It holds no
// per-student state and is safe for concurrent use.
type Evaluator struct {
	categorizer       Categorizer
	spellingThreshold float64
	logger            zerolog.Logger
}

// Option customises an Evaluator.
type Option func(*Evaluator)

// WithSpellingThreshold overrides DefaultSpellingThreshold.
func WithSpellingThreshold(threshold float64) Option {
	return func(e *Evaluator) {
		if threshold > 0 && threshold <= 1 {
			e.spellingThreshold = threshold
		}
	}
}

// WithLogger attaches a logger used to report degraded evaluations.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger.With().Str("component", "evaluator").Logger()
	}
}

// NewEvaluator builds an Evaluator around categorizer.
func NewEvaluator(categorizer Categorizer, opts ...Option) *Evaluator {
	e := &Evaluator{
		categorizer:       categorizer,
		spellingThreshold: DefaultSpellingThreshold,
		logger:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate checks studentAnswer against q and returns the result with the
// updated state. The input state is left untouched. Model failures degrade
// to a predefined hint and are never returned.
func (e *Evaluator) Evaluate(ctx context.Context, q Question, studentAnswer string, state AttemptState) (Result, AttemptState, error) {
	if state.Resolved {
		return Result{}, state, ErrPreconditionViolation
	}
	if state.AttemptsMade >= state.budget() {
		return Result{}, state, fmt.Errorf("%w: %d of %d attempts used", ErrPreconditionViolation, state.AttemptsMade, state.budget())
	}
	if strings.TrimSpace(studentAnswer) == "" {
		return Result{}, state, fmt.Errorf("%w: answer is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(q.ExpectedAnswer) == "" {
		return Result{}, state, fmt.Errorf("%w: question %q has no expected answer", ErrInvalidInput, q.ID)
	}

	next := state.clone()

	match := MatchLexical(studentAnswer, q.ExpectedAnswer, q.AcceptableVariants)
	if match.Matched() {
		res, updated := correct(next, match)
		return res, updated, nil
	}

	next.AttemptsMade++

	if checkSpelling(studentAnswer, q.ExpectedAnswer, e.spellingThreshold).IsLikelyTypo {
		res, updated := spellingRetry(next, q)
		return res, updated, nil
	}

	if e.categorizer == nil {
		res, updated := relatedRetry(next, q, "", true)
		return res, updated, nil
	}

	cat, err := e.categorizer.Categorize(ctx, q, studentAnswer, next.AttemptsMade-1)
	if err != nil {
		if !errors.Is(err, ErrModelUnavailable) {
			err = fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		e.logger.Warn().Err(err).Str("question_id", q.ID).Msg("categorizer unavailable, using predefined hint")
		res, updated := relatedRetry(next, q, "", true)
		return res, updated, nil
	}

	if cat.Verdict == VerdictUnrelated {
		res, updated := closeQuiz(next)
		return res, updated, nil
	}

	res, updated := relatedRetry(next, q, cat.Explanation, false)
	return res, updated, nil
}
