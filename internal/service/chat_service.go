package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/evaluation"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/observability"
	"github.com/ligth279/xilov5-overhual/internal/repository"
	"github.com/ligth279/xilov5-overhual/pkg/ai"
)

// Generation bounds accepted from chat clients.
const (
	minChatTemperature     = 0.1
	maxChatTemperature     = 1.0
	defaultChatTemperature = 0.7
	minChatTokens          = 128
	maxChatTokens          = 2048
	defaultChatTokens      = 512
	maxLessonContextRunes  = 1500
)

// ErrChatUnavailable is returned when no tutor model can answer.
var ErrChatUnavailable = errors.New("tutor model unavailable")

// Stream statuses sent to chat clients.
const (
	StreamStarted    = "started"
	StreamGenerating = "generating"
	StreamCompleted  = "completed"
	StreamError      = "error"
)

// ChatService answers free-form doubts with a short per-session memory.
type ChatService interface {
	Ask(ctx context.Context, req dto.ChatRequest) (dto.ChatResponse, error)
	AskDoubt(ctx context.Context, req dto.DoubtChatRequest) (dto.ChatResponse, error)
	Stream(ctx context.Context, req dto.ChatRequest, emit func(dto.ChatStreamEvent) error) error
	Clear(ctx context.Context, sessionID string) error
	Languages() []dto.LanguageResponse
}

type chatService struct {
	model     ai.Generator
	memory    repository.ChatMemory
	lessons   LessonService
	sanitizer *bluemonday.Policy
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewChatService constructs the chat service. model may be nil when no provider is configured.
func NewChatService(model ai.Generator, memory repository.ChatMemory, lessons LessonService, logger zerolog.Logger) ChatService {
	return &chatService{
		model:     model,
		memory:    memory,
		lessons:   lessons,
		sanitizer: bluemonday.StrictPolicy(),
		tracer:    observability.Tracer(),
		logger:    logger.With().Str("component", "chat_service").Logger(),
	}
}

type chatTurn struct {
	sessionID string
	language  string
	message   string
	opts      ai.Options
}

func (s *chatService) Ask(ctx context.Context, req dto.ChatRequest) (dto.ChatResponse, error) {
	return s.ask(ctx, req, "", "rest")
}

// AskDoubt answers a question asked from inside a lesson, grounding the model in
// the section being studied.
func (s *chatService) AskDoubt(ctx context.Context, req dto.DoubtChatRequest) (dto.ChatResponse, error) {
	lessonContext, err := s.lessonContext(ctx, req)
	if err != nil {
		return dto.ChatResponse{}, err
	}
	return s.ask(ctx, req.ChatRequest, lessonContext, "doubt")
}

func (s *chatService) ask(ctx context.Context, req dto.ChatRequest, lessonContext, transport string) (dto.ChatResponse, error) {
	turn, err := s.prepare(ctx, req, lessonContext)
	if err != nil {
		observability.ChatRequests().WithLabelValues(transport, "rejected").Inc()
		return dto.ChatResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "chat.ask", trace.WithAttributes(
		attribute.String("chat.language", turn.language),
		attribute.String("chat.transport", transport),
	))
	defer span.End()

	start := time.Now()
	reply, err := s.model.Generate(ctx, turn.message, turn.opts)
	if err != nil {
		observability.ChatRequests().WithLabelValues(transport, "unavailable").Inc()
		span.RecordError(err)
		logger := middleware.LoggerWithCorrelation(ctx, s.logger)
		logger.Warn().Err(err).Msg("chat generation failed")
		return dto.ChatResponse{}, fmt.Errorf("%w: %w", ErrChatUnavailable, err)
	}
	reply = strings.TrimSpace(reply)
	elapsed := time.Since(start)

	s.remember(ctx, turn, reply)
	observability.ChatRequests().WithLabelValues(transport, "ok").Inc()

	return dto.ChatResponse{
		SessionID: turn.sessionID,
		Response:  reply,
		Metadata:  s.metadata(turn, reply, elapsed),
	}, nil
}

// Stream emits started, then generating chunks, then completed. Errors after the
// first frame are reported as an error frame.
func (s *chatService) Stream(ctx context.Context, req dto.ChatRequest, emit func(dto.ChatStreamEvent) error) error {
	turn, err := s.prepare(ctx, req, "")
	if err != nil {
		observability.ChatRequests().WithLabelValues("stream", "rejected").Inc()
		return err
	}

	ctx, span := s.tracer.Start(ctx, "chat.stream", trace.WithAttributes(attribute.String("chat.language", turn.language)))
	defer span.End()

	if err := emit(dto.ChatStreamEvent{Status: StreamStarted, SessionID: turn.sessionID, Message: "Generating response..."}); err != nil {
		return err
	}

	reply, err := ai.Stream(ctx, s.model, turn.message, turn.opts, func(chunk string) error {
		if chunk == "" {
			return nil
		}
		return emit(dto.ChatStreamEvent{Status: StreamGenerating, Chunk: chunk})
	})
	if err != nil {
		observability.ChatRequests().WithLabelValues("stream", "unavailable").Inc()
		span.RecordError(err)
		logger := middleware.LoggerWithCorrelation(ctx, s.logger)
		logger.Warn().Err(err).Msg("chat stream failed")
		return emit(dto.ChatStreamEvent{Status: StreamError, SessionID: turn.sessionID, Message: ErrChatUnavailable.Error()})
	}

	reply = strings.TrimSpace(reply)
	s.remember(ctx, turn, reply)
	observability.ChatRequests().WithLabelValues("stream", "ok").Inc()

	return emit(dto.ChatStreamEvent{Status: StreamCompleted, SessionID: turn.sessionID, FullResponse: reply, Progress: 1})
}

func (s *chatService) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session_id is required", evaluation.ErrInvalidInput)
	}
	return s.memory.Clear(ctx, sessionID)
}

func (s *chatService) Languages() []dto.LanguageResponse {
	out := make([]dto.LanguageResponse, 0, len(languageOrder))
	for _, code := range languageOrder {
		lang := languages[code]
		out = append(out, dto.LanguageResponse{Code: code, Name: lang.name, Native: lang.native})
	}
	return out
}

func (s *chatService) prepare(ctx context.Context, req dto.ChatRequest, lessonContext string) (chatTurn, error) {
	message := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(req.Message)))
	if message == "" {
		return chatTurn{}, fmt.Errorf("%w: message is empty", evaluation.ErrInvalidInput)
	}
	if s.model == nil {
		return chatTurn{}, ErrChatUnavailable
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	language := normalizeLanguage(req.Language)

	history, err := s.memory.History(ctx, sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("chat history unavailable, continuing without it")
		history = nil
	}
	messages := make([]ai.Message, 0, len(history)*2)
	for _, h := range history {
		messages = append(messages,
			ai.Message{Role: ai.RoleUser, Content: h.User},
			ai.Message{Role: ai.RoleAssistant, Content: h.Assistant},
		)
	}

	return chatTurn{
		sessionID: sessionID,
		language:  language,
		message:   message,
		opts: ai.Options{
			System:      systemPrompt(language, lessonContext),
			History:     messages,
			Temperature: clampTemperature(req.Temperature),
			MaxTokens:   clampTokens(req.MaxNewTokens),
			Stop:        []string{"\nUser:", "\nStudent:"},
		},
	}, nil
}

func (s *chatService) remember(ctx context.Context, turn chatTurn, reply string) {
	err := s.memory.Append(ctx, turn.sessionID, repository.ChatTurn{
		User:      turn.message,
		Assistant: reply,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", turn.sessionID).Msg("failed to store chat turn")
	}
}

func (s *chatService) metadata(turn chatTurn, reply string, elapsed time.Duration) dto.ChatMetadata {
	seconds := elapsed.Seconds()
	tps := 0.0
	if seconds > 0 {
		tps = roundTo(float64(len(strings.Fields(reply)))/seconds, 2)
	}
	return dto.ChatMetadata{
		Model:           s.model.Model(),
		Language:        turn.language,
		GenerationTime:  roundTo(seconds, 2),
		TokensPerSecond: tps,
		HistoryTurns:    len(turn.opts.History) / 2,
	}
}

func (s *chatService) lessonContext(ctx context.Context, req dto.DoubtChatRequest) (string, error) {
	if s.lessons == nil {
		return "", nil
	}
	lesson, err := s.lessons.GetLesson(ctx, req.Grade, req.Subject, req.LessonID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Lesson: %s", lesson.Title)
	if req.SectionID != "" {
		section, ok := lesson.FindSection(req.SectionID)
		if !ok {
			return "", fmt.Errorf("%w: section %q", evaluation.ErrNotFound, req.SectionID)
		}
		fmt.Fprintf(&b, "\nSection: %s\n%s", section.Title, section.Content)
	} else if lesson.Summary != "" {
		fmt.Fprintf(&b, "\n%s", lesson.Summary)
	}
	return truncateRunes(b.String(), maxLessonContextRunes), nil
}

func clampTemperature(v *float64) float64 {
	if v == nil {
		return defaultChatTemperature
	}
	switch {
	case *v < minChatTemperature:
		return minChatTemperature
	case *v > maxChatTemperature:
		return maxChatTemperature
	default:
		return *v
	}
}

func clampTokens(v *int) int {
	if v == nil {
		return defaultChatTokens
	}
	switch {
	case *v < minChatTokens:
		return minChatTokens
	case *v > maxChatTokens:
		return maxChatTokens
	default:
		return *v
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
