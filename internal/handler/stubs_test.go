package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/evaluation"
	"github.com/ligth279/xilov5-overhual/internal/models"
)

const testSecret = "classroom-secret"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func bearer(t *testing.T, sub, role string) map[string]string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "role": role})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return map[string]string{fiber.HeaderAuthorization: "Bearer " + signed}
}

type stubLessonService struct {
	completedSeen []string
	imported      []byte
}

func (s *stubLessonService) ListGrades(context.Context) ([]dto.GradeResponse, error) {
	return []dto.GradeResponse{{ID: "grade_5", Name: "Grade 5"}}, nil
}

func (s *stubLessonService) ListSubjects(_ context.Context, grade string) ([]dto.SubjectResponse, error) {
	if grade != "grade_5" {
		return nil, evaluation.ErrNotFound
	}
	return []dto.SubjectResponse{{ID: "math", Name: "Mathematics"}}, nil
}

func (s *stubLessonService) ListLessons(context.Context, string, string) ([]dto.LessonSummary, error) {
	return []dto.LessonSummary{{ID: "fractions_basic"}}, nil
}

func (s *stubLessonService) GetLesson(_ context.Context, _, _, lessonID string) (models.Lesson, error) {
	if lessonID != "fractions_basic" {
		return models.Lesson{}, evaluation.ErrNotFound
	}
	return models.Lesson{
		ID:    "fractions_basic",
		Title: "Introduction to Fractions",
		Sections: []models.Section{{
			ID:    "section_1",
			Title: "What is a fraction?",
			Questions: []models.QuestionItem{{
				ID: "q1", Question: "What is the top number called?", Answer: "numerator",
			}},
		}},
	}, nil
}

func (s *stubLessonService) GetSection(ctx context.Context, grade, subject, lessonID, sectionID string) (models.Section, error) {
	lesson, err := s.GetLesson(ctx, grade, subject, lessonID)
	if err != nil {
		return models.Section{}, err
	}
	section, ok := lesson.FindSection(sectionID)
	if !ok {
		return models.Section{}, evaluation.ErrNotFound
	}
	return *section, nil
}

func (s *stubLessonService) GetQuestion(context.Context, dto.QuestionRef) (evaluation.Question, error) {
	return evaluation.Question{}, evaluation.ErrNotFound
}

func (s *stubLessonService) CheckPrerequisites(_ context.Context, _, _, lessonID string, completed []string) (dto.PrerequisiteCheckResponse, error) {
	s.completedSeen = completed
	return dto.PrerequisiteCheckResponse{
		LessonID:      lessonID,
		Prerequisites: []string{"fractions_basic"},
		Missing:       []string{},
		CanStart:      true,
	}, nil
}

func (s *stubLessonService) NextLessons(context.Context, string, string, string) ([]dto.LessonSummary, error) {
	return []dto.LessonSummary{{ID: "fractions_compare"}}, nil
}

func (s *stubLessonService) Search(_ context.Context, query string) ([]dto.LessonSearchResult, error) {
	return []dto.LessonSearchResult{{LessonID: "fractions_basic", Title: query}}, nil
}

func (s *stubLessonService) Import(_ context.Context, grade, subject string, payload []byte) (dto.LessonImportResponse, error) {
	s.imported = payload
	return dto.LessonImportResponse{Grade: grade, Subject: subject, Lesson: dto.LessonSummary{ID: "imported"}}, nil
}

type stubEvaluationService struct {
	result    dto.EvaluateAnswerResponse
	err       error
	lastReq   dto.EvaluateAnswerRequest
	lastReset *dto.ResetAttemptsRequest
}

func (s *stubEvaluationService) Evaluate(_ context.Context, req dto.EvaluateAnswerRequest) (dto.EvaluateAnswerResponse, error) {
	s.lastReq = req
	return s.result, s.err
}

func (s *stubEvaluationService) Hint(_ context.Context, req dto.HintRequest) (dto.HintResponse, error) {
	return dto.HintResponse{Hint: "Look at the top.", HintLevel: req.HintLevel, TotalHints: 3, HasMore: true}, s.err
}

func (s *stubEvaluationService) ResetAttempts(_ context.Context, req dto.ResetAttemptsRequest) (dto.ResetAttemptsResponse, error) {
	s.lastReset = &req
	return dto.ResetAttemptsResponse{Cleared: 2}, s.err
}

type stubChatService struct {
	err    error
	frames []dto.ChatStreamEvent
}

func (s *stubChatService) Ask(_ context.Context, req dto.ChatRequest) (dto.ChatResponse, error) {
	if s.err != nil {
		return dto.ChatResponse{}, s.err
	}
	return dto.ChatResponse{SessionID: "s1", Response: "echo: " + req.Message}, nil
}

func (s *stubChatService) AskDoubt(ctx context.Context, req dto.DoubtChatRequest) (dto.ChatResponse, error) {
	return s.Ask(ctx, req.ChatRequest)
}

func (s *stubChatService) Stream(_ context.Context, _ dto.ChatRequest, emit func(dto.ChatStreamEvent) error) error {
	if s.err != nil {
		return s.err
	}
	for _, frame := range s.frames {
		if err := emit(frame); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubChatService) Clear(context.Context, string) error { return s.err }

func (s *stubChatService) Languages() []dto.LanguageResponse {
	return []dto.LanguageResponse{{Code: "en", Name: "English", Native: "English"}}
}

type stubProgressService struct {
	completed []string
	deleted   bool
	lastUser  string
}

func (s *stubProgressService) StartLesson(_ context.Context, req dto.LessonProgressRequest) (dto.LessonProgressResponse, error) {
	s.lastUser = req.UserID
	return dto.LessonProgressResponse{LessonID: req.LessonID, Status: "in_progress"}, nil
}

func (s *stubProgressService) UpdateSection(_ context.Context, req dto.UpdateSectionRequest) (dto.LessonProgressResponse, error) {
	return dto.LessonProgressResponse{LessonID: req.LessonID, CurrentSection: req.SectionID}, nil
}

func (s *stubProgressService) RecordAnswer(context.Context, dto.RecordAnswerRequest) (dto.QuestionProgressResponse, error) {
	return dto.QuestionProgressResponse{Attempts: 1, Correct: true}, nil
}

func (s *stubProgressService) CompleteLesson(context.Context, dto.LessonProgressRequest) (dto.LessonProgressResponse, error) {
	return dto.LessonProgressResponse{}, evaluation.ErrNotFound
}

func (s *stubProgressService) LessonProgress(_ context.Context, req dto.LessonProgressRequest) (dto.LessonProgressResponse, error) {
	return dto.LessonProgressResponse{LessonID: req.LessonID}, nil
}

func (s *stubProgressService) UserProgress(_ context.Context, userID string) (dto.UserProgressResponse, error) {
	return dto.UserProgressResponse{UserID: userID}, nil
}

func (s *stubProgressService) CompletedLessons(context.Context, string) ([]string, error) {
	return s.completed, nil
}

func (s *stubProgressService) SubjectProgress(_ context.Context, query dto.SubjectProgressQuery) (dto.SubjectProgressResponse, error) {
	return dto.SubjectProgressResponse{Grade: query.Grade, Subject: query.Subject}, nil
}

func (s *stubProgressService) Dashboard(_ context.Context, userID string) (dto.DashboardStats, error) {
	s.lastUser = userID
	return dto.DashboardStats{UserID: userID, Accuracy: 66.7}, nil
}

func (s *stubProgressService) AddStudyTime(context.Context, dto.AddTimeRequest) (dto.LessonProgressResponse, error) {
	return dto.LessonProgressResponse{TimeSpentMinutes: 10}, nil
}

func (s *stubProgressService) ResetLesson(context.Context, dto.LessonProgressRequest) (bool, error) {
	return false, nil
}

func (s *stubProgressService) DeleteUser(context.Context, string) (bool, error) {
	return s.deleted, nil
}

func (s *stubProgressService) ConsumeEvaluations(context.Context, *nats.Conn) error { return nil }
