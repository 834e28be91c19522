package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ligth279/xilov5-overhual/internal/config"
	"github.com/ligth279/xilov5-overhual/internal/database"
	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/evaluation"
	"github.com/ligth279/xilov5-overhual/internal/handler"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/repository"
	"github.com/ligth279/xilov5-overhual/internal/router"
	"github.com/ligth279/xilov5-overhual/internal/service"
	"github.com/ligth279/xilov5-overhual/pkg/ai"
)

const jwtSecret = "integration-secret"

func setupTutorApp(t *testing.T, model *ai.MockGenerator) *fiber.App {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.CopyFS(dir, os.DirFS(filepath.Join("..", "..", "data", "lessons"))))
	lessonRepo, err := repository.NewFileLessonRepository(dir)
	require.NoError(t, err)

	db, err := database.Connect("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	cfg := config.Config{AppName: "Xilo Test", AppEnv: "test", JWTSecret: jwtSecret, RateLimitMax: 1000, AIProvider: "mock"}

	lessons := service.NewLessonService(lessonRepo, nil, 0, logger)
	progress := service.NewProgressService(repository.NewProgressRepository(db), logger)
	evaluations := service.NewEvaluationService(service.EvaluationDeps{
		Lessons:     lessons,
		Evaluator:   evaluation.NewEvaluator(evaluation.NewModelCategorizer(model, evaluation.CategorizerConfig{})),
		Attempts:    repository.NewMemoryAttemptStore(0),
		Progress:    progress,
		Logs:        repository.NewEvaluationLogRepository(db),
		Events:      service.NewEventPublisher(nil, nil, logger),
		MaxAttempts: 3,
	}, logger)
	chat := service.NewChatService(model, repository.NewMemoryChatMemory(3), lessons, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		LessonHandler:     handler.NewLessonHandler(lessons, cfg.JWTSecret, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluations, chat, validate, logger),
		ProgressHandler:   handler.NewProgressHandler(progress, lessons, validate, logger),
		ChatHandler:       handler.NewChatHandler(chat, validate, logger),
		StatusHandler:     handler.NewStatusHandler(service.NewStatusService(model, cfg.AIProvider, logger), logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})
	return app
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "role": role}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func call(t *testing.T, app *fiber.App, method, path, bearer string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func TestTutorEndToEndFlow(t *testing.T) {
	model := ai.NewMockGenerator(ai.MockResponse{Text: "Think about the number on top."})
	app := setupTutorApp(t, model)
	student := token(t, "student_1", "student")

	lesson := map[string]string{"grade": "grade_5", "subject": "math", "lesson_id": "fractions_basic"}
	answer := func(text string) map[string]string {
		return map[string]string{
			"user_id": "student_1", "session_id": "tab-1",
			"grade": "grade_5", "subject": "math", "lesson_id": "fractions_basic",
			"section_id": "section_1", "question_id": "q1", "answer": text,
		}
	}

	// Step 1: browse the lesson without answers
	resp := call(t, app, http.MethodGet, "/api/lessons/grade_5/math/fractions_basic", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var lessonResp envelope[dto.LessonResponse]
	decode(t, resp, &lessonResp)
	require.Equal(t, "fractions_basic", lessonResp.Data.ID)

	// Step 2: start the lesson
	resp = call(t, app, http.MethodPost, "/api/progress/start-lesson", student, lesson)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Step 3: a related wrong answer earns the first hint
	resp = call(t, app, http.MethodPost, "/api/lessons/evaluate-answer", student, answer("denominator"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var first envelope[dto.EvaluateAnswerResponse]
	decode(t, resp, &first)
	require.False(t, first.Data.IsCorrect)
	require.NotNil(t, first.Data.HintLevel)
	require.Equal(t, 0, *first.Data.HintLevel)
	require.Equal(t, 2, first.Data.AttemptsRemaining)

	// Step 4: the correct answer resolves the question
	resp = call(t, app, http.MethodPost, "/api/lessons/evaluate-answer", student, answer("numerator"))
	var second envelope[dto.EvaluateAnswerResponse]
	decode(t, resp, &second)
	require.True(t, second.Data.IsCorrect)
	require.Equal(t, 1.0, second.Data.Confidence)
	require.True(t, second.Data.Resolved)

	// Step 5: a resolved question rejects further attempts
	resp = call(t, app, http.MethodPost, "/api/lessons/evaluate-answer", student, answer("numerator"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Step 6: progress reflects both attempts
	resp = call(t, app, http.MethodGet, "/api/progress/lesson?grade=grade_5&subject=math&lesson_id=fractions_basic", student, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var progressResp envelope[dto.LessonProgressResponse]
	decode(t, resp, &progressResp)
	q1 := progressResp.Data.QuestionsAnswered["q1"]
	require.True(t, q1.Correct)
	require.Equal(t, 2, q1.Attempts)
	require.False(t, q1.FirstAttemptCorrect)

	// Step 7: completing the lesson unlocks the next one
	resp = call(t, app, http.MethodPost, "/api/progress/complete-lesson", student, lesson)
	var completed envelope[dto.LessonProgressResponse]
	decode(t, resp, &completed)
	require.Equal(t, 100.0, completed.Data.TotalScore)

	resp = call(t, app, http.MethodGet, "/api/progress/check-prerequisites?grade=grade_5&subject=math&lesson_id=fractions_compare", student, nil)
	var check envelope[dto.PrerequisiteCheckResponse]
	decode(t, resp, &check)
	require.True(t, check.Data.CanStart)

	// Step 8: students cannot answer or read for each other
	intruder := token(t, "student_2", "student")
	resp = call(t, app, http.MethodPost, "/api/lessons/evaluate-answer", intruder, answer("numerator"))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp = call(t, app, http.MethodPost, "/api/lessons/reset-attempts", intruder, map[string]string{
		"user_id": "student_1", "session_id": "tab-1",
		"grade": "grade_5", "subject": "math", "lesson_id": "fractions_basic", "section_id": "section_1",
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = call(t, app, http.MethodGet, "/api/progress/dashboard?user_id=student_2", student, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp = call(t, app, http.MethodGet, "/api/progress/dashboard", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestUnrelatedAnswerClosesQuizAndScrapesMetrics(t *testing.T) {
	app := setupTutorApp(t, ai.NewMockGenerator(ai.MockResponse{Text: "UNRELATED"}))

	resp := call(t, app, http.MethodPost, "/api/lessons/evaluate-answer", token(t, "student_3", "student"), map[string]string{
		"grade": "grade_5", "subject": "english", "lesson_id": "poetry_basics",
		"section_id": "section_1", "question_id": "q1", "answer": "a volcano",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result envelope[dto.EvaluateAnswerResponse]
	decode(t, resp, &result)
	require.True(t, result.Data.CloseQuiz)
	require.Nil(t, result.Data.HintLevel)

	resp = call(t, app, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "xilo_evaluations_total"))

	resp = call(t, app, http.MethodGet, "/health", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(middleware.HeaderCorrelationID))
}
