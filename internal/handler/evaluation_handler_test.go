package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/evaluation"
	"github.com/ligth279/xilov5-overhual/internal/handler"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/service"
)

const answerBody = `{"grade":"grade_5","subject":"math","lesson_id":"fractions_basic","section_id":"section_1","question_id":"q1","answer":"denominator","session_id":"s1"}`

func evaluationApp(evals *stubEvaluationService, chat *stubChatService) *fiber.App {
	app := fiber.New()
	handler.NewEvaluationHandler(evals, chat, validator.New(), zerolog.Nop()).Register(app.Group("/api/lessons"))
	return app
}

func TestEvaluateAnswerReturnsResultFields(t *testing.T) {
	level := 0
	evals := &stubEvaluationService{result: dto.EvaluateAnswerResponse{
		Feedback: "Think about the bottom.", HintLevel: &level, Method: "ai-related", AttemptsMade: 1, AttemptsRemaining: 2,
	}}
	app := evaluationApp(evals, &stubChatService{})

	resp, env := doJSON(t, app, http.MethodPost, "/api/lessons/evaluate-answer", answerBody, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	for _, field := range []string{"is_correct", "confidence", "feedback", "hint_level", "close_quiz"} {
		require.Contains(t, data, field)
	}
	require.Equal(t, false, data["is_correct"])
	require.Equal(t, float64(0), data["hint_level"])
	require.Equal(t, "s1", evals.lastReq.SessionID)
}

func TestEvaluateAnswerHintLevelNullWhenAbsent(t *testing.T) {
	evals := &stubEvaluationService{result: dto.EvaluateAnswerResponse{IsCorrect: true, Confidence: 1, Feedback: evaluation.FeedbackCorrect}}
	app := evaluationApp(evals, &stubChatService{})

	_, env := doJSON(t, app, http.MethodPost, "/api/lessons/evaluate-answer", answerBody, nil)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Contains(t, data, "hint_level")
	require.Nil(t, data["hint_level"])
}

func TestEvaluateAnswerMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: fmt.Errorf("%w: question q9", evaluation.ErrNotFound), status: http.StatusNotFound},
		{name: "precondition", err: evaluation.ErrPreconditionViolation, status: http.StatusBadRequest},
		{name: "invalid input", err: evaluation.ErrInvalidInput, status: http.StatusBadRequest},
		{name: "unexpected", err: fmt.Errorf("disk on fire"), status: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := evaluationApp(&stubEvaluationService{err: tc.err}, &stubChatService{})
			resp, env := doJSON(t, app, http.MethodPost, "/api/lessons/evaluate-answer", answerBody, nil)
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, env.Success)
		})
	}
}

func TestEvaluateAnswerValidatesPayload(t *testing.T) {
	evals := &stubEvaluationService{}
	app := evaluationApp(evals, &stubChatService{})

	resp, env := doJSON(t, app, http.MethodPost, "/api/lessons/evaluate-answer", `{"grade":"grade_5","answer":"x"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation failed", env.Message)
	require.Contains(t, string(env.Details), `"QuestionID":"required"`)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/lessons/evaluate-answer", `{not json`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, evals.lastReq.Answer)
}

func TestHintAndResetRoutes(t *testing.T) {
	app := evaluationApp(&stubEvaluationService{}, &stubChatService{})

	resp, env := doJSON(t, app, http.MethodPost, "/api/lessons/get-hint",
		`{"grade":"grade_5","subject":"math","lesson_id":"fractions_basic","section_id":"section_1","question_id":"q1","hint_level":1}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hint dto.HintResponse
	require.NoError(t, json.Unmarshal(env.Data, &hint))
	require.Equal(t, 1, hint.HintLevel)

	resp, env = doJSON(t, app, http.MethodPost, "/api/lessons/reset-attempts",
		`{"grade":"grade_5","subject":"math","lesson_id":"fractions_basic","section_id":"section_1"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reset dto.ResetAttemptsResponse
	require.NoError(t, json.Unmarshal(env.Data, &reset))
	require.Equal(t, 2, reset.Cleared)
}

func TestEvaluationRoutesRejectOtherStudents(t *testing.T) {
	evals := &stubEvaluationService{}
	app := fiber.New()
	handler.NewEvaluationHandler(evals, &stubChatService{}, validator.New(), zerolog.Nop()).
		Register(app.Group("/api/lessons", middleware.JWTProtected(testSecret)))

	const victimAnswer = `{"user_id":"student_1","grade":"grade_5","subject":"math","lesson_id":"fractions_basic","section_id":"section_1","question_id":"q1","answer":"x"}`
	const victimReset = `{"user_id":"student_1","grade":"grade_5","subject":"math","lesson_id":"fractions_basic","section_id":"section_1"}`

	resp, env := doJSON(t, app, http.MethodPost, "/api/lessons/evaluate-answer", victimAnswer, bearer(t, "student_2", "student"))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.False(t, env.Success)
	require.Empty(t, evals.lastReq.UserID)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/lessons/reset-attempts", victimReset, bearer(t, "student_2", "student"))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Nil(t, evals.lastReset)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/lessons/evaluate-answer", answerBody, bearer(t, "student_2", "student"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "student_2", evals.lastReq.UserID)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/lessons/reset-attempts", victimReset, bearer(t, "ms_rao", "teacher"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, evals.lastReset)
	require.Equal(t, "student_1", evals.lastReset.UserID)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/lessons/evaluate-answer", answerBody, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDoubtChatUnavailableIs503(t *testing.T) {
	app := evaluationApp(&stubEvaluationService{}, &stubChatService{err: service.ErrChatUnavailable})

	resp, env := doJSON(t, app, http.MethodPost, "/api/lessons/doubt-chat",
		`{"message":"why?","grade":"grade_5","subject":"math","lesson_id":"fractions_basic"}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, service.ErrChatUnavailable.Error(), env.Message)
}
