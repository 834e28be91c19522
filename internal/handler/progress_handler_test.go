package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/handler"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
)

func progressApp(progress *stubProgressService, lessons *stubLessonService, secret string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/progress", middleware.JWTProtected(secret))
	handler.NewProgressHandler(progress, lessons, validator.New(), zerolog.Nop()).Register(group)
	return app
}

const lessonBody = `{"user_id":"student_1","grade":"grade_5","subject":"math","lesson_id":"fractions_basic"}`

func TestProgressRoutesWithoutAuth(t *testing.T) {
	progress := &stubProgressService{}
	app := progressApp(progress, &stubLessonService{}, "")

	resp, env := doJSON(t, app, http.MethodPost, "/api/progress/start-lesson", lessonBody, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "student_1", progress.lastUser)
	var lesson dto.LessonProgressResponse
	require.NoError(t, json.Unmarshal(env.Data, &lesson))
	require.Equal(t, "in_progress", lesson.Status)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/progress/update-section",
		`{"user_id":"student_1","grade":"grade_5","subject":"math","lesson_id":"fractions_basic","section_id":"section_1","status":"done"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/progress/complete-lesson", lessonBody, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/progress/reset-lesson", lessonBody, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, env = doJSON(t, app, http.MethodGet, "/api/progress/dashboard?user_id=student_1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats dto.DashboardStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Equal(t, 66.7, stats.Accuracy)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/progress/dashboard", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/progress/subject?user_id=student_1&grade=grade_5&subject=math", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/progress/user?user_id=student_1", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProgressCheckPrerequisitesUsesCompletedLessons(t *testing.T) {
	progress := &stubProgressService{completed: []string{"fractions_basic"}}
	lessons := &stubLessonService{}
	app := progressApp(progress, lessons, "")

	resp, env := doJSON(t, app, http.MethodGet,
		"/api/progress/check-prerequisites?user_id=student_1&grade=grade_5&subject=math&lesson_id=fractions_compare", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"fractions_basic"}, lessons.completedSeen)

	var check dto.PrerequisiteCheckResponse
	require.NoError(t, json.Unmarshal(env.Data, &check))
	require.True(t, check.CanStart)
}

func TestProgressRoutesEnforceOwnership(t *testing.T) {
	progress := &stubProgressService{deleted: true}
	app := progressApp(progress, &stubLessonService{}, testSecret)

	resp, _ := doJSON(t, app, http.MethodGet, "/api/progress/dashboard?user_id=student_1", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/progress/dashboard?user_id=student_2", "", bearer(t, "student_1", "student"))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/progress/dashboard", "", bearer(t, "student_1", "student"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "student_1", progress.lastUser)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/progress/dashboard?user_id=student_2", "", bearer(t, "ms_rao", "teacher"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/progress/user", "", bearer(t, "student_1", "student"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
