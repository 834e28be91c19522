package handler

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/evaluation"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/service"
	"github.com/ligth279/xilov5-overhual/internal/utils"
)

// ProgressHandler serves learner progress tracking.
type ProgressHandler struct {
	progress  service.ProgressService
	lessons   service.LessonService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProgressHandler builds a progress handler.
func NewProgressHandler(progress service.ProgressService, lessons service.LessonService, validator *validator.Validate, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress:  progress,
		lessons:   lessons,
		validator: validator,
		logger:    logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register binds the progress routes.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Post("/start-lesson", h.startLesson)
	router.Post("/update-section", h.updateSection)
	router.Post("/record-answer", h.recordAnswer)
	router.Post("/complete-lesson", h.completeLesson)
	router.Post("/add-time", h.addTime)
	router.Post("/reset-lesson", h.resetLesson)

	router.Get("/lesson", h.lessonProgress)
	router.Get("/user", h.userProgress)
	router.Get("/subject", h.subjectProgress)
	router.Get("/dashboard", h.dashboard)
	router.Get("/check-prerequisites", h.checkPrerequisites)

	router.Delete("/user", h.deleteUser)
}

func (h *ProgressHandler) bindBody(c *fiber.Ctx, payload interface{}, userID *string) (bool, error) {
	if err := c.BodyParser(payload); err != nil {
		return false, handleError(c, h.logger, fmt.Errorf("%w: invalid request payload", evaluation.ErrInvalidInput))
	}
	return h.check(c, payload, userID)
}

func (h *ProgressHandler) bindQuery(c *fiber.Ctx, payload interface{}, userID *string) (bool, error) {
	if err := c.QueryParser(payload); err != nil {
		return false, handleError(c, h.logger, fmt.Errorf("%w: invalid query", evaluation.ErrInvalidInput))
	}
	return h.check(c, payload, userID)
}

// check defaults the user to the token subject, rejects callers acting for
// another student and validates the payload.
func (h *ProgressHandler) check(c *fiber.Ctx, payload interface{}, userID *string) (bool, error) {
	*userID = strings.TrimSpace(*userID)
	if *userID == "" {
		*userID = middleware.UserID(c)
	}
	if !middleware.CanActFor(c, *userID) {
		return false, utils.SendError(c, fiber.StatusForbidden, "cannot access another student's progress")
	}
	if err := h.validator.Struct(payload); err != nil {
		return false, handleError(c, h.logger, err)
	}
	return true, nil
}

func (h *ProgressHandler) startLesson(c *fiber.Ctx) error {
	var payload dto.LessonProgressRequest
	if ok, err := h.bindBody(c, &payload, &payload.UserID); !ok {
		return err
	}
	lesson, err := h.progress.StartLesson(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson started", lesson)
}

func (h *ProgressHandler) updateSection(c *fiber.Ctx) error {
	var payload dto.UpdateSectionRequest
	if ok, err := h.bindBody(c, &payload, &payload.UserID); !ok {
		return err
	}
	lesson, err := h.progress.UpdateSection(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "section updated", lesson)
}

func (h *ProgressHandler) recordAnswer(c *fiber.Ctx) error {
	var payload dto.RecordAnswerRequest
	if ok, err := h.bindBody(c, &payload, &payload.UserID); !ok {
		return err
	}
	question, err := h.progress.RecordAnswer(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "answer recorded", question)
}

func (h *ProgressHandler) completeLesson(c *fiber.Ctx) error {
	var payload dto.LessonProgressRequest
	if ok, err := h.bindBody(c, &payload, &payload.UserID); !ok {
		return err
	}
	lesson, err := h.progress.CompleteLesson(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson completed", lesson)
}

func (h *ProgressHandler) addTime(c *fiber.Ctx) error {
	var payload dto.AddTimeRequest
	if ok, err := h.bindBody(c, &payload, &payload.UserID); !ok {
		return err
	}
	lesson, err := h.progress.AddStudyTime(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "study time added", lesson)
}

func (h *ProgressHandler) resetLesson(c *fiber.Ctx) error {
	var payload dto.LessonProgressRequest
	if ok, err := h.bindBody(c, &payload, &payload.UserID); !ok {
		return err
	}
	reset, err := h.progress.ResetLesson(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if !reset {
		return utils.SendError(c, fiber.StatusNotFound, "lesson progress not found")
	}
	return utils.SendSuccess(c, "lesson progress reset", fiber.Map{"reset": true})
}

func (h *ProgressHandler) lessonProgress(c *fiber.Ctx) error {
	var query dto.LessonProgressRequest
	if ok, err := h.bindQuery(c, &query, &query.UserID); !ok {
		return err
	}
	lesson, err := h.progress.LessonProgress(requestContext(c), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson progress", lesson)
}

func (h *ProgressHandler) userProgress(c *fiber.Ctx) error {
	userID, ok, err := h.userFromQuery(c)
	if !ok {
		return err
	}
	progress, err := h.progress.UserProgress(requestContext(c), userID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "user progress", progress)
}

func (h *ProgressHandler) subjectProgress(c *fiber.Ctx) error {
	var query dto.SubjectProgressQuery
	if ok, err := h.bindQuery(c, &query, &query.UserID); !ok {
		return err
	}
	progress, err := h.progress.SubjectProgress(requestContext(c), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "subject progress", progress)
}

func (h *ProgressHandler) dashboard(c *fiber.Ctx) error {
	userID, ok, err := h.userFromQuery(c)
	if !ok {
		return err
	}
	stats, err := h.progress.Dashboard(requestContext(c), userID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "dashboard stats", stats)
}

func (h *ProgressHandler) checkPrerequisites(c *fiber.Ctx) error {
	var query dto.LessonProgressRequest
	if ok, err := h.bindQuery(c, &query, &query.UserID); !ok {
		return err
	}

	ctx := requestContext(c)
	completed, err := h.progress.CompletedLessons(ctx, query.UserID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	check, err := h.lessons.CheckPrerequisites(ctx, query.Grade, query.Subject, query.LessonID, completed)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "prerequisites checked", check)
}

func (h *ProgressHandler) deleteUser(c *fiber.Ctx) error {
	userID, ok, err := h.userFromQuery(c)
	if !ok {
		return err
	}
	deleted, err := h.progress.DeleteUser(requestContext(c), userID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if !deleted {
		return utils.SendError(c, fiber.StatusNotFound, "user progress not found")
	}
	requestLogger(h.logger, c).Info().Str("user_id", userID).Msg("user progress deleted on request")
	return utils.SendSuccess(c, "user progress deleted", fiber.Map{"deleted": true})
}

func (h *ProgressHandler) userFromQuery(c *fiber.Ctx) (string, bool, error) {
	var query struct {
		UserID string `query:"user_id" validate:"required,max=128"`
	}
	if ok, err := h.bindQuery(c, &query, &query.UserID); !ok {
		return "", false, err
	}
	return query.UserID, true, nil
}
