package handler

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/service"
	"github.com/ligth279/xilov5-overhual/internal/utils"
)

// maxLessonUpload bounds the size of an imported lesson file.
const maxLessonUpload = 1 << 20

// LessonHandler serves lesson browsing and lesson import.
type LessonHandler struct {
	service   service.LessonService
	jwtSecret string
	logger    zerolog.Logger
}

// NewLessonHandler builds a lesson handler. A non-empty secret restricts import to teachers.
func NewLessonHandler(service service.LessonService, jwtSecret string, logger zerolog.Logger) *LessonHandler {
	return &LessonHandler{
		service:   service,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "lesson_handler").Logger(),
	}
}

// Register binds the lesson routes. Static paths are registered before parameterised ones.
func (h *LessonHandler) Register(router fiber.Router) {
	router.Get("/grades", h.grades)
	router.Get("/search", h.search)
	router.Get("/:grade/subjects", h.subjects)
	router.Get("/:grade/:subject", h.lessons)
	router.Get("/:grade/:subject/:lesson", h.lesson)
	router.Get("/:grade/:subject/:lesson/next", h.next)
	router.Get("/:grade/:subject/:lesson/section/:section", h.section)
	router.Post("/:grade/:subject/import",
		middleware.JWTProtected(h.jwtSecret),
		middleware.WithAuth(h.importLesson, middleware.AuthOptions{
			Role:    middleware.AuthRoleTeacher,
			Enabled: h.jwtSecret != "",
		}),
	)
}

func (h *LessonHandler) grades(c *fiber.Ctx) error {
	grades, err := h.service.ListGrades(requestContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "grades retrieved", grades)
}

func (h *LessonHandler) subjects(c *fiber.Ctx) error {
	subjects, err := h.service.ListSubjects(requestContext(c), c.Params("grade"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "subjects retrieved", subjects)
}

func (h *LessonHandler) lessons(c *fiber.Ctx) error {
	lessons, err := h.service.ListLessons(requestContext(c), c.Params("grade"), c.Params("subject"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lessons retrieved", lessons)
}

func (h *LessonHandler) lesson(c *fiber.Ctx) error {
	lesson, err := h.service.GetLesson(requestContext(c), c.Params("grade"), c.Params("subject"), c.Params("lesson"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson retrieved", service.ToLessonResponse(lesson))
}

func (h *LessonHandler) next(c *fiber.Ctx) error {
	next, err := h.service.NextLessons(requestContext(c), c.Params("grade"), c.Params("subject"), c.Params("lesson"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "next lessons retrieved", next)
}

func (h *LessonHandler) section(c *fiber.Ctx) error {
	section, err := h.service.GetSection(requestContext(c), c.Params("grade"), c.Params("subject"), c.Params("lesson"), c.Params("section"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "section retrieved", service.ToSectionResponse(section))
}

func (h *LessonHandler) search(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "query parameter q is required")
	}
	results, err := h.service.Search(requestContext(c), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "search results", results)
}

func (h *LessonHandler) importLesson(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	if file.Size > maxLessonUpload {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "lesson file too large")
	}

	reader, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}
	defer reader.Close()

	payload, err := io.ReadAll(io.LimitReader(reader, maxLessonUpload+1))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}

	result, err := h.service.Import(requestContext(c), c.Params("grade"), c.Params("subject"), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendCreated(c, "lesson imported", result)
}
