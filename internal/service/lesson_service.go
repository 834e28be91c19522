package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/evaluation"
	"github.com/ligth279/xilov5-overhual/internal/models"
	"github.com/ligth279/xilov5-overhual/internal/observability"
	"github.com/ligth279/xilov5-overhual/internal/repository"
)

const lessonCachePrefix = "xilo:lesson:v1"

// LessonService exposes read access to lesson content plus teacher imports.
type LessonService interface {
	ListGrades(ctx context.Context) ([]dto.GradeResponse, error)
	ListSubjects(ctx context.Context, grade string) ([]dto.SubjectResponse, error)
	ListLessons(ctx context.Context, grade, subject string) ([]dto.LessonSummary, error)
	GetLesson(ctx context.Context, grade, subject, lessonID string) (models.Lesson, error)
	GetSection(ctx context.Context, grade, subject, lessonID, sectionID string) (models.Section, error)
	GetQuestion(ctx context.Context, ref dto.QuestionRef) (evaluation.Question, error)
	CheckPrerequisites(ctx context.Context, grade, subject, lessonID string, completed []string) (dto.PrerequisiteCheckResponse, error)
	NextLessons(ctx context.Context, grade, subject, lessonID string) ([]dto.LessonSummary, error)
	Search(ctx context.Context, query string) ([]dto.LessonSearchResult, error)
	Import(ctx context.Context, grade, subject string, payload []byte) (dto.LessonImportResponse, error)
}

type lessonService struct {
	repo   repository.LessonRepository
	cache  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewLessonService constructs the lesson service. cache may be nil.
func NewLessonService(repo repository.LessonRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) LessonService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &lessonService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		tracer: observability.Tracer(),
		logger: logger.With().Str("component", "lesson_service").Logger(),
	}
}

func (s *lessonService) ListGrades(ctx context.Context) ([]dto.GradeResponse, error) {
	catalog, err := s.repo.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	grades := make([]dto.GradeResponse, 0, len(catalog.Grades))
	for _, id := range sortedKeys(catalog.Grades) {
		grade := catalog.Grades[id]
		grades = append(grades, dto.GradeResponse{
			ID:       id,
			Name:     grade.Name,
			Subjects: sortedKeys(grade.Subjects),
		})
	}
	return grades, nil
}

func (s *lessonService) ListSubjects(ctx context.Context, grade string) ([]dto.SubjectResponse, error) {
	catalog, err := s.repo.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	g, ok := catalog.Grades[grade]
	if !ok {
		return nil, fmt.Errorf("%w: grade %q", evaluation.ErrNotFound, grade)
	}

	subjects := make([]dto.SubjectResponse, 0, len(g.Subjects))
	for _, id := range sortedKeys(g.Subjects) {
		subject := g.Subjects[id]
		subjects = append(subjects, dto.SubjectResponse{ID: id, Name: subject.Name, LessonCount: len(subject.Lessons)})
	}
	return subjects, nil
}

func (s *lessonService) ListLessons(ctx context.Context, grade, subject string) ([]dto.LessonSummary, error) {
	catalog, err := s.repo.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	g, ok := catalog.Grades[grade]
	if !ok {
		return nil, fmt.Errorf("%w: grade %q", evaluation.ErrNotFound, grade)
	}
	sub, ok := g.Subjects[subject]
	if !ok {
		return nil, fmt.Errorf("%w: subject %q", evaluation.ErrNotFound, subject)
	}

	lessons := make([]dto.LessonSummary, 0, len(sub.Lessons))
	for _, entry := range sub.Lessons {
		lessons = append(lessons, dto.LessonSummary{
			ID:                   entry.ID,
			Title:                entry.Title,
			Difficulty:           entry.Difficulty,
			EstimatedTimeMinutes: entry.EstimatedTimeMinutes,
		})
	}
	return lessons, nil
}

func (s *lessonService) GetLesson(ctx context.Context, grade, subject, lessonID string) (models.Lesson, error) {
	ctx, span := s.tracer.Start(ctx, "lesson.load", trace.WithAttributes(
		attribute.String("lesson.grade", grade),
		attribute.String("lesson.subject", subject),
		attribute.String("lesson.id", lessonID),
	))
	defer span.End()

	key := lessonCacheKey(grade, subject, lessonID)
	if lesson, ok := s.fetchCache(ctx, key); ok {
		span.SetAttributes(attribute.Bool("lesson.cache_hit", true))
		return lesson, nil
	}

	lesson, err := s.repo.Lesson(ctx, grade, subject, lessonID)
	if err != nil {
		if errors.Is(err, repository.ErrLessonNotFound) {
			return models.Lesson{}, fmt.Errorf("%w: %w", evaluation.ErrNotFound, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Lesson{}, err
	}

	s.writeCache(ctx, key, lesson)
	return lesson, nil
}

func (s *lessonService) GetSection(ctx context.Context, grade, subject, lessonID, sectionID string) (models.Section, error) {
	lesson, err := s.GetLesson(ctx, grade, subject, lessonID)
	if err != nil {
		return models.Section{}, err
	}
	section, ok := lesson.FindSection(sectionID)
	if !ok {
		return models.Section{}, fmt.Errorf("%w: section %q", evaluation.ErrNotFound, sectionID)
	}
	return *section, nil
}

// GetQuestion resolves a question reference into the evaluation pipeline's view of it.
func (s *lessonService) GetQuestion(ctx context.Context, ref dto.QuestionRef) (evaluation.Question, error) {
	lesson, err := s.GetLesson(ctx, ref.Grade, ref.Subject, ref.LessonID)
	if err != nil {
		return evaluation.Question{}, err
	}
	section, ok := lesson.FindSection(ref.SectionID)
	if !ok {
		return evaluation.Question{}, fmt.Errorf("%w: section %q", evaluation.ErrNotFound, ref.SectionID)
	}
	item, ok := section.FindQuestion(ref.QuestionID)
	if !ok {
		return evaluation.Question{}, fmt.Errorf("%w: question %q", evaluation.ErrNotFound, ref.QuestionID)
	}

	topic := strings.TrimSpace(item.Context)
	if topic == "" {
		topic = lesson.Title
	}

	return evaluation.Question{
		ID:                 item.ID,
		Prompt:             item.Question,
		ExpectedAnswer:     item.Answer,
		AcceptableVariants: append([]string(nil), item.EvaluationCriteria...),
		Hints:              append([]string(nil), item.Hints...),
		Topic:              topic,
	}, nil
}

func (s *lessonService) CheckPrerequisites(ctx context.Context, grade, subject, lessonID string, completed []string) (dto.PrerequisiteCheckResponse, error) {
	lesson, err := s.GetLesson(ctx, grade, subject, lessonID)
	if err != nil {
		return dto.PrerequisiteCheckResponse{}, err
	}

	done := make(map[string]struct{}, len(completed))
	for _, id := range completed {
		done[id] = struct{}{}
	}

	missing := []string{}
	for _, prereq := range lesson.Prerequisites {
		if _, ok := done[prereq]; !ok {
			missing = append(missing, prereq)
		}
	}

	prerequisites := lesson.Prerequisites
	if prerequisites == nil {
		prerequisites = []string{}
	}

	return dto.PrerequisiteCheckResponse{
		LessonID:      lessonID,
		Prerequisites: prerequisites,
		Missing:       missing,
		CanStart:      len(missing) == 0,
	}, nil
}

// NextLessons resolves the lesson's recommendations, skipping ids that no longer exist.
func (s *lessonService) NextLessons(ctx context.Context, grade, subject, lessonID string) ([]dto.LessonSummary, error) {
	lesson, err := s.GetLesson(ctx, grade, subject, lessonID)
	if err != nil {
		return nil, err
	}

	next := make([]dto.LessonSummary, 0, len(lesson.NextLessons))
	for _, id := range lesson.NextLessons {
		candidate, err := s.GetLesson(ctx, grade, subject, id)
		if err != nil {
			s.logger.Debug().Err(err).Str("lesson_id", id).Msg("skipping unknown next lesson")
			continue
		}
		next = append(next, summarizeLesson(candidate))
	}
	return next, nil
}

func (s *lessonService) Search(ctx context.Context, query string) ([]dto.LessonSearchResult, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, fmt.Errorf("%w: search query is required", evaluation.ErrInvalidInput)
	}

	catalog, err := s.repo.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	results := []dto.LessonSearchResult{}
	for _, gradeID := range sortedKeys(catalog.Grades) {
		grade := catalog.Grades[gradeID]
		for _, subjectID := range sortedKeys(grade.Subjects) {
			subject := grade.Subjects[subjectID]
			for _, entry := range subject.Lessons {
				if !strings.Contains(strings.ToLower(entry.Title), needle) && !strings.Contains(strings.ToLower(entry.ID), needle) {
					continue
				}
				results = append(results, dto.LessonSearchResult{
					Grade:       gradeID,
					GradeName:   grade.Name,
					Subject:     subjectID,
					SubjectName: subject.Name,
					LessonID:    entry.ID,
					Title:       entry.Title,
					Difficulty:  entry.Difficulty,
				})
			}
		}
	}
	return results, nil
}

// Import stores an uploaded lesson file after checking it really is JSON.
func (s *lessonService) Import(ctx context.Context, grade, subject string, payload []byte) (dto.LessonImportResponse, error) {
	grade = strings.TrimSpace(grade)
	subject = strings.TrimSpace(subject)
	if !validSlug(grade) || !validSlug(subject) {
		return dto.LessonImportResponse{}, fmt.Errorf("%w: grade and subject must be simple identifiers", evaluation.ErrInvalidInput)
	}
	if len(payload) == 0 {
		return dto.LessonImportResponse{}, fmt.Errorf("%w: empty lesson file", evaluation.ErrInvalidInput)
	}
	if detected := mimetype.Detect(payload); !detected.Is("application/json") {
		return dto.LessonImportResponse{}, fmt.Errorf("%w: lesson file must be JSON, got %s", evaluation.ErrInvalidInput, detected.String())
	}

	entry, err := s.repo.Import(ctx, grade, subject, payload)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidLesson) {
			return dto.LessonImportResponse{}, fmt.Errorf("%w: %w", evaluation.ErrInvalidInput, err)
		}
		return dto.LessonImportResponse{}, err
	}

	s.invalidate(ctx, lessonCacheKey(grade, subject, entry.ID))
	s.logger.Info().Str("grade", grade).Str("subject", subject).Str("lesson_id", entry.ID).Msg("lesson imported")

	return dto.LessonImportResponse{
		Grade:   grade,
		Subject: subject,
		File:    entry.File,
		Lesson: dto.LessonSummary{
			ID:                   entry.ID,
			Title:                entry.Title,
			Difficulty:           entry.Difficulty,
			EstimatedTimeMinutes: entry.EstimatedTimeMinutes,
		},
	}, nil
}

func (s *lessonService) fetchCache(ctx context.Context, key string) (models.Lesson, bool) {
	if s.cache == nil {
		return models.Lesson{}, false
	}
	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.LessonCache().WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Msg("failed to read lesson cache")
		} else {
			observability.LessonCache().WithLabelValues("miss").Inc()
		}
		return models.Lesson{}, false
	}

	var lesson models.Lesson
	if err := json.Unmarshal(payload, &lesson); err != nil {
		observability.LessonCache().WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("failed to decode lesson cache")
		return models.Lesson{}, false
	}
	observability.LessonCache().WithLabelValues("hit").Inc()
	return lesson, true
}

func (s *lessonService) writeCache(ctx context.Context, key string, lesson models.Lesson) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(lesson)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode lesson cache")
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store lesson cache")
	}
}

func (s *lessonService) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to invalidate lesson cache")
	}
}

func lessonCacheKey(grade, subject, lessonID string) string {
	return strings.Join([]string{lessonCachePrefix, grade, subject, lessonID}, ":")
}

func summarizeLesson(lesson models.Lesson) dto.LessonSummary {
	return dto.LessonSummary{
		ID:                   lesson.ID,
		Title:                lesson.Title,
		Difficulty:           lesson.Difficulty,
		EstimatedTimeMinutes: lesson.EstimatedTimeMinutes,
	}
}

// ToLessonResponse strips answers and evaluation criteria before a lesson leaves the server.
func ToLessonResponse(lesson models.Lesson) dto.LessonResponse {
	sections := make([]dto.SectionResponse, 0, len(lesson.Sections))
	for _, section := range lesson.Sections {
		sections = append(sections, ToSectionResponse(section))
	}
	prerequisites := lesson.Prerequisites
	if prerequisites == nil {
		prerequisites = []string{}
	}
	next := lesson.NextLessons
	if next == nil {
		next = []string{}
	}
	return dto.LessonResponse{
		ID:                   lesson.ID,
		Title:                lesson.Title,
		Difficulty:           lesson.Difficulty,
		EstimatedTimeMinutes: lesson.EstimatedTimeMinutes,
		Prerequisites:        prerequisites,
		Sections:             sections,
		Summary:              lesson.Summary,
		NextLessons:          next,
	}
}

// ToSectionResponse strips answers from a section.
func ToSectionResponse(section models.Section) dto.SectionResponse {
	questions := make([]dto.QuestionResponse, 0, len(section.Questions))
	for _, q := range section.Questions {
		questions = append(questions, dto.QuestionResponse{
			ID:        q.ID,
			Question:  q.Question,
			Type:      q.Type,
			HintCount: len(q.Hints),
		})
	}
	return dto.SectionResponse{
		ID:        section.ID,
		Title:     section.Title,
		Type:      section.Type,
		Content:   section.Content,
		Questions: questions,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validSlug(value string) bool {
	if value == "" || len(value) > 64 {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
