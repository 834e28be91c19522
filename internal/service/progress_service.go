package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/evaluation"
	"github.com/ligth279/xilov5-overhual/internal/models"
	"github.com/ligth279/xilov5-overhual/internal/repository"
)

const progressQueueGroup = "xilo-progress"

// ProgressService tracks learner progress through lessons.
type ProgressService interface {
	StartLesson(ctx context.Context, req dto.LessonProgressRequest) (dto.LessonProgressResponse, error)
	UpdateSection(ctx context.Context, req dto.UpdateSectionRequest) (dto.LessonProgressResponse, error)
	RecordAnswer(ctx context.Context, req dto.RecordAnswerRequest) (dto.QuestionProgressResponse, error)
	CompleteLesson(ctx context.Context, req dto.LessonProgressRequest) (dto.LessonProgressResponse, error)
	LessonProgress(ctx context.Context, req dto.LessonProgressRequest) (dto.LessonProgressResponse, error)
	UserProgress(ctx context.Context, userID string) (dto.UserProgressResponse, error)
	CompletedLessons(ctx context.Context, userID string) ([]string, error)
	SubjectProgress(ctx context.Context, query dto.SubjectProgressQuery) (dto.SubjectProgressResponse, error)
	Dashboard(ctx context.Context, userID string) (dto.DashboardStats, error)
	AddStudyTime(ctx context.Context, req dto.AddTimeRequest) (dto.LessonProgressResponse, error)
	ResetLesson(ctx context.Context, req dto.LessonProgressRequest) (bool, error)
	DeleteUser(ctx context.Context, userID string) (bool, error)
	ConsumeEvaluations(ctx context.Context, conn *nats.Conn) error
}

type progressService struct {
	repo   repository.ProgressRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewProgressService constructs the progress service.
func NewProgressService(repo repository.ProgressRepository, logger zerolog.Logger) ProgressService {
	return &progressService{
		repo:   repo,
		logger: logger.With().Str("component", "progress_service").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func lessonKey(req dto.LessonProgressRequest) repository.LessonKey {
	return repository.LessonKey{UserID: req.UserID, Grade: req.Grade, Subject: req.Subject, LessonID: req.LessonID}
}

func (s *progressService) StartLesson(ctx context.Context, req dto.LessonProgressRequest) (dto.LessonProgressResponse, error) {
	var lesson models.LessonProgress
	err := s.repo.WithTx(ctx, func(repo repository.ProgressRepository) error {
		var err error
		lesson, err = s.startLesson(ctx, repo, lessonKey(req))
		return err
	})
	if err != nil {
		return dto.LessonProgressResponse{}, err
	}
	return toLessonProgressResponse(lesson), nil
}

// startLesson returns the existing lesson row or creates one and bumps the started counter.
func (s *progressService) startLesson(ctx context.Context, repo repository.ProgressRepository, key repository.LessonKey) (models.LessonProgress, error) {
	lesson, err := repo.FindLesson(ctx, key)
	if err == nil {
		return lesson, nil
	}
	if !errors.Is(err, repository.ErrProgressNotFound) {
		return models.LessonProgress{}, err
	}

	user, err := repo.EnsureUser(ctx, key.UserID)
	if err != nil {
		return models.LessonProgress{}, err
	}

	lesson = models.LessonProgress{
		UserID:            key.UserID,
		Grade:             key.Grade,
		Subject:           key.Subject,
		LessonID:          key.LessonID,
		Status:            models.LessonStatusInProgress,
		StartedAt:         s.now(),
		SectionsCompleted: []string{},
	}
	if err := repo.SaveLesson(ctx, &lesson); err != nil {
		return models.LessonProgress{}, err
	}

	user.TotalLessonsStarted++
	if err := repo.SaveUser(ctx, &user); err != nil {
		return models.LessonProgress{}, err
	}
	return lesson, nil
}

func (s *progressService) UpdateSection(ctx context.Context, req dto.UpdateSectionRequest) (dto.LessonProgressResponse, error) {
	var lesson models.LessonProgress
	err := s.repo.WithTx(ctx, func(repo repository.ProgressRepository) error {
		var err error
		lesson, err = s.startLesson(ctx, repo, lessonKey(req.LessonProgressRequest))
		if err != nil {
			return err
		}

		lesson.CurrentSection = req.SectionID
		newlyCompleted := req.Status == models.LessonStatusCompleted && !lesson.HasSection(req.SectionID)
		if newlyCompleted {
			lesson.SectionsCompleted = append(lesson.SectionsCompleted, req.SectionID)
		}
		if err := repo.SaveLesson(ctx, &lesson); err != nil {
			return err
		}

		user, err := repo.EnsureUser(ctx, req.UserID)
		if err != nil {
			return err
		}
		if newlyCompleted {
			user.TotalSectionsCompleted++
		}
		return repo.SaveUser(ctx, &user)
	})
	if err != nil {
		return dto.LessonProgressResponse{}, err
	}
	return toLessonProgressResponse(lesson), nil
}

// RecordAnswer counts one attempt. A question becomes correct once and stays correct;
// hints used keeps the highest value reported.
func (s *progressService) RecordAnswer(ctx context.Context, req dto.RecordAnswerRequest) (dto.QuestionProgressResponse, error) {
	var question models.QuestionProgress
	err := s.repo.WithTx(ctx, func(repo repository.ProgressRepository) error {
		lesson, err := s.startLesson(ctx, repo, lessonKey(req.LessonProgressRequest))
		if err != nil {
			return err
		}

		question = models.QuestionProgress{LessonProgressID: lesson.ID, QuestionID: req.QuestionID}
		for _, q := range lesson.Questions {
			if q.QuestionID == req.QuestionID {
				question = q
				break
			}
		}

		user, err := repo.EnsureUser(ctx, req.UserID)
		if err != nil {
			return err
		}

		question.Attempts++
		if req.HintsUsed > question.HintsUsed {
			question.HintsUsed = req.HintsUsed
		}
		if req.IsCorrect && !question.Correct {
			answeredAt := s.now()
			question.Correct = true
			question.AnsweredAt = &answeredAt
			question.FirstAttemptCorrect = question.Attempts == 1 && req.HintsUsed == 0
			user.TotalQuestionsCorrect++
		}
		user.TotalQuestionsAnswered++

		if err := repo.SaveQuestion(ctx, &question); err != nil {
			return err
		}
		return repo.SaveUser(ctx, &user)
	})
	if err != nil {
		return dto.QuestionProgressResponse{}, err
	}
	return toQuestionProgressResponse(question), nil
}

// CompleteLesson scores the lesson as the share of answered questions that ended correct.
func (s *progressService) CompleteLesson(ctx context.Context, req dto.LessonProgressRequest) (dto.LessonProgressResponse, error) {
	var lesson models.LessonProgress
	err := s.repo.WithTx(ctx, func(repo repository.ProgressRepository) error {
		var err error
		lesson, err = s.findLesson(ctx, repo, lessonKey(req))
		if err != nil {
			return err
		}
		if lesson.Status == models.LessonStatusCompleted {
			return nil
		}

		completedAt := s.now()
		correct := 0
		for _, q := range lesson.Questions {
			if q.Correct {
				correct++
			}
		}
		lesson.Status = models.LessonStatusCompleted
		lesson.CompletedAt = &completedAt
		lesson.TotalQuestions = len(lesson.Questions)
		lesson.TotalScore = percentage(correct, lesson.TotalQuestions)
		if err := repo.SaveLesson(ctx, &lesson); err != nil {
			return err
		}

		user, err := repo.EnsureUser(ctx, req.UserID)
		if err != nil {
			return err
		}
		user.TotalLessonsCompleted++
		return repo.SaveUser(ctx, &user)
	})
	if err != nil {
		return dto.LessonProgressResponse{}, err
	}
	return toLessonProgressResponse(lesson), nil
}

func (s *progressService) LessonProgress(ctx context.Context, req dto.LessonProgressRequest) (dto.LessonProgressResponse, error) {
	lesson, err := s.findLesson(ctx, s.repo, lessonKey(req))
	if err != nil {
		return dto.LessonProgressResponse{}, err
	}
	return toLessonProgressResponse(lesson), nil
}

func (s *progressService) UserProgress(ctx context.Context, userID string) (dto.UserProgressResponse, error) {
	user, err := s.userOrEmpty(ctx, userID)
	if err != nil {
		return dto.UserProgressResponse{}, err
	}
	lessons, err := s.repo.ListLessons(ctx, userID)
	if err != nil {
		return dto.UserProgressResponse{}, err
	}

	byKey := make(map[string]dto.LessonProgressResponse, len(lessons))
	for _, lesson := range lessons {
		byKey[lesson.Grade+"/"+lesson.Subject+"/"+lesson.LessonID] = toLessonProgressResponse(lesson)
	}

	return dto.UserProgressResponse{
		UserID:     user.UserID,
		CreatedAt:  user.CreatedAt,
		LastActive: user.LastActive,
		Lessons:    byKey,
		Stats:      toProgressStats(user),
	}, nil
}

func (s *progressService) CompletedLessons(ctx context.Context, userID string) ([]string, error) {
	lessons, err := s.repo.ListLessons(ctx, userID)
	if err != nil {
		return nil, err
	}
	completed := []string{}
	for _, lesson := range lessons {
		if lesson.Status == models.LessonStatusCompleted {
			completed = append(completed, lesson.LessonID)
		}
	}
	return completed, nil
}

func (s *progressService) SubjectProgress(ctx context.Context, query dto.SubjectProgressQuery) (dto.SubjectProgressResponse, error) {
	lessons, err := s.repo.ListLessons(ctx, query.UserID)
	if err != nil {
		return dto.SubjectProgressResponse{}, err
	}

	resp := dto.SubjectProgressResponse{
		Grade:   query.Grade,
		Subject: query.Subject,
		Lessons: map[string]dto.LessonProgressResponse{},
	}
	for _, lesson := range lessons {
		if lesson.Grade != query.Grade || lesson.Subject != query.Subject {
			continue
		}
		resp.Lessons[lesson.LessonID] = toLessonProgressResponse(lesson)
		if lesson.Status == models.LessonStatusCompleted {
			resp.CompletedLessons++
		}
	}
	resp.TotalLessons = len(resp.Lessons)
	return resp, nil
}

func (s *progressService) Dashboard(ctx context.Context, userID string) (dto.DashboardStats, error) {
	user, err := s.userOrEmpty(ctx, userID)
	if err != nil {
		return dto.DashboardStats{}, err
	}

	return dto.DashboardStats{
		UserID:            user.UserID,
		CreatedAt:         user.CreatedAt,
		LastActive:        user.LastActive,
		LessonsStarted:    user.TotalLessonsStarted,
		LessonsCompleted:  user.TotalLessonsCompleted,
		CompletionRate:    percentage(user.TotalLessonsCompleted, user.TotalLessonsStarted),
		SectionsCompleted: user.TotalSectionsCompleted,
		QuestionsAnswered: user.TotalQuestionsAnswered,
		QuestionsCorrect:  user.TotalQuestionsCorrect,
		Accuracy:          percentage(user.TotalQuestionsCorrect, user.TotalQuestionsAnswered),
		TimeSpentMinutes:  user.TotalTimeMinutes,
	}, nil
}

func (s *progressService) AddStudyTime(ctx context.Context, req dto.AddTimeRequest) (dto.LessonProgressResponse, error) {
	if req.Minutes <= 0 {
		return dto.LessonProgressResponse{}, fmt.Errorf("%w: minutes must be positive", evaluation.ErrInvalidInput)
	}

	var lesson models.LessonProgress
	err := s.repo.WithTx(ctx, func(repo repository.ProgressRepository) error {
		var err error
		lesson, err = s.findLesson(ctx, repo, lessonKey(req.LessonProgressRequest))
		if err != nil {
			return err
		}
		lesson.TimeSpentMinutes += req.Minutes
		if err := repo.SaveLesson(ctx, &lesson); err != nil {
			return err
		}

		user, err := repo.EnsureUser(ctx, req.UserID)
		if err != nil {
			return err
		}
		user.TotalTimeMinutes += req.Minutes
		return repo.SaveUser(ctx, &user)
	})
	if err != nil {
		return dto.LessonProgressResponse{}, err
	}
	return toLessonProgressResponse(lesson), nil
}

// ResetLesson drops one lesson's progress. Aggregate counters are left as they are.
func (s *progressService) ResetLesson(ctx context.Context, req dto.LessonProgressRequest) (bool, error) {
	err := s.repo.DeleteLesson(ctx, lessonKey(req))
	if errors.Is(err, repository.ErrProgressNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *progressService) DeleteUser(ctx context.Context, userID string) (bool, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrProgressNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return false, err
	}
	s.logger.Info().Str("user_id", userID).Msg("user progress deleted")
	return true, nil
}

// ConsumeEvaluations records answers from evaluation events published on NATS.
// One member of the queue group handles each event.
func (s *progressService) ConsumeEvaluations(ctx context.Context, conn *nats.Conn) error {
	if conn == nil {
		return errors.New("nats connection required")
	}

	sub, err := conn.QueueSubscribe(EvaluationSubject, progressQueueGroup, func(msg *nats.Msg) {
		if err := s.handleEvaluationEvent(ctx, msg.Data); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record evaluation event")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", EvaluationSubject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain evaluation subscription")
		}
	}()
	return nil
}

func (s *progressService) handleEvaluationEvent(ctx context.Context, data []byte) error {
	var event dto.EvaluationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("decode evaluation event: %w", err)
	}
	if event.UserID == "" || event.QuestionID == "" {
		return fmt.Errorf("evaluation event %s is missing its user or question", event.ID)
	}

	_, err := s.RecordAnswer(ctx, dto.RecordAnswerRequest{
		LessonProgressRequest: dto.LessonProgressRequest{
			UserID:   event.UserID,
			Grade:    event.Grade,
			Subject:  event.Subject,
			LessonID: event.LessonID,
		},
		QuestionID: event.QuestionID,
		IsCorrect:  event.IsCorrect,
		HintsUsed:  event.HintsUsed,
	})
	return err
}

func (s *progressService) findLesson(ctx context.Context, repo repository.ProgressRepository, key repository.LessonKey) (models.LessonProgress, error) {
	lesson, err := repo.FindLesson(ctx, key)
	if errors.Is(err, repository.ErrProgressNotFound) {
		return models.LessonProgress{}, fmt.Errorf("%w: lesson %s not started by %s", evaluation.ErrNotFound, key.LessonID, key.UserID)
	}
	return lesson, err
}

// userOrEmpty returns zeroed counters for learners with no stored progress yet.
func (s *progressService) userOrEmpty(ctx context.Context, userID string) (models.UserProgress, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrProgressNotFound) {
		now := s.now()
		return models.UserProgress{UserID: userID, CreatedAt: now, LastActive: now}, nil
	}
	return user, err
}

func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func toQuestionProgressResponse(q models.QuestionProgress) dto.QuestionProgressResponse {
	return dto.QuestionProgressResponse{
		Correct:             q.Correct,
		Attempts:            q.Attempts,
		HintsUsed:           q.HintsUsed,
		FirstAttemptCorrect: q.FirstAttemptCorrect,
		AnsweredAt:          q.AnsweredAt,
	}
}

func toLessonProgressResponse(lesson models.LessonProgress) dto.LessonProgressResponse {
	questions := make(map[string]dto.QuestionProgressResponse, len(lesson.Questions))
	for _, q := range lesson.Questions {
		questions[q.QuestionID] = toQuestionProgressResponse(q)
	}
	sections := lesson.SectionsCompleted
	if sections == nil {
		sections = []string{}
	}
	return dto.LessonProgressResponse{
		Grade:             lesson.Grade,
		Subject:           lesson.Subject,
		LessonID:          lesson.LessonID,
		Status:            lesson.Status,
		StartedAt:         lesson.StartedAt,
		CompletedAt:       lesson.CompletedAt,
		CurrentSection:    lesson.CurrentSection,
		SectionsCompleted: sections,
		QuestionsAnswered: questions,
		TotalScore:        lesson.TotalScore,
		TotalQuestions:    lesson.TotalQuestions,
		TimeSpentMinutes:  lesson.TimeSpentMinutes,
	}
}

func toProgressStats(user models.UserProgress) dto.ProgressStats {
	return dto.ProgressStats{
		TotalLessonsStarted:    user.TotalLessonsStarted,
		TotalLessonsCompleted:  user.TotalLessonsCompleted,
		TotalSectionsCompleted: user.TotalSectionsCompleted,
		TotalQuestionsAnswered: user.TotalQuestionsAnswered,
		TotalQuestionsCorrect:  user.TotalQuestionsCorrect,
		TotalTimeMinutes:       user.TotalTimeMinutes,
	}
}
