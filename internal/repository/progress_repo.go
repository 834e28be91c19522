package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ligth279/xilov5-overhual/internal/models"
)

// ErrProgressNotFound is returned when no progress row matches.
var ErrProgressNotFound = errors.New("progress not found")

// LessonKey identifies one learner's progress through one lesson.
type LessonKey struct {
	UserID   string
	Grade    string
	Subject  string
	LessonID string
}

// ProgressRepository persists learner progress.
type ProgressRepository interface {
	WithTx(ctx context.Context, fn func(repo ProgressRepository) error) error
	EnsureUser(ctx context.Context, userID string) (models.UserProgress, error)
	GetUser(ctx context.Context, userID string) (models.UserProgress, error)
	SaveUser(ctx context.Context, user *models.UserProgress) error
	FindLesson(ctx context.Context, key LessonKey) (models.LessonProgress, error)
	ListLessons(ctx context.Context, userID string) ([]models.LessonProgress, error)
	SaveLesson(ctx context.Context, lesson *models.LessonProgress) error
	SaveQuestion(ctx context.Context, question *models.QuestionProgress) error
	DeleteLesson(ctx context.Context, key LessonKey) error
	DeleteUser(ctx context.Context, userID string) error
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository constructs a gorm backed repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

// Migrate creates the progress tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.AllModels()...)
}

func (r *progressRepository) WithTx(ctx context.Context, fn func(repo ProgressRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&progressRepository{db: tx})
	})
}

func (r *progressRepository) EnsureUser(ctx context.Context, userID string) (models.UserProgress, error) {
	now := time.Now().UTC()
	user := models.UserProgress{UserID: userID, CreatedAt: now, LastActive: now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&user).Error
	if err != nil {
		return models.UserProgress{}, err
	}
	return r.GetUser(ctx, userID)
}

func (r *progressRepository) GetUser(ctx context.Context, userID string) (models.UserProgress, error) {
	var user models.UserProgress
	err := r.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserProgress{}, ErrProgressNotFound
	}
	return user, err
}

func (r *progressRepository) SaveUser(ctx context.Context, user *models.UserProgress) error {
	user.LastActive = time.Now().UTC()
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *progressRepository) FindLesson(ctx context.Context, key LessonKey) (models.LessonProgress, error) {
	var lesson models.LessonProgress
	err := r.db.WithContext(ctx).
		Preload("Questions").
		Where("user_id = ? AND grade = ? AND subject = ? AND lesson_id = ?", key.UserID, key.Grade, key.Subject, key.LessonID).
		First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.LessonProgress{}, ErrProgressNotFound
	}
	return lesson, err
}

func (r *progressRepository) ListLessons(ctx context.Context, userID string) ([]models.LessonProgress, error) {
	var lessons []models.LessonProgress
	err := r.db.WithContext(ctx).
		Preload("Questions").
		Where("user_id = ?", userID).
		Order("started_at ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *progressRepository) SaveLesson(ctx context.Context, lesson *models.LessonProgress) error {
	return r.db.WithContext(ctx).Omit("Questions").Save(lesson).Error
}

func (r *progressRepository) SaveQuestion(ctx context.Context, question *models.QuestionProgress) error {
	return r.db.WithContext(ctx).Save(question).Error
}

func (r *progressRepository) DeleteLesson(ctx context.Context, key LessonKey) error {
	lesson, err := r.FindLesson(ctx, key)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lesson_progress_id = ?", lesson.ID).Delete(&models.QuestionProgress{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.LessonProgress{}, lesson.ID).Error
	})
}

func (r *progressRepository) DeleteUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.LessonProgress{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := tx.Where("lesson_progress_id IN ?", ids).Delete(&models.QuestionProgress{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.LessonProgress{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.EvaluationLog{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.UserProgress{}).Error
	})
}
