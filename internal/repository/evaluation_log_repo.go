package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ligth279/xilov5-overhual/internal/models"
)

// EvaluationLogRepository stores an audit trail of evaluated answers.
type EvaluationLogRepository interface {
	Create(ctx context.Context, entry *models.EvaluationLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.EvaluationLog, error)
}

type evaluationLogRepository struct {
	db *gorm.DB
}

// NewEvaluationLogRepository constructs the repository.
func NewEvaluationLogRepository(db *gorm.DB) EvaluationLogRepository {
	return &evaluationLogRepository{db: db}
}

func (r *evaluationLogRepository) Create(ctx context.Context, entry *models.EvaluationLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *evaluationLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.EvaluationLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []models.EvaluationLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
