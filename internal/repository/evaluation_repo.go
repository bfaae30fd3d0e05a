package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/bodylens/bodylens-go-api/internal/models"
)

// EvaluationFilter narrows and pages audit listings.
type EvaluationFilter struct {
	UserID           string
	InterventionOnly bool
	Page             int
	PageSize         int
}

// EvaluationRepository persists and lists evaluation audit entries.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	List(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, int64, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository constructs a gorm-backed evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) List(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Evaluation{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.InterventionOnly {
		query = query.Where("intervention = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var entries []models.Evaluation
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
