package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/algoprep/algoprep-api/internal/models"
)

// QuestionRepository reads the problem catalog. Ingestion from external judges
// happens outside this service.
type QuestionRepository interface {
	FindByID(ctx context.Context, id uint) (models.Question, error)
	FindBySlug(ctx context.Context, slug string) (models.Question, error)
	Daily(ctx context.Context, on time.Time) (models.Question, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository constructs a question repository backed by GORM.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) FindByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func (r *questionRepository) FindBySlug(ctx context.Context, slug string) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&question).Error; err != nil {
		return models.Question{}, err
	}
	return question, nil
}

// Daily returns the most recent question posted on or before the given day.
func (r *questionRepository) Daily(ctx context.Context, on time.Time) (models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).
		Where("posted_on <= ?", on).
		Order("posted_on DESC").
		First(&question).Error
	if err != nil {
		return models.Question{}, err
	}
	return question, nil
}
