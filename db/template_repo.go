package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/rentchat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TemplateRepository interface {
	CreateTemplate(ctx context.Context, t *models.Template) error
	FindTemplateByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
	UpdateTemplate(ctx context.Context, t *models.Template) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	ListTemplates(ctx context.Context, ownerID uuid.UUID) ([]models.Template, error)
	// IncrementUsage adds one to the usage counter and returns the updated row.
	IncrementUsage(ctx context.Context, id uuid.UUID) (*models.Template, error)
}

type templateRepo struct {
	DB *gorm.DB
}

func NewTemplateRepo(db *GormDB) TemplateRepository {
	return &templateRepo{db.DB}
}

func (r *templateRepo) CreateTemplate(ctx context.Context, t *models.Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return errors.Wrap(r.DB.WithContext(ctx).Create(t).Error, "create template")
}

func (r *templateRepo) FindTemplateByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	var t models.Template
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTemplate saves the editable columns. usage_count is left out so an
// edit never resets it.
func (r *templateRepo) UpdateTemplate(ctx context.Context, t *models.Template) error {
	err := r.DB.WithContext(ctx).
		Model(t).
		Select("title", "body", "category", "favorite", "updated_at").
		Updates(t).Error
	return errors.Wrap(err, "update template")
}

func (r *templateRepo) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Template{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete template")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *templateRepo) ListTemplates(ctx context.Context, ownerID uuid.UUID) ([]models.Template, error) {
	var out []models.Template
	err := r.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("favorite DESC").
		Order("usage_count DESC").
		Order("title ASC").
		Find(&out).Error
	return out, errors.Wrap(err, "list templates")
}

func (r *templateRepo) IncrementUsage(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	var t models.Template
	res := r.DB.WithContext(ctx).
		Model(&t).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1))
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "increment template usage")
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}
