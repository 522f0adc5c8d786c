package services

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/db"
	errs "github.com/techagentng/rentchat/errors"
	"github.com/techagentng/rentchat/models"
	"gorm.io/gorm"
)

// TemplateService interface
type TemplateService interface {
	Create(ctx context.Context, ownerID uuid.UUID, req *models.TemplateRequest) (*models.Template, error)
	Update(ctx context.Context, ownerID, templateID uuid.UUID, req *models.TemplateRequest) (*models.Template, error)
	Delete(ctx context.Context, ownerID, templateID uuid.UUID) error
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Template, error)
	// Use records one insertion of the template and returns it.
	Use(ctx context.Context, ownerID, templateID uuid.UUID) (*models.Template, error)
}

type templateService struct {
	templateRepo db.TemplateRepository
	clock        clockwork.Clock
	log          zerolog.Logger
}

func NewTemplateService(templateRepo db.TemplateRepository, clock clockwork.Clock, log zerolog.Logger) TemplateService {
	return &templateService{
		templateRepo: templateRepo,
		clock:        clock,
		log:          log.With().Str("service", "template").Logger(),
	}
}

func (s *templateService) Create(ctx context.Context, ownerID uuid.UUID, req *models.TemplateRequest) (*models.Template, error) {
	if err := req.Sanitize(); err != nil {
		return nil, errs.New(err.Error(), http.StatusBadRequest)
	}
	now := s.clock.Now().UTC()
	t := &models.Template{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.Apply(t)
	if err := s.templateRepo.CreateTemplate(ctx, t); err != nil {
		s.log.Error().Err(err).Msg("create template")
		return nil, errs.ErrInternalServerError
	}
	return t, nil
}

func (s *templateService) Update(ctx context.Context, ownerID, templateID uuid.UUID, req *models.TemplateRequest) (*models.Template, error) {
	if err := req.Sanitize(); err != nil {
		return nil, errs.New(err.Error(), http.StatusBadRequest)
	}
	t, err := s.owned(ctx, ownerID, templateID)
	if err != nil {
		return nil, err
	}
	req.Apply(t)
	t.UpdatedAt = s.clock.Now().UTC()
	if err := s.templateRepo.UpdateTemplate(ctx, t); err != nil {
		s.log.Error().Err(err).Str("template", templateID.String()).Msg("update template")
		return nil, errs.ErrInternalServerError
	}
	return t, nil
}

func (s *templateService) Delete(ctx context.Context, ownerID, templateID uuid.UUID) error {
	if _, err := s.owned(ctx, ownerID, templateID); err != nil {
		return err
	}
	if err := s.templateRepo.DeleteTemplate(ctx, templateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.New("template not found", http.StatusNotFound)
		}
		return errors.Wrap(err, "delete template")
	}
	return nil
}

func (s *templateService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Template, error) {
	return s.templateRepo.ListTemplates(ctx, ownerID)
}

func (s *templateService) Use(ctx context.Context, ownerID, templateID uuid.UUID) (*models.Template, error) {
	if _, err := s.owned(ctx, ownerID, templateID); err != nil {
		return nil, err
	}
	t, err := s.templateRepo.IncrementUsage(ctx, templateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New("template not found", http.StatusNotFound)
		}
		return nil, errors.Wrap(err, "increment usage")
	}
	return t, nil
}

func (s *templateService) owned(ctx context.Context, ownerID, templateID uuid.UUID) (*models.Template, error) {
	t, err := s.templateRepo.FindTemplateByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New("template not found", http.StatusNotFound)
		}
		return nil, errors.Wrap(err, "load template")
	}
	if t.OwnerID != ownerID {
		return nil, errs.New("template belongs to another user", http.StatusForbidden)
	}
	return t, nil
}
