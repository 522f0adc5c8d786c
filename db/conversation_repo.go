package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/rentchat/models"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	FindOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error
}

type conversationRepo struct {
	DB *gorm.DB
}

func NewConversationRepo(db *GormDB) ConversationRepository {
	return &conversationRepo{db.DB}
}

// FindOrCreate returns the conversation for the (tenant, counterparty,
// subject) triple, creating it on first contact.
func (r *conversationRepo) FindOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	var found models.Conversation
	now := time.Now().UTC()
	err := r.DB.WithContext(ctx).
		Where(models.Conversation{
			TenantID:       conv.TenantID,
			CounterpartyID: conv.CounterpartyID,
			SubjectID:      conv.SubjectID,
		}).
		Attrs(models.Conversation{
			ID:             uuid.New(),
			SubjectType:    conv.SubjectType,
			LastActivityAt: now,
			CreatedAt:      now,
		}).
		FirstOrCreate(&found).Error
	if err != nil {
		return nil, errors.Wrap(err, "find or create conversation")
	}
	return &found, nil
}

func (r *conversationRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.DB.WithContext(ctx).
		Where("tenant_id = ? OR counterparty_id = ?", userID, userID).
		Order("last_activity_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	return convs, nil
}

func (r *conversationRepo) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.DB.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND last_activity_at < ?", id, at).
		Update("last_activity_at", at).Error
	return errors.Wrap(err, "touch conversation")
}
