package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/rentchat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository interface {
	// CreateMessage inserts msg. When the conversation already holds a row
	// with the same client key it is returned instead and created is false.
	CreateMessage(ctx context.Context, msg *models.Message) (stored *models.Message, created bool, err error)
	FindMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	// ListMessages returns the conversation oldest first. A positive limit
	// keeps only the newest limit messages.
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error)
	// MarkRead stamps every unread message in the conversation not sent by
	// viewerID and returns the stamped rows.
	MarkRead(ctx context.Context, conversationID, viewerID uuid.UUID, at time.Time) ([]models.Message, error)
	CountUnread(ctx context.Context, conversationID, viewerID uuid.UUID) (int64, error)
}

type messageRepo struct {
	DB *gorm.DB
}

func NewMessageRepo(db *GormDB) MessageRepository {
	return &messageRepo{db.DB}
}

func (r *messageRepo) CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, bool, error) {
	db := r.DB.WithContext(ctx)
	if msg.ClientKey != "" {
		if existing, err := r.findByClientKey(db, msg.ConversationID, msg.ClientKey); err == nil {
			return existing, false, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}

	if err := db.Create(msg).Error; err != nil {
		// lost a race against a retry carrying the same key
		if msg.ClientKey != "" {
			if existing, ferr := r.findByClientKey(db, msg.ConversationID, msg.ClientKey); ferr == nil {
				return existing, false, nil
			}
		}
		return nil, false, errors.Wrap(err, "create message")
	}
	return msg, true, nil
}

func (r *messageRepo) findByClientKey(db *gorm.DB, conversationID uuid.UUID, key string) (*models.Message, error) {
	var m models.Message
	if err := db.Where("conversation_id = ? AND client_key = ?", conversationID, key).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepo) FindMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var m models.Message
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepo) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	var msgs []models.Message
	q := r.DB.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if limit <= 0 {
		err := q.Order("created_at ASC").Order("id ASC").Find(&msgs).Error
		return msgs, errors.Wrap(err, "list messages")
	}

	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *messageRepo) MarkRead(ctx context.Context, conversationID, viewerID uuid.UUID, at time.Time) ([]models.Message, error) {
	var stamped []models.Message
	err := r.DB.WithContext(ctx).
		Model(&stamped).
		Clauses(clause.Returning{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, viewerID).
		Update("read_at", at).Error
	if err != nil {
		return nil, errors.Wrap(err, "mark messages read")
	}
	return stamped, nil
}

func (r *messageRepo) CountUnread(ctx context.Context, conversationID, viewerID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, viewerID).
		Count(&n).Error
	return n, errors.Wrap(err, "count unread")
}
