package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/rentchat/models"
	"gorm.io/gorm"
)

type ReactionRepository interface {
	// ToggleReaction deletes the (message, user, emoji) row if present and
	// inserts it otherwise. added reports which happened.
	ToggleReaction(ctx context.Context, r *models.Reaction) (stored *models.Reaction, added bool, err error)
	ListReactions(ctx context.Context, messageID uuid.UUID) ([]models.Reaction, error)
}

type reactionRepo struct {
	DB *gorm.DB
}

func NewReactionRepo(db *GormDB) ReactionRepository {
	return &reactionRepo{db.DB}
}

func (rr *reactionRepo) ToggleReaction(ctx context.Context, r *models.Reaction) (*models.Reaction, bool, error) {
	tx := rr.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, false, errors.Wrap(tx.Error, "begin toggle")
	}

	var existing models.Reaction
	err := tx.Where("message_id = ? AND user_id = ? AND emoji = ?", r.MessageID, r.UserID, r.Emoji).First(&existing).Error
	switch {
	case err == nil:
		if err := tx.Delete(&existing).Error; err != nil {
			tx.Rollback()
			return nil, false, errors.Wrap(err, "delete reaction")
		}
		if err := tx.Commit().Error; err != nil {
			return nil, false, errors.Wrap(err, "commit toggle")
		}
		return &existing, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		if err := tx.Create(r).Error; err != nil {
			tx.Rollback()
			return nil, false, errors.Wrap(err, "insert reaction")
		}
		if err := tx.Commit().Error; err != nil {
			return nil, false, errors.Wrap(err, "commit toggle")
		}
		return r, true, nil
	default:
		tx.Rollback()
		return nil, false, errors.Wrap(err, "find reaction")
	}
}

func (rr *reactionRepo) ListReactions(ctx context.Context, messageID uuid.UUID) ([]models.Reaction, error) {
	var out []models.Reaction
	err := rr.DB.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&out).Error
	return out, errors.Wrap(err, "list reactions")
}
