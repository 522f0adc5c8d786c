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

type PresenceRepository interface {
	UpsertPresence(ctx context.Context, rec *models.PresenceRecord) error
	// TouchPresence stamps last seen and keeps the stored online flag. A user
	// with no record yet is stored offline.
	TouchPresence(ctx context.Context, userID uuid.UUID, at time.Time) (*models.PresenceRecord, error)
	FindPresence(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error)
}

type presenceRepo struct {
	DB *gorm.DB
}

func NewPresenceRepo(db *GormDB) PresenceRepository {
	return &presenceRepo{db.DB}
}

// UpsertPresence overwrites the user's record. Last writer wins.
func (r *presenceRepo) UpsertPresence(ctx context.Context, rec *models.PresenceRecord) error {
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"online", "last_seen_at"}),
		}).
		Create(rec).Error
	return errors.Wrap(err, "upsert presence")
}

func (r *presenceRepo) TouchPresence(ctx context.Context, userID uuid.UUID, at time.Time) (*models.PresenceRecord, error) {
	rec := &models.PresenceRecord{UserID: userID, LastSeenAt: at}
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen_at"}),
		}, clause.Returning{}).
		Create(rec).Error
	if err != nil {
		return nil, errors.Wrap(err, "touch presence")
	}
	return rec, nil
}

func (r *presenceRepo) FindPresence(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error) {
	var rec models.PresenceRecord
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
