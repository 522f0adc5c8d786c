package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/rentchat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository interface {
	RegisterDevice(ctx context.Context, d *models.DeviceToken) error
	TokensForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	RemoveToken(ctx context.Context, token string) error
}

type deviceRepo struct {
	DB *gorm.DB
}

func NewDeviceRepo(db *GormDB) DeviceRepository {
	return &deviceRepo{db.DB}
}

// RegisterDevice binds the token to the user, moving it if another user held it.
func (r *deviceRepo) RegisterDevice(ctx context.Context, d *models.DeviceToken) error {
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "updated_at"}),
		}).
		Create(d).Error
	return errors.Wrap(err, "register device")
}

func (r *deviceRepo) TokensForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var tokens []string
	err := r.DB.WithContext(ctx).
		Model(&models.DeviceToken{}).
		Where("user_id = ?", userID).
		Pluck("token", &tokens).Error
	return tokens, errors.Wrap(err, "device tokens")
}

func (r *deviceRepo) RemoveToken(ctx context.Context, token string) error {
	err := r.DB.WithContext(ctx).Where("token = ?", token).Delete(&models.DeviceToken{}).Error
	return errors.Wrap(err, "remove device token")
}
