package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/db"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
	"gorm.io/gorm"
)

// PresenceService interface
type PresenceService interface {
	SetOnline(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error)
	SetOffline(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error)
	// Heartbeat re-stamps last seen and keeps the current flag.
	Heartbeat(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error)
}

type presenceService struct {
	presenceRepo db.PresenceRepository
	publisher    realtime.Publisher
	clock        clockwork.Clock
	log          zerolog.Logger
}

func NewPresenceService(presenceRepo db.PresenceRepository, publisher realtime.Publisher, clock clockwork.Clock, log zerolog.Logger) PresenceService {
	return &presenceService{
		presenceRepo: presenceRepo,
		publisher:    publisher,
		clock:        clock,
		log:          log.With().Str("service", "presence").Logger(),
	}
}

func (s *presenceService) SetOnline(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error) {
	return s.write(ctx, userID, true)
}

func (s *presenceService) SetOffline(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error) {
	return s.write(ctx, userID, false)
}

func (s *presenceService) Heartbeat(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error) {
	rec, err := s.presenceRepo.TouchPresence(ctx, userID, s.clock.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Str("user", userID.String()).Msg("touch presence")
		return nil, err
	}
	publish(ctx, s.publisher, s.log, realtime.PresenceTopic(userID), realtime.TablePresence, realtime.EventUpdate, rec)
	return rec, nil
}

func (s *presenceService) Get(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error) {
	rec, err := s.presenceRepo.FindPresence(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.PresenceRecord{UserID: userID}, nil
		}
		return nil, errors.Wrap(err, "find presence")
	}
	return rec, nil
}

func (s *presenceService) write(ctx context.Context, userID uuid.UUID, online bool) (*models.PresenceRecord, error) {
	rec := &models.PresenceRecord{
		UserID:     userID,
		Online:     online,
		LastSeenAt: s.clock.Now().UTC(),
	}
	if err := s.presenceRepo.UpsertPresence(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("user", userID.String()).Bool("online", online).Msg("upsert presence")
		return nil, err
	}
	publish(ctx, s.publisher, s.log, realtime.PresenceTopic(userID), realtime.TablePresence, realtime.EventUpdate, rec)
	return rec, nil
}
