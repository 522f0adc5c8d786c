package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/db"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
)

// TypingService interface
type TypingService interface {
	SetTyping(ctx context.Context, conversationID, userID uuid.UUID, isTyping bool) (*models.TypingState, error)
	// List returns the live typing states in a conversation, leaving out the
	// caller's own.
	List(ctx context.Context, conversationID, userID uuid.UUID) ([]models.TypingState, error)
}

type typingService struct {
	conversationRepo db.ConversationRepository
	store            db.TypingStore
	publisher        realtime.Publisher
	clock            clockwork.Clock
	log              zerolog.Logger
}

func NewTypingService(conversationRepo db.ConversationRepository, store db.TypingStore, publisher realtime.Publisher, clock clockwork.Clock, log zerolog.Logger) TypingService {
	return &typingService{
		conversationRepo: conversationRepo,
		store:            store,
		publisher:        publisher,
		clock:            clock,
		log:              log.With().Str("service", "typing").Logger(),
	}
}

func (s *typingService) SetTyping(ctx context.Context, conversationID, userID uuid.UUID, isTyping bool) (*models.TypingState, error) {
	if _, err := loadConversation(ctx, s.conversationRepo, conversationID, userID); err != nil {
		return nil, err
	}
	st := models.TypingState{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
		UpdatedAt:      s.clock.Now().UTC(),
	}
	if err := s.store.SetTyping(ctx, st); err != nil {
		s.log.Warn().Err(err).Str("conversation", conversationID.String()).Msg("store typing state")
		return nil, err
	}
	publish(ctx, s.publisher, s.log, realtime.TypingTopic(conversationID), realtime.TableTyping, realtime.EventUpdate, st)
	return &st, nil
}

func (s *typingService) List(ctx context.Context, conversationID, userID uuid.UUID) ([]models.TypingState, error) {
	if _, err := loadConversation(ctx, s.conversationRepo, conversationID, userID); err != nil {
		return nil, err
	}
	states, err := s.store.ListTyping(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]models.TypingState, 0, len(states))
	for _, st := range states {
		if st.UserID == userID || !st.Active(now, db.TypingTTL) {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}
