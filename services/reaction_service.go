package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/db"
	errs "github.com/techagentng/rentchat/errors"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
	"gorm.io/gorm"
)

// ReactionService interface
type ReactionService interface {
	// Toggle removes the caller's emoji from the message if present and adds
	// it otherwise.
	Toggle(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*models.ToggleReactionResponse, error)
	List(ctx context.Context, messageID, userID uuid.UUID) ([]models.Reaction, error)
}

type reactionService struct {
	conversationRepo db.ConversationRepository
	messageRepo      db.MessageRepository
	reactionRepo     db.ReactionRepository
	publisher        realtime.Publisher
	clock            clockwork.Clock
	log              zerolog.Logger
}

func NewReactionService(
	conversationRepo db.ConversationRepository,
	messageRepo db.MessageRepository,
	reactionRepo db.ReactionRepository,
	publisher realtime.Publisher,
	clock clockwork.Clock,
	log zerolog.Logger,
) ReactionService {
	return &reactionService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		reactionRepo:     reactionRepo,
		publisher:        publisher,
		clock:            clock,
		log:              log.With().Str("service", "reaction").Logger(),
	}
}

func (s *reactionService) Toggle(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*models.ToggleReactionResponse, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, errs.New("emoji is required", http.StatusBadRequest)
	}
	msg, err := s.authorizedMessage(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}

	stored, added, err := s.reactionRepo.ToggleReaction(ctx, &models.Reaction{
		MessageID: msg.ID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("message", messageID.String()).Msg("toggle reaction")
		return nil, errs.ErrInternalServerError
	}

	typ := realtime.EventDelete
	if added {
		typ = realtime.EventInsert
	}
	publish(ctx, s.publisher, s.log, realtime.ConversationTopic(msg.ConversationID), realtime.TableReactions, typ, stored)
	return &models.ToggleReactionResponse{Added: added, Reaction: *stored}, nil
}

func (s *reactionService) List(ctx context.Context, messageID, userID uuid.UUID) ([]models.Reaction, error) {
	msg, err := s.authorizedMessage(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	return s.reactionRepo.ListReactions(ctx, msg.ID)
}

func (s *reactionService) authorizedMessage(ctx context.Context, messageID, userID uuid.UUID) (*models.Message, error) {
	msg, err := s.messageRepo.FindMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New("message not found", http.StatusNotFound)
		}
		return nil, errors.Wrap(err, "load message")
	}
	if _, err := loadConversation(ctx, s.conversationRepo, msg.ConversationID, userID); err != nil {
		return nil, err
	}
	return msg, nil
}
