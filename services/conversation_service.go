package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/db"
	errs "github.com/techagentng/rentchat/errors"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
	"golang.org/x/sync/errgroup"
)

// ConversationService interface
type ConversationService interface {
	Start(ctx context.Context, tenantID uuid.UUID, req *models.CreateConversationRequest) (*models.Conversation, error)
	Get(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error)
	Inbox(ctx context.Context, userID uuid.UUID) ([]models.InboxEntry, error)
	// CanSubscribe authorizes a realtime topic for userID.
	CanSubscribe(ctx context.Context, userID uuid.UUID, topic string) error
}

type conversationService struct {
	conversationRepo db.ConversationRepository
	messageRepo      db.MessageRepository
	log              zerolog.Logger
}

func NewConversationService(conversationRepo db.ConversationRepository, messageRepo db.MessageRepository, log zerolog.Logger) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		log:              log.With().Str("service", "conversation").Logger(),
	}
}

// Start opens the conversation between the caller and a counterparty about a
// subject, or returns the existing one.
func (s *conversationService) Start(ctx context.Context, tenantID uuid.UUID, req *models.CreateConversationRequest) (*models.Conversation, error) {
	if req.CounterpartyID == tenantID {
		return nil, errs.New("cannot start a conversation with yourself", http.StatusBadRequest)
	}
	conv, err := s.conversationRepo.FindOrCreate(ctx, &models.Conversation{
		TenantID:       tenantID,
		CounterpartyID: req.CounterpartyID,
		SubjectType:    req.SubjectType,
		SubjectID:      req.SubjectID,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("start conversation")
		return nil, errs.ErrInternalServerError
	}
	return conv, nil
}

func (s *conversationService) Get(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	return loadConversation(ctx, s.conversationRepo, conversationID, userID)
}

// Inbox lists the user's conversations, most recent activity first, with the
// unread count of each.
func (s *conversationService) Inbox(ctx context.Context, userID uuid.UUID) ([]models.InboxEntry, error) {
	convs, err := s.conversationRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.InboxEntry, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range convs {
		i := i
		entries[i].Conversation = convs[i]
		g.Go(func() error {
			n, err := s.messageRepo.CountUnread(gctx, convs[i].ID, userID)
			if err != nil {
				return err
			}
			entries[i].UnreadCount = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *conversationService) CanSubscribe(ctx context.Context, userID uuid.UUID, topic string) error {
	kind, id, err := realtime.ParseTopic(topic)
	if err != nil {
		return errs.New(err.Error(), http.StatusBadRequest)
	}
	switch kind {
	case realtime.KindConversation, realtime.KindTyping:
		_, err := loadConversation(ctx, s.conversationRepo, id, userID)
		return err
	case realtime.KindInbox:
		if id != userID {
			return errs.New("inbox belongs to another user", http.StatusForbidden)
		}
		return nil
	case realtime.KindPresence:
		return nil
	}
	return errs.New(fmt.Sprintf("unsupported topic %q", topic), http.StatusBadRequest)
}
