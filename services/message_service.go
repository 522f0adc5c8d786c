package services

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/db"
	errs "github.com/techagentng/rentchat/errors"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
)

const notifyTimeout = 10 * time.Second

// MessageService interface
type MessageService interface {
	// Send stores a message and announces it. A retry carrying an already
	// stored client key returns the stored row without side effects.
	Send(ctx context.Context, conversationID, senderID uuid.UUID, req *models.SendMessageRequest) (*models.Message, error)
	List(ctx context.Context, conversationID, userID uuid.UUID, limit int) ([]models.Message, error)
	// MarkRead stamps every unread inbound message for viewerID.
	MarkRead(ctx context.Context, conversationID, viewerID uuid.UUID) ([]models.Message, error)
	UnreadCount(ctx context.Context, conversationID, viewerID uuid.UUID) (int64, error)
}

type messageService struct {
	conversationRepo db.ConversationRepository
	messageRepo      db.MessageRepository
	publisher        realtime.Publisher
	notifier         Notifier
	clock            clockwork.Clock
	log              zerolog.Logger
}

func NewMessageService(
	conversationRepo db.ConversationRepository,
	messageRepo db.MessageRepository,
	publisher realtime.Publisher,
	notifier Notifier,
	clock clockwork.Clock,
	log zerolog.Logger,
) MessageService {
	return &messageService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		publisher:        publisher,
		notifier:         notifier,
		clock:            clock,
		log:              log.With().Str("service", "message").Logger(),
	}
}

func (s *messageService) Send(ctx context.Context, conversationID, senderID uuid.UUID, req *models.SendMessageRequest) (*models.Message, error) {
	conv, err := loadConversation(ctx, s.conversationRepo, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:              uuid.New(),
		ConversationID:  conv.ID,
		SenderID:        senderID,
		ClientKey:       req.ClientKey,
		Kind:            req.Kind,
		Content:         req.Content,
		MediaURL:        req.MediaURL,
		DurationSeconds: req.DurationSeconds,
		CreatedAt:       s.clock.Now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return nil, errs.New(err.Error(), http.StatusBadRequest)
	}

	stored, created, err := s.messageRepo.CreateMessage(ctx, msg)
	if err != nil {
		s.log.Error().Err(err).Str("conversation", conv.ID.String()).Msg("store message")
		return nil, errs.ErrInternalServerError
	}
	if !created {
		if stored.ConversationID != conv.ID || stored.SenderID != senderID {
			return nil, errs.New("client key already used", http.StatusConflict)
		}
		return stored, nil
	}

	publish(ctx, s.publisher, s.log, realtime.ConversationTopic(conv.ID), realtime.TableMessages, realtime.EventInsert, stored)

	if err := s.conversationRepo.TouchActivity(ctx, conv.ID, stored.CreatedAt); err != nil {
		s.log.Warn().Err(err).Str("conversation", conv.ID.String()).Msg("touch conversation")
	}
	conv.LastActivityAt = stored.CreatedAt
	for _, p := range conv.Participants() {
		publish(ctx, s.publisher, s.log, realtime.InboxTopic(p), realtime.TableConversations, realtime.EventUpdate, conv)
	}

	s.dispatchNotification(*stored)
	return stored, nil
}

// dispatchNotification tells the push collaborator about a send. It runs
// detached from the request and its failure never affects the message.
func (s *messageService) dispatchNotification(msg models.Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, msg.ConversationID, msg.SenderID, msg.Preview()); err != nil {
			s.log.Warn().Err(err).
				Str("conversation", msg.ConversationID.String()).
				Str("message", msg.ID.String()).
				Msg("push notification failed")
		}
	}()
}

func (s *messageService) List(ctx context.Context, conversationID, userID uuid.UUID, limit int) ([]models.Message, error) {
	if _, err := loadConversation(ctx, s.conversationRepo, conversationID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messageRepo.ListMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	return msgs, nil
}

func (s *messageService) MarkRead(ctx context.Context, conversationID, viewerID uuid.UUID) ([]models.Message, error) {
	conv, err := loadConversation(ctx, s.conversationRepo, conversationID, viewerID)
	if err != nil {
		return nil, err
	}

	stamped, err := s.messageRepo.MarkRead(ctx, conv.ID, viewerID, s.clock.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Str("conversation", conv.ID.String()).Msg("mark read")
		return nil, errs.ErrInternalServerError
	}
	if len(stamped) == 0 {
		return stamped, nil
	}

	topic := realtime.ConversationTopic(conv.ID)
	for i := range stamped {
		publish(ctx, s.publisher, s.log, topic, realtime.TableMessages, realtime.EventUpdate, stamped[i])
	}
	publish(ctx, s.publisher, s.log, realtime.InboxTopic(viewerID), realtime.TableConversations, realtime.EventUpdate, conv)
	return stamped, nil
}

func (s *messageService) UnreadCount(ctx context.Context, conversationID, viewerID uuid.UUID) (int64, error) {
	if _, err := loadConversation(ctx, s.conversationRepo, conversationID, viewerID); err != nil {
		return 0, err
	}
	return s.messageRepo.CountUnread(ctx, conversationID, viewerID)
}
