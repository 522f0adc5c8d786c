package services

import (
	"context"
	"fmt"

	"firebase.google.com/go/messaging"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/db"
	"github.com/techagentng/rentchat/models"
)

// Notifier is the push collaborator. Notify is fire-and-forget from the
// caller's point of view; errors are for logging only.
type Notifier interface {
	Notify(ctx context.Context, conversationID, senderID uuid.UUID, content string) error
}

// NoopNotifier is used when push is not configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, uuid.UUID, uuid.UUID, string) error { return nil }

// MessagingClient is the part of *messaging.Client the notifier needs.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type fcmNotifier struct {
	client           MessagingClient
	conversationRepo db.ConversationRepository
	deviceRepo       db.DeviceRepository
	log              zerolog.Logger
}

// NewFCMNotifier pushes each message to every device of the recipient
// through Firebase Cloud Messaging.
func NewFCMNotifier(client MessagingClient, conversationRepo db.ConversationRepository, deviceRepo db.DeviceRepository, log zerolog.Logger) Notifier {
	return &fcmNotifier{
		client:           client,
		conversationRepo: conversationRepo,
		deviceRepo:       deviceRepo,
		log:              log.With().Str("service", "fcm").Logger(),
	}
}

func (n *fcmNotifier) Notify(ctx context.Context, conversationID, senderID uuid.UUID, content string) error {
	conv, err := n.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return errors.Wrap(err, "notify: load conversation")
	}
	recipient := conv.Counterpart(senderID)
	if recipient == uuid.Nil {
		return fmt.Errorf("notify: sender %s is not in conversation %s", senderID, conversationID)
	}

	tokens, err := n.deviceRepo.TokensForUser(ctx, recipient)
	if err != nil {
		return err
	}

	var failed int
	for _, token := range tokens {
		msg := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: "New message",
				Body:  content,
			},
			Data: map[string]string{
				"conversation_id": conversationID.String(),
				"sender_id":       senderID.String(),
			},
		}
		if _, err := n.client.Send(ctx, msg); err != nil {
			failed++
			if messaging.IsRegistrationTokenNotRegistered(err) {
				if rerr := n.deviceRepo.RemoveToken(ctx, token); rerr != nil {
					n.log.Warn().Err(rerr).Msg("prune device token")
				}
				continue
			}
			n.log.Debug().Err(err).Str("user", recipient.String()).Msg("fcm send")
		}
	}
	if failed > 0 && failed == len(tokens) {
		return fmt.Errorf("notify: all %d deliveries failed", failed)
	}
	return nil
}

// DeviceService interface
type DeviceService interface {
	Register(ctx context.Context, userID uuid.UUID, req *models.RegisterDeviceRequest) error
}

type deviceService struct {
	deviceRepo db.DeviceRepository
	clock      clockwork.Clock
}

func NewDeviceService(deviceRepo db.DeviceRepository, clock clockwork.Clock) DeviceService {
	return &deviceService{deviceRepo: deviceRepo, clock: clock}
}

func (s *deviceService) Register(ctx context.Context, userID uuid.UUID, req *models.RegisterDeviceRequest) error {
	return s.deviceRepo.RegisterDevice(ctx, &models.DeviceToken{
		Token:     req.Token,
		UserID:    userID,
		Platform:  req.Platform,
		UpdatedAt: s.clock.Now().UTC(),
	})
}
