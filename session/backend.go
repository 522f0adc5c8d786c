package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
	"github.com/techagentng/rentchat/services"
)

// Backend is everything a ConversationView needs from the server, bound to
// the signed in user.
type Backend interface {
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID uuid.UUID, req *models.SendMessageRequest) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)

	SetOnline(ctx context.Context) error
	SetOffline(ctx context.Context) error
	Heartbeat(ctx context.Context) error
	GetPresence(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error)

	SetTyping(ctx context.Context, conversationID uuid.UUID, isTyping bool) error

	ToggleReaction(ctx context.Context, messageID uuid.UUID, emoji string) (*models.ToggleReactionResponse, error)
	ListReactions(ctx context.Context, messageID uuid.UUID) ([]models.Reaction, error)

	UseTemplate(ctx context.Context, templateID uuid.UUID) (*models.Template, error)

	realtime.Subscriber
}

// LocalServices are the services an in-process backend delegates to.
type LocalServices struct {
	Messages  services.MessageService
	Presence  services.PresenceService
	Typing    services.TypingService
	Reactions services.ReactionService
	Templates services.TemplateService
	Feed      realtime.Subscriber
}

type localBackend struct {
	userID uuid.UUID
	svc    LocalServices
}

// NewLocalBackend runs a view against services in the same process, acting
// as userID. Bots and integration tests use it instead of the HTTP API.
func NewLocalBackend(userID uuid.UUID, svc LocalServices) Backend {
	return &localBackend{userID: userID, svc: svc}
}

func (b *localBackend) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	return b.svc.Messages.List(ctx, conversationID, b.userID, 0)
}

func (b *localBackend) SendMessage(ctx context.Context, conversationID uuid.UUID, req *models.SendMessageRequest) (*models.Message, error) {
	return b.svc.Messages.Send(ctx, conversationID, b.userID, req)
}

func (b *localBackend) MarkRead(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	return b.svc.Messages.MarkRead(ctx, conversationID, b.userID)
}

func (b *localBackend) SetOnline(ctx context.Context) error {
	_, err := b.svc.Presence.SetOnline(ctx, b.userID)
	return err
}

func (b *localBackend) SetOffline(ctx context.Context) error {
	_, err := b.svc.Presence.SetOffline(ctx, b.userID)
	return err
}

func (b *localBackend) Heartbeat(ctx context.Context) error {
	_, err := b.svc.Presence.Heartbeat(ctx, b.userID)
	return err
}

func (b *localBackend) GetPresence(ctx context.Context, userID uuid.UUID) (*models.PresenceRecord, error) {
	return b.svc.Presence.Get(ctx, userID)
}

func (b *localBackend) SetTyping(ctx context.Context, conversationID uuid.UUID, isTyping bool) error {
	_, err := b.svc.Typing.SetTyping(ctx, conversationID, b.userID, isTyping)
	return err
}

func (b *localBackend) ToggleReaction(ctx context.Context, messageID uuid.UUID, emoji string) (*models.ToggleReactionResponse, error) {
	return b.svc.Reactions.Toggle(ctx, messageID, b.userID, emoji)
}

func (b *localBackend) ListReactions(ctx context.Context, messageID uuid.UUID) ([]models.Reaction, error) {
	return b.svc.Reactions.List(ctx, messageID, b.userID)
}

func (b *localBackend) UseTemplate(ctx context.Context, templateID uuid.UUID) (*models.Template, error) {
	return b.svc.Templates.Use(ctx, b.userID, templateID)
}

func (b *localBackend) Subscribe(topic string, pred realtime.Predicate, h realtime.Handler) *realtime.Subscription {
	return b.svc.Feed.Subscribe(topic, pred, h)
}
