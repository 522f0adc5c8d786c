package services

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/db"
	errs "github.com/techagentng/rentchat/errors"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
	"gorm.io/gorm"
)

// publish emits a change event. The feed is an optimization over re-fetching,
// so a failed publish is logged and never fails the write.
func publish(ctx context.Context, pub realtime.Publisher, log zerolog.Logger, topic, table string, typ realtime.EventType, row interface{}) {
	e, err := realtime.NewEvent(topic, table, typ, row)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("encode event")
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("topic", topic).Str("type", string(typ)).Msg("publish event")
	}
}

// loadConversation fetches a conversation and checks userID takes part in it.
func loadConversation(ctx context.Context, repo db.ConversationRepository, id, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New("conversation not found", http.StatusNotFound)
		}
		return nil, errors.Wrap(err, "load conversation")
	}
	if !conv.HasParticipant(userID) {
		return nil, errs.New("not a participant of this conversation", http.StatusForbidden)
	}
	return conv, nil
}
