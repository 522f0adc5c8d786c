package models

import (
	"time"

	"github.com/google/uuid"
)

// Reaction is unique per (message, user, emoji).
type Reaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_tuple" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_tuple" json:"user_id"`
	Emoji     string    `gorm:"not null;uniqueIndex:idx_reaction_tuple" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type ToggleReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=32"`
}

type ToggleReactionResponse struct {
	Added    bool     `json:"added"`
	Reaction Reaction `json:"reaction"`
}

// Key identifies the tuple a reaction occupies.
func (r Reaction) Key() ReactionKey {
	return ReactionKey{MessageID: r.MessageID, UserID: r.UserID, Emoji: r.Emoji}
}

type ReactionKey struct {
	MessageID uuid.UUID
	UserID    uuid.UUID
	Emoji     string
}
