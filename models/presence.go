package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceRecord is overwritten on every write; only the owning user writes it.
type PresenceRecord struct {
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

const (
	PresenceOnline    = "online"
	PresenceOffline   = "offline"
	PresenceHeartbeat = "heartbeat"
)

type PresenceRequest struct {
	Status string `json:"status" binding:"required,oneof=online offline heartbeat"`
}

// TypingState is ephemeral and never stored in postgres.
type TypingState struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type TypingRequest struct {
	IsTyping *bool `json:"is_typing" binding:"required"`
}

// Active reports whether the state still counts as typing at now. A true flag
// older than staleAfter is treated as false.
func (t TypingState) Active(now time.Time, staleAfter time.Duration) bool {
	return t.IsTyping && now.Sub(t.UpdatedAt) < staleAfter
}

// DeviceToken maps a user to a push token.
type DeviceToken struct {
	Token     string    `gorm:"primaryKey" json:"token"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Platform  string    `json:"platform"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"omitempty,oneof=ios android web"`
}
