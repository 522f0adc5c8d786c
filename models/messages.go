package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVoice MessageKind = "voice"
)

// Message is one chat entry. Rows are never deleted; the only mutation is
// stamping ReadAt.
type Message struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID  uuid.UUID   `gorm:"type:uuid;not null;index:idx_message_conversation_created;uniqueIndex:idx_message_client_key,priority:1,where:client_key <> ''" json:"conversation_id"`
	SenderID        uuid.UUID   `gorm:"type:uuid;not null" json:"sender_id"`
	ClientKey       string      `gorm:"uniqueIndex:idx_message_client_key,priority:2" json:"client_key,omitempty"`
	Kind            MessageKind `gorm:"not null;default:text" json:"kind"`
	Content         string      `json:"content,omitempty"`
	MediaURL        string      `json:"media_url,omitempty"`
	DurationSeconds int         `json:"duration_seconds,omitempty"` // voice only
	CreatedAt       time.Time   `gorm:"index:idx_message_conversation_created" json:"created_at"`
	ReadAt          *time.Time  `json:"read_at"`
}

type SendMessageRequest struct {
	ClientKey       string      `json:"client_key" binding:"omitempty,max=64"`
	Kind            MessageKind `json:"kind" binding:"required,oneof=text image voice"`
	Content         string      `json:"content" binding:"max=4000"`
	MediaURL        string      `json:"media_url" binding:"omitempty,url"`
	DurationSeconds int         `json:"duration_seconds" binding:"gte=0"`
}

var (
	ErrEmptyText     = errors.New("text message has no content")
	ErrMissingMedia  = errors.New("media message has no url")
	ErrMissingLength = errors.New("voice message has no duration")
	ErrUnknownKind   = errors.New("unknown message kind")
)

// Validate checks that the payload matches the message kind.
func (m *Message) Validate() error {
	switch m.Kind {
	case KindText:
		if strings.TrimSpace(m.Content) == "" {
			return ErrEmptyText
		}
	case KindImage:
		if m.MediaURL == "" {
			return ErrMissingMedia
		}
	case KindVoice:
		if m.MediaURL == "" {
			return ErrMissingMedia
		}
		if m.DurationSeconds <= 0 {
			return ErrMissingLength
		}
	default:
		return ErrUnknownKind
	}
	return nil
}

// IsRead reports whether a recipient has stamped the message.
func (m *Message) IsRead() bool {
	return m.ReadAt != nil
}

// SamePayload compares kind and payload only.
func (m *Message) SamePayload(o *Message) bool {
	return m.Kind == o.Kind &&
		m.Content == o.Content &&
		m.MediaURL == o.MediaURL &&
		m.DurationSeconds == o.DurationSeconds
}

// Preview is the one-line text shown in push notifications and inbox rows.
func (m *Message) Preview() string {
	switch m.Kind {
	case KindImage:
		return "📷 Photo"
	case KindVoice:
		return "🎤 Voice message"
	}
	const max = 120
	r := []rune(m.Content)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return m.Content
}
