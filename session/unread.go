package session

import (
	"github.com/google/uuid"
	"github.com/techagentng/rentchat/models"
)

// UnreadCount counts inbound messages the viewer has not read.
func UnreadCount(messages []models.Message, viewer uuid.UUID) int {
	n := 0
	for i := range messages {
		if messages[i].SenderID != viewer && messages[i].ReadAt == nil {
			n++
		}
	}
	return n
}
