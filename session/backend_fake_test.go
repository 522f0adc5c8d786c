package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
)

// fakeBackend plays the server: writes are applied to an in-memory table
// and echoed on a real hub, the way the services do.
type fakeBackend struct {
	*realtime.Hub
	clock          clockwork.Clock
	conversationID uuid.UUID
	userID         uuid.UUID

	mu        sync.Mutex
	rows      []models.Message
	sendGate  chan struct{}
	sendErrs  []error
	sendReqs  []models.SendMessageRequest
	markReads int
	online    []bool
	beats     int
	typing    []bool
	// typingOnDelay holds back SetTyping(true) calls, like a slow network.
	typingOnDelay time.Duration
	templates []uuid.UUID
	presence  *models.PresenceRecord
}

func newFakeBackend(t *testing.T, clock clockwork.Clock, conversationID, userID uuid.UUID) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		Hub:            realtime.NewHub(zerolog.Nop()),
		clock:          clock,
		conversationID: conversationID,
		userID:         userID,
	}
	t.Cleanup(b.Hub.Close)
	return b
}

func (b *fakeBackend) publish(table string, typ realtime.EventType, row interface{}) {
	e, err := realtime.NewEvent(realtime.ConversationTopic(b.conversationID), table, typ, row)
	if err != nil {
		panic(err)
	}
	_ = b.Publish(context.Background(), e)
}

// inbound stores and publishes a message from someone else.
func (b *fakeBackend) inbound(sender uuid.UUID, content string) models.Message {
	row := models.Message{
		ID:             uuid.New(),
		ConversationID: b.conversationID,
		SenderID:       sender,
		Kind:           models.KindText,
		Content:        content,
		CreatedAt:      b.clock.Now(),
	}
	b.mu.Lock()
	b.rows = append(b.rows, row)
	b.mu.Unlock()
	b.publish(realtime.TableMessages, realtime.EventInsert, row)
	return row
}

func (b *fakeBackend) ListMessages(context.Context, uuid.UUID) ([]models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Message(nil), b.rows...), nil
}

func (b *fakeBackend) SendMessage(ctx context.Context, conversationID uuid.UUID, req *models.SendMessageRequest) (*models.Message, error) {
	b.mu.Lock()
	gate := b.sendGate
	b.sendReqs = append(b.sendReqs, *req)
	var err error
	if len(b.sendErrs) > 0 {
		err, b.sendErrs = b.sendErrs[0], b.sendErrs[1:]
	}
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	for _, r := range b.rows {
		if r.ClientKey == req.ClientKey {
			b.mu.Unlock()
			return &r, nil
		}
	}
	row := models.Message{
		ID:              uuid.New(),
		ConversationID:  conversationID,
		SenderID:        b.userID,
		ClientKey:       req.ClientKey,
		Kind:            req.Kind,
		Content:         req.Content,
		MediaURL:        req.MediaURL,
		DurationSeconds: req.DurationSeconds,
		CreatedAt:       b.clock.Now(),
	}
	b.rows = append(b.rows, row)
	b.mu.Unlock()

	b.publish(realtime.TableMessages, realtime.EventInsert, row)
	return &row, nil
}

func (b *fakeBackend) MarkRead(context.Context, uuid.UUID) ([]models.Message, error) {
	b.mu.Lock()
	b.markReads++
	now := b.clock.Now()
	var stamped []models.Message
	for i := range b.rows {
		if b.rows[i].SenderID != b.userID && b.rows[i].ReadAt == nil {
			at := now
			b.rows[i].ReadAt = &at
			stamped = append(stamped, b.rows[i])
		}
	}
	b.mu.Unlock()
	for _, row := range stamped {
		b.publish(realtime.TableMessages, realtime.EventUpdate, row)
	}
	return stamped, nil
}

func (b *fakeBackend) SetOnline(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online = append(b.online, true)
	return nil
}

func (b *fakeBackend) SetOffline(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online = append(b.online, false)
	return nil
}

func (b *fakeBackend) Heartbeat(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beats++
	return nil
}

func (b *fakeBackend) GetPresence(_ context.Context, userID uuid.UUID) (*models.PresenceRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.presence != nil {
		rec := *b.presence
		return &rec, nil
	}
	return &models.PresenceRecord{UserID: userID}, nil
}

func (b *fakeBackend) SetTyping(_ context.Context, _ uuid.UUID, isTyping bool) error {
	b.mu.Lock()
	delay := b.typingOnDelay
	b.mu.Unlock()
	if isTyping && delay > 0 {
		time.Sleep(delay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typing = append(b.typing, isTyping)
	return nil
}

func (b *fakeBackend) ToggleReaction(context.Context, uuid.UUID, string) (*models.ToggleReactionResponse, error) {
	return nil, errors.New("not used")
}

func (b *fakeBackend) ListReactions(context.Context, uuid.UUID) ([]models.Reaction, error) {
	return nil, nil
}

func (b *fakeBackend) UseTemplate(_ context.Context, templateID uuid.UUID) (*models.Template, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.templates = append(b.templates, templateID)
	return &models.Template{ID: templateID, UsageCount: int64(len(b.templates))}, nil
}

func (b *fakeBackend) snapshot(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
