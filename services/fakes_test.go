package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"firebase.google.com/go/messaging"
	"github.com/google/uuid"
	"github.com/techagentng/rentchat/models"
	"gorm.io/gorm"
)

type fakeConversationRepo struct {
	mu    sync.Mutex
	convs map[uuid.UUID]*models.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{convs: make(map[uuid.UUID]*models.Conversation)}
}

func (r *fakeConversationRepo) add(tenant, counterparty uuid.UUID) *models.Conversation {
	c := &models.Conversation{ID: uuid.New(), TenantID: tenant, CounterpartyID: counterparty, SubjectType: models.SubjectListing, SubjectID: uuid.New()}
	r.mu.Lock()
	r.convs[c.ID] = c
	r.mu.Unlock()
	return c
}

func (r *fakeConversationRepo) FindOrCreate(_ context.Context, conv *models.Conversation) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.TenantID == conv.TenantID && c.CounterpartyID == conv.CounterpartyID && c.SubjectID == conv.SubjectID {
			cp := *c
			return &cp, nil
		}
	}
	c := *conv
	c.ID = uuid.New()
	r.convs[c.ID] = &c
	cp := c
	return &cp, nil
}

func (r *fakeConversationRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConversationRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Conversation
	for _, c := range r.convs {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.After(out[j].LastActivityAt) })
	return out, nil
}

func (r *fakeConversationRepo) TouchActivity(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.convs[id]; ok && c.LastActivityAt.Before(at) {
		c.LastActivityAt = at
	}
	return nil
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func (r *fakeMessageRepo) CreateMessage(_ context.Context, msg *models.Message) (*models.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ClientKey != "" {
		for _, m := range r.msgs {
			if m.ConversationID == msg.ConversationID && m.ClientKey == msg.ClientKey {
				cp := *m
				return &cp, false, nil
			}
		}
	}
	cp := *msg
	r.msgs = append(r.msgs, &cp)
	out := cp
	return &out, true, nil
}

func (r *fakeMessageRepo) FindMessageByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMessageRepo) ListMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.msgs {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, conversationID, viewerID uuid.UUID, at time.Time) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.msgs {
		if m.ConversationID == conversationID && m.SenderID != viewerID && m.ReadAt == nil {
			t := at
			m.ReadAt = &t
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) CountUnread(_ context.Context, conversationID, viewerID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.ConversationID == conversationID && m.SenderID != viewerID && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

type fakePresenceRepo struct {
	mu   sync.Mutex
	recs map[uuid.UUID]models.PresenceRecord
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{recs: make(map[uuid.UUID]models.PresenceRecord)}
}

func (r *fakePresenceRepo) UpsertPresence(_ context.Context, rec *models.PresenceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.UserID] = *rec
	return nil
}

func (r *fakePresenceRepo) TouchPresence(_ context.Context, userID uuid.UUID, at time.Time) (*models.PresenceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.recs[userID]
	rec.UserID, rec.LastSeenAt = userID, at
	r.recs[userID] = rec
	return &rec, nil
}

func (r *fakePresenceRepo) FindPresence(_ context.Context, userID uuid.UUID) (*models.PresenceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &rec, nil
}

type fakeReactionRepo struct {
	mu        sync.Mutex
	reactions map[models.ReactionKey]models.Reaction
}

func newFakeReactionRepo() *fakeReactionRepo {
	return &fakeReactionRepo{reactions: make(map[models.ReactionKey]models.Reaction)}
}

func (r *fakeReactionRepo) ToggleReaction(_ context.Context, re *models.Reaction) (*models.Reaction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.reactions[re.Key()]; ok {
		delete(r.reactions, re.Key())
		return &existing, false, nil
	}
	if re.ID == uuid.Nil {
		re.ID = uuid.New()
	}
	r.reactions[re.Key()] = *re
	cp := *re
	return &cp, true, nil
}

func (r *fakeReactionRepo) ListReactions(_ context.Context, messageID uuid.UUID) ([]models.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Reaction
	for _, re := range r.reactions {
		if re.MessageID == messageID {
			out = append(out, re)
		}
	}
	return out, nil
}

type fakeTemplateRepo struct {
	mu        sync.Mutex
	templates map[uuid.UUID]models.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: make(map[uuid.UUID]models.Template)}
}

func (r *fakeTemplateRepo) CreateTemplate(_ context.Context, t *models.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = *t
	return nil
}

func (r *fakeTemplateRepo) FindTemplateByID(_ context.Context, id uuid.UUID) (*models.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (r *fakeTemplateRepo) UpdateTemplate(_ context.Context, t *models.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.templates[t.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.Title, cur.Body, cur.Category, cur.Favorite, cur.UpdatedAt = t.Title, t.Body, t.Category, t.Favorite, t.UpdatedAt
	r.templates[t.ID] = cur
	return nil
}

func (r *fakeTemplateRepo) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.templates, id)
	return nil
}

func (r *fakeTemplateRepo) ListTemplates(_ context.Context, ownerID uuid.UUID) ([]models.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Template
	for _, t := range r.templates {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTemplateRepo) IncrementUsage(_ context.Context, id uuid.UUID) (*models.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	t.UsageCount++
	r.templates[id] = t
	return &t, nil
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	tokens  map[string]uuid.UUID
	removed []string
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{tokens: make(map[string]uuid.UUID)}
}

func (r *fakeDeviceRepo) RegisterDevice(_ context.Context, d *models.DeviceToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[d.Token] = d.UserID
	return nil
}

func (r *fakeDeviceRepo) TokensForUser(_ context.Context, userID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for tok, u := range r.tokens {
		if u == userID {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeDeviceRepo) RemoveToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	r.removed = append(r.removed, token)
	return nil
}

type notification struct {
	conversationID, senderID uuid.UUID
	content                  string
}

type fakeNotifier struct {
	calls chan notification
	err   error
}

func newFakeNotifier(err error) *fakeNotifier {
	return &fakeNotifier{calls: make(chan notification, 16), err: err}
}

func (n *fakeNotifier) Notify(_ context.Context, conversationID, senderID uuid.UUID, content string) error {
	n.calls <- notification{conversationID, senderID, content}
	return n.err
}

type fakeMessagingClient struct {
	mu   sync.Mutex
	sent []*messaging.Message
	fail map[string]error
}

func (c *fakeMessagingClient) Send(_ context.Context, m *messaging.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail[m.Token]; err != nil {
		return "", err
	}
	c.sent = append(c.sent, m)
	return "projects/test/messages/1", nil
}
