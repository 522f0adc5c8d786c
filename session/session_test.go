package session

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
	"github.com/techagentng/rentchat/services"
)

func TestSubstitute(t *testing.T) {
	values := map[string]string{"tenant_name": "Alex", "viewing_date": "2025-01-05"}
	tests := []struct {
		body, want string
	}{
		{"Hello {tenant_name}, viewing on {viewing_date}", "Hello Alex, viewing on 2025-01-05"},
		{"Unit {unit} is ready, {tenant_name}", "Unit {unit} is ready, Alex"},
		{"{tenant_name}{tenant_name}", "AlexAlex"},
		{"no placeholders", "no placeholders"},
		{"{ tenant_name } {}", "{ tenant_name } {}"},
		{"Unit {unit-no} at {property address}", "Unit 4B at 12 Marina Road"},
		{"{{tenant_name}}", "{Alex}"},
	}
	values["unit-no"] = "4B"
	values["property address"] = "12 Marina Road"
	for _, tt := range tests {
		if got := Substitute(tt.body, values); got != tt.want {
			t.Errorf("Substitute(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("Hi {name}, {move-in date} works? Thanks {name}")
	if !reflect.DeepEqual(got, []string{"name", "move-in date"}) {
		t.Errorf("Placeholders = %v", got)
	}
}

func TestUnreadCount(t *testing.T) {
	me, them := uuid.New(), uuid.New()
	read := t0
	msgs := []models.Message{
		{SenderID: them},
		{SenderID: them, ReadAt: &read},
		{SenderID: me},
		{SenderID: them},
	}
	if n := UnreadCount(msgs, me); n != 2 {
		t.Errorf("UnreadCount = %d, want 2", n)
	}
}

func TestPresenceLabel(t *testing.T) {
	now := t0
	tests := []struct {
		name string
		rec  models.PresenceRecord
		want string
	}{
		{"online", models.PresenceRecord{Online: true, LastSeenAt: now.Add(-time.Hour)}, "Online"},
		{"never seen", models.PresenceRecord{}, "Offline"},
		{"minutes", models.PresenceRecord{LastSeenAt: now.Add(-3 * time.Minute)}, "last seen 3 minutes ago"},
		{"hours", models.PresenceRecord{LastSeenAt: now.Add(-2 * time.Hour)}, "last seen 2 hours ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PresenceLabel(tt.rec, now); got != tt.want {
				t.Errorf("PresenceLabel = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeartbeaterTicks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	beats := make(chan struct{}, 4)
	h := NewHeartbeater(clock, DefaultHeartbeat, func(context.Context) error {
		beats <- struct{}{}
		return nil
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(DefaultHeartbeat)
	select {
	case <-beats:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat after one interval")
	}

	cancel()
	<-done
}

type recorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *recorder) emit(v bool) {
	r.mu.Lock()
	r.events = append(r.events, v)
	r.mu.Unlock()
}

func (r *recorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func TestTypingDebouncer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	d := NewTypingDebouncer(clock, rec.emit)

	d.Keystroke()
	clock.Advance(time.Second)
	d.Keystroke()
	clock.Advance(time.Second)
	d.Keystroke()
	if got := rec.get(); !reflect.DeepEqual(got, []bool{true}) {
		t.Fatalf("while typing = %v", got)
	}

	clock.Advance(TypingIdleAfter)
	eventually(t, "idle off", func() bool { return reflect.DeepEqual(rec.get(), []bool{true, false}) })
	if d.Typing() {
		t.Error("still typing after idle")
	}

	d.Keystroke()
	d.Sent()
	if got := rec.get(); !reflect.DeepEqual(got, []bool{true, false, true, false}) {
		t.Fatalf("after send = %v", got)
	}
	clock.Advance(TypingIdleAfter)
	time.Sleep(10 * time.Millisecond)
	if got := rec.get(); len(got) != 4 {
		t.Errorf("timer fired after Sent: %v", got)
	}

	d.Stop()
	d.Keystroke()
	if got := rec.get(); len(got) != 4 {
		t.Errorf("emitted after Stop: %v", got)
	}
}

func TestTypingTracker(t *testing.T) {
	me, them := uuid.New(), uuid.New()
	tr := NewTypingTracker(me)

	if tr.Apply(models.TypingState{UserID: me, IsTyping: true, UpdatedAt: t0}) {
		t.Error("tracked own typing state")
	}
	tr.Apply(models.TypingState{UserID: them, IsTyping: true, UpdatedAt: t0})
	if tr.Apply(models.TypingState{UserID: them, IsTyping: false, UpdatedAt: t0.Add(-time.Second)}) {
		t.Error("older state replaced a newer one")
	}

	if !tr.Typing(t0.Add(4 * time.Second)) {
		t.Error("not typing within the window")
	}
	if tr.Typing(t0.Add(TypingStaleAfter)) {
		t.Error("still typing after 5s without refresh")
	}

	tr.Apply(models.TypingState{UserID: them, IsTyping: false, UpdatedAt: t0.Add(time.Second)})
	if tr.Typing(t0.Add(time.Second)) {
		t.Error("explicit stop ignored")
	}
}

func TestReactionSetToggleTwiceIsEmpty(t *testing.T) {
	m1, a, b := uuid.New(), uuid.New(), uuid.New()
	set := NewReactionSet()
	set.Insert(models.Reaction{ID: uuid.New(), MessageID: m1, UserID: a, Emoji: "❤️", CreatedAt: t0})

	thumbs := models.Reaction{ID: uuid.New(), MessageID: m1, UserID: b, Emoji: "👍", CreatedAt: t0.Add(time.Second)}
	set.ApplyToggle(models.ToggleReactionResponse{Added: true, Reaction: thumbs})
	insert, _ := realtime.NewEvent(realtime.ConversationTopic(uuid.New()), realtime.TableReactions, realtime.EventInsert, thumbs)
	if changed, err := set.ApplyEvent(insert); err != nil || changed {
		t.Errorf("feed echo of own toggle changed the set: %v %v", changed, err)
	}

	set.ApplyToggle(models.ToggleReactionResponse{Added: false, Reaction: thumbs})
	if set.Has(thumbs.Key()) {
		t.Error("(m1, B, 👍) present after two toggles")
	}
	del, _ := realtime.NewEvent(insert.Topic, realtime.TableReactions, realtime.EventDelete, thumbs)
	if changed, _ := set.ApplyEvent(del); changed {
		t.Error("replayed delete changed the set")
	}
	if got := set.For(m1); len(got) != 1 || got[0].UserID != a {
		t.Errorf("A's reaction disturbed: %+v", got)
	}
}

func TestGroupReactions(t *testing.T) {
	m1, me, sam, kim := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	reactions := []models.Reaction{
		{MessageID: m1, UserID: sam, Emoji: "👍"},
		{MessageID: m1, UserID: kim, Emoji: "❤️"},
		{MessageID: m1, UserID: me, Emoji: "👍"},
		{MessageID: m1, UserID: uuid.New(), Emoji: "👍"},
	}
	names := map[uuid.UUID]string{me: "You", sam: "Sam", kim: "Kim"}

	got := GroupReactions(reactions, names, me)
	want := []ReactionGroup{
		{Emoji: "👍", Count: 3, Users: []string{"Sam", "You", UnknownUser}, Mine: true},
		{Emoji: "❤️", Count: 1, Users: []string{"Kim"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GroupReactions = %+v", got)
	}
}

type stubMessages struct {
	services.MessageService
	sender uuid.UUID
}

func (s *stubMessages) Send(_ context.Context, conversationID, senderID uuid.UUID, req *models.SendMessageRequest) (*models.Message, error) {
	s.sender = senderID
	return &models.Message{ID: uuid.New(), ConversationID: conversationID, SenderID: senderID, ClientKey: req.ClientKey}, nil
}

type stubTemplates struct {
	services.TemplateService
	owner uuid.UUID
}

func (s *stubTemplates) Use(_ context.Context, ownerID, templateID uuid.UUID) (*models.Template, error) {
	s.owner = ownerID
	return &models.Template{ID: templateID, OwnerID: ownerID, UsageCount: 1}, nil
}

func TestLocalBackendActsAsUser(t *testing.T) {
	user := uuid.New()
	msgs := &stubMessages{}
	tpls := &stubTemplates{}
	hub := realtime.NewHub(zerolog.Nop())
	defer hub.Close()
	b := NewLocalBackend(user, LocalServices{Messages: msgs, Templates: tpls, Feed: hub})

	row, err := b.SendMessage(context.Background(), uuid.New(), &models.SendMessageRequest{ClientKey: "k", Kind: models.KindText, Content: "x"})
	if err != nil || msgs.sender != user || row.ClientKey != "k" {
		t.Errorf("SendMessage = %+v, %v; sender %s", row, err, msgs.sender)
	}
	if _, err := b.UseTemplate(context.Background(), uuid.New()); err != nil || tpls.owner != user {
		t.Errorf("UseTemplate owner = %s, %v", tpls.owner, err)
	}

	sub := b.Subscribe("presence:"+user.String(), nil, func(realtime.Event) {})
	defer sub.Close()
	if hub.SubscriberCount("presence:"+user.String()) != 1 {
		t.Error("Subscribe did not reach the feed")
	}
}
