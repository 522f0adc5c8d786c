package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
	"golang.org/x/sync/errgroup"
)

const (
	writeTimeout   = 10 * time.Second
	expiryInterval = time.Second
)

var (
	ErrViewClosed  = errors.New("conversation view is closed")
	ErrViewNotOpen = errors.New("conversation view is not open")
	ErrNotFailed   = errors.New("entry is not a failed send")
)

type ViewConfig struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	CounterpartID  uuid.UUID

	Clock clockwork.Clock
	Log   zerolog.Logger

	ConfirmTimeout    time.Duration
	MatchWindow       time.Duration
	HeartbeatInterval time.Duration

	// OnChange is called after any visible state changes, outside the
	// view lock.
	OnChange func()
}

// Outgoing is a message the viewer composes.
type Outgoing struct {
	Kind            models.MessageKind
	Content         string
	MediaURL        string
	DurationSeconds int
}

// ConversationView is the client side of one open conversation: the
// reconciled timeline, reactions, the other side's typing and presence,
// and the compose buffer.
type ConversationView struct {
	conf    ViewConfig
	backend Backend
	clock   clockwork.Clock
	log     zerolog.Logger

	mu        sync.Mutex
	timeline  *Timeline
	reactions *ReactionSet
	typing    *TypingTracker
	presence  models.PresenceRecord
	draft     string
	focused   bool
	opened    bool
	closed    bool

	debouncer *TypingDebouncer
	typingW   *stateWriter
	presenceW *stateWriter
	subs      realtime.Group

	ctx    context.Context
	cancel context.CancelFunc
	// writeCtx outlives Close so writes already issued can finish.
	writeCtx context.Context

	taskMu   sync.Mutex
	stopping bool
	tasks    sync.WaitGroup
}

func NewConversationView(backend Backend, conf ViewConfig) *ConversationView {
	if conf.Clock == nil {
		conf.Clock = clockwork.NewRealClock()
	}
	if conf.ConfirmTimeout <= 0 {
		conf.ConfirmTimeout = DefaultConfirmTimeout
	}
	if conf.MatchWindow <= 0 {
		conf.MatchWindow = DefaultMatchWindow
	}
	if conf.HeartbeatInterval <= 0 {
		conf.HeartbeatInterval = DefaultHeartbeat
	}
	v := &ConversationView{
		conf:      conf,
		backend:   backend,
		clock:     conf.Clock,
		log:       conf.Log.With().Str("component", "conversation_view").Str("conversation", conf.ConversationID.String()).Logger(),
		timeline:  NewTimeline(conf.ConversationID, conf.UserID),
		reactions: NewReactionSet(),
		typing:    NewTypingTracker(conf.UserID),
		presence:  models.PresenceRecord{UserID: conf.CounterpartID},
	}
	v.timeline.SetMatchWindow(conf.MatchWindow)
	v.typingW = newStateWriter(func(isTyping bool) {
		v.runWrite("set typing", func(ctx context.Context) error {
			return v.backend.SetTyping(ctx, v.conf.ConversationID, isTyping)
		})
	})
	v.presenceW = newStateWriter(func(online bool) {
		if online {
			v.runWrite("set online", v.backend.SetOnline)
			return
		}
		v.runWrite("set offline", v.backend.SetOffline)
	})
	v.debouncer = NewTypingDebouncer(conf.Clock, v.typingW.Set)
	return v
}

// Open subscribes to the conversation, typing and presence feeds, then
// fetches history and presence so nothing missed before the subscriptions
// is lost. The viewer goes online and reads the conversation. A fetch error
// is returned but the view stays open and live.
func (v *ConversationView) Open(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.opened {
		v.mu.Unlock()
		return nil
	}
	v.opened = true
	v.focused = true
	v.ctx, v.cancel = context.WithCancel(ctx)
	v.writeCtx = context.WithoutCancel(ctx)
	v.mu.Unlock()

	v.subs.Add(v.backend.Subscribe(realtime.ConversationTopic(v.conf.ConversationID), nil, v.onConversationEvent))
	v.subs.Add(v.backend.Subscribe(realtime.TypingTopic(v.conf.ConversationID), realtime.TableIs(realtime.TableTyping), v.onTypingEvent))
	if v.conf.CounterpartID != uuid.Nil {
		v.subs.Add(v.backend.Subscribe(realtime.PresenceTopic(v.conf.CounterpartID), realtime.TableIs(realtime.TablePresence), v.onPresenceEvent))
	}

	v.presenceW.Set(true)
	v.goLoop(NewHeartbeater(v.clock, v.conf.HeartbeatInterval, v.backend.Heartbeat, v.log).Run)
	v.goLoop(v.expireLoop)

	err := v.Refresh(v.ctx)
	v.markRead()
	return err
}

// Refresh re-fetches history and the counterpart's presence. Call it after
// the feed reconnects.
func (v *ConversationView) Refresh(ctx context.Context) error {
	var (
		rows     []models.Message
		presence *models.PresenceRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = v.backend.ListMessages(gctx, v.conf.ConversationID)
		return err
	})
	if v.conf.CounterpartID != uuid.Nil {
		g.Go(func() error {
			var err error
			presence, err = v.backend.GetPresence(gctx, v.conf.CounterpartID)
			return err
		})
	}
	err := g.Wait()

	v.update(func() bool {
		changed := v.timeline.Reconcile(rows)
		if presence != nil {
			v.presence = *presence
			changed = true
		}
		return changed
	})
	if err != nil && !v.isClosed() {
		v.log.Warn().Err(err).Msg("refresh conversation")
	}
	return err
}

// Close disposes the subscriptions, stops the heartbeat and expiry loops
// and reports the viewer offline. Writes already issued keep running to
// completion; their results, like later events, are dropped.
func (v *ConversationView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	opened := v.opened
	v.mu.Unlock()

	v.subs.Close()
	v.debouncer.Sent()
	v.debouncer.Stop()

	v.taskMu.Lock()
	v.stopping = true
	v.taskMu.Unlock()

	if !opened {
		return
	}
	v.cancel()
	v.tasks.Wait()

	// Queued behind any online write still in flight.
	v.presenceW.Set(false)
	v.presenceW.Flush()
}

// Foreground marks the view focused: the viewer goes online and reads.
func (v *ConversationView) Foreground() {
	if !v.setFocus(true) {
		return
	}
	v.presenceW.Set(true)
	v.markRead()
}

// Background marks the view unfocused and the viewer offline.
func (v *ConversationView) Background() {
	if !v.setFocus(false) {
		return
	}
	v.debouncer.Sent()
	v.presenceW.Set(false)
}

func (v *ConversationView) setFocus(focused bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || !v.opened || v.focused == focused {
		return false
	}
	v.focused = focused
	return true
}

// SetDraft replaces the compose buffer as the user types.
func (v *ConversationView) SetDraft(text string) {
	v.update(func() bool {
		v.draft = text
		return true
	})
	if text != "" {
		v.debouncer.Keystroke()
	}
}

func (v *ConversationView) Draft() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft
}

// SendDraft sends the compose buffer as a text message.
func (v *ConversationView) SendDraft() (Entry, error) {
	return v.Send(Outgoing{Kind: models.KindText, Content: strings.TrimSpace(v.Draft())})
}

// Send appends a pending entry, clears the compose buffer and submits the
// message in the background. Invalid payloads are rejected before anything
// is appended.
func (v *ConversationView) Send(out Outgoing) (Entry, error) {
	msg := models.Message{
		Kind:            out.Kind,
		Content:         out.Content,
		MediaURL:        out.MediaURL,
		DurationSeconds: out.DurationSeconds,
	}
	if err := msg.Validate(); err != nil {
		return Entry{}, err
	}

	v.mu.Lock()
	if err := v.sendable(); err != nil {
		v.mu.Unlock()
		return Entry{}, err
	}
	entry := v.timeline.AddPending(msg, v.clock.Now())
	v.draft = ""
	v.mu.Unlock()

	v.debouncer.Sent()
	v.changed()
	v.submit(entry)
	return entry, nil
}

// Retry resubmits a failed entry under its original client key.
func (v *ConversationView) Retry(localID string) (Entry, error) {
	v.mu.Lock()
	if err := v.sendable(); err != nil {
		v.mu.Unlock()
		return Entry{}, err
	}
	entry, ok := v.timeline.Retry(localID, v.clock.Now())
	v.mu.Unlock()
	if !ok {
		return Entry{}, ErrNotFailed
	}
	v.changed()
	v.submit(entry)
	return entry, nil
}

func (v *ConversationView) sendable() error {
	if v.closed {
		return ErrViewClosed
	}
	if !v.opened {
		return ErrViewNotOpen
	}
	return nil
}

func (v *ConversationView) submit(entry Entry) {
	req := &models.SendMessageRequest{
		ClientKey:       entry.Message.ClientKey,
		Kind:            entry.Message.Kind,
		Content:         entry.Message.Content,
		MediaURL:        entry.Message.MediaURL,
		DurationSeconds: entry.Message.DurationSeconds,
	}
	v.goWrite("send message", func(ctx context.Context) error {
		row, err := v.backend.SendMessage(ctx, v.conf.ConversationID, req)
		if err != nil {
			v.update(func() bool { return v.timeline.MarkFailed(entry.LocalID) })
			return err
		}
		v.update(func() bool { return v.timeline.Confirm(*row) })
		return nil
	})
}

// UseTemplate fills the compose buffer from t and counts the use.
func (v *ConversationView) UseTemplate(t models.Template, values map[string]string) string {
	text := Substitute(t.Body, values)
	v.update(func() bool {
		v.draft = text
		return true
	})
	v.goWrite("use template", func(ctx context.Context) error {
		_, err := v.backend.UseTemplate(ctx, t.ID)
		return err
	})
	return text
}

// ToggleReaction flips the viewer's emoji on a message. The local set is
// updated when the server answers or the feed catches up.
func (v *ConversationView) ToggleReaction(messageID uuid.UUID, emoji string) {
	v.goWrite("toggle reaction", func(ctx context.Context) error {
		res, err := v.backend.ToggleReaction(ctx, messageID, emoji)
		if err != nil {
			return err
		}
		v.update(func() bool { return v.reactions.ApplyToggle(*res) })
		return nil
	})
}

// LoadReactions fetches the reactions on one message, for the detail view.
func (v *ConversationView) LoadReactions(ctx context.Context, messageID uuid.UUID) error {
	list, err := v.backend.ListReactions(ctx, messageID)
	if err != nil {
		return err
	}
	v.update(func() bool {
		v.reactions.Replace(messageID, list)
		return true
	})
	return nil
}

func (v *ConversationView) Messages() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.timeline.Messages()
}

// Unread counts inbound messages still unread locally.
func (v *ConversationView) Unread() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return UnreadCount(v.timeline.Rows(), v.conf.UserID)
}

func (v *ConversationView) Reactions(messageID uuid.UUID, names map[uuid.UUID]string) []ReactionGroup {
	v.mu.Lock()
	defer v.mu.Unlock()
	return GroupReactions(v.reactions.For(messageID), names, v.conf.UserID)
}

func (v *ConversationView) TypingUsers() []uuid.UUID {
	return v.typing.TypingUsers(v.clock.Now())
}

func (v *ConversationView) Presence() models.PresenceRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.presence
}

func (v *ConversationView) PresenceLabel() string {
	return PresenceLabel(v.Presence(), v.clock.Now())
}

func (v *ConversationView) onConversationEvent(e realtime.Event) {
	switch e.Table {
	case realtime.TableMessages:
		var row models.Message
		if err := e.Decode(&row); err != nil {
			v.log.Warn().Err(err).Msg("decode message event")
			return
		}
		var inbound bool
		v.update(func() bool {
			if e.Type == realtime.EventUpdate {
				return v.timeline.ApplyUpdate(row.ID, models.PatchFromRow(row))
			}
			changed := v.timeline.Confirm(row)
			inbound = changed && e.Type == realtime.EventInsert && row.SenderID != v.conf.UserID && v.focused
			return changed
		})
		if inbound {
			v.markRead()
		}
	case realtime.TableReactions:
		v.update(func() bool {
			changed, err := v.reactions.ApplyEvent(e)
			if err != nil {
				v.log.Warn().Err(err).Msg("apply reaction event")
			}
			return changed
		})
	}
}

func (v *ConversationView) onTypingEvent(e realtime.Event) {
	var st models.TypingState
	if err := e.Decode(&st); err != nil {
		v.log.Warn().Err(err).Msg("decode typing event")
		return
	}
	v.update(func() bool { return v.typing.Apply(st) })
}

func (v *ConversationView) onPresenceEvent(e realtime.Event) {
	var rec models.PresenceRecord
	if err := e.Decode(&rec); err != nil {
		v.log.Warn().Err(err).Msg("decode presence event")
		return
	}
	v.update(func() bool {
		if rec.UserID != v.conf.CounterpartID || rec.LastSeenAt.Before(v.presence.LastSeenAt) {
			return false
		}
		v.presence = rec
		return true
	})
}

func (v *ConversationView) markRead() {
	v.goWrite("mark read", func(ctx context.Context) error {
		stamped, err := v.backend.MarkRead(ctx, v.conf.ConversationID)
		if err != nil {
			return err
		}
		v.update(func() bool {
			changed := false
			for _, row := range stamped {
				if v.timeline.ApplyUpdate(row.ID, models.PatchFromRow(row)) {
					changed = true
				}
			}
			return changed
		})
		return nil
	})
}

func (v *ConversationView) expireLoop(ctx context.Context) {
	ticker := v.clock.NewTicker(expiryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			v.update(func() bool {
				return len(v.timeline.ExpirePending(v.clock.Now(), v.conf.ConfirmTimeout)) > 0
			})
		}
	}
}

// update runs fn under the view lock unless the view is closed, then
// notifies OnChange if fn reports a change.
func (v *ConversationView) update(fn func() bool) bool {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return false
	}
	changed := fn()
	v.mu.Unlock()
	if changed {
		v.changed()
	}
	return changed
}

func (v *ConversationView) changed() {
	if v.conf.OnChange != nil {
		v.conf.OnChange()
	}
}

func (v *ConversationView) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *ConversationView) viewContext() context.Context {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ctx
}

// goWrite issues a backend write in the background. Close neither cancels
// nor waits for it.
func (v *ConversationView) goWrite(name string, fn func(ctx context.Context) error) {
	v.mu.Lock()
	issued := v.writeCtx != nil && !v.closed
	v.mu.Unlock()
	if !issued {
		return
	}
	go v.runWrite(name, fn)
}

// runWrite performs one write on a context that survives Close. Failures
// are logged unless the view has been closed meanwhile.
func (v *ConversationView) runWrite(name string, fn func(ctx context.Context) error) {
	v.mu.Lock()
	base := v.writeCtx
	v.mu.Unlock()
	if base == nil {
		return
	}
	ctx, cancel := context.WithTimeout(base, writeTimeout)
	defer cancel()
	if err := fn(ctx); err != nil && !v.isClosed() {
		v.log.Warn().Err(err).Str("task", name).Msg("background call failed")
	}
}

func (v *ConversationView) goLoop(fn func(ctx context.Context)) {
	ctx := v.viewContext()
	if ctx == nil || !v.startTask() {
		return
	}
	go func() {
		defer v.tasks.Done()
		fn(ctx)
	}()
}

func (v *ConversationView) startTask() bool {
	v.taskMu.Lock()
	defer v.taskMu.Unlock()
	if v.stopping {
		return false
	}
	v.tasks.Add(1)
	return true
}
