package session

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/models"
)

// DefaultHeartbeat is how often an open view re-stamps last seen.
const DefaultHeartbeat = 30 * time.Second

// PresenceLabel renders a presence record for the conversation header.
func PresenceLabel(rec models.PresenceRecord, now time.Time) string {
	if rec.Online {
		return "Online"
	}
	if rec.LastSeenAt.IsZero() {
		return "Offline"
	}
	return "last seen " + humanize.RelTime(rec.LastSeenAt, now, "ago", "from now")
}

// Heartbeater calls beat on every tick until its context ends.
type Heartbeater struct {
	clock    clockwork.Clock
	interval time.Duration
	beat     func(ctx context.Context) error
	log      zerolog.Logger
}

func NewHeartbeater(clock clockwork.Clock, interval time.Duration, beat func(ctx context.Context) error, log zerolog.Logger) *Heartbeater {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	return &Heartbeater{clock: clock, interval: interval, beat: beat, log: log}
}

func (h *Heartbeater) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := h.beat(ctx); err != nil && ctx.Err() == nil {
				h.log.Warn().Err(err).Msg("presence heartbeat")
			}
		}
	}
}
