package app

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/wecall/signaling/internal/core"
	"github.com/wecall/signaling/internal/domain"
	"github.com/wecall/signaling/internal/store"
)

// Fanout delivers asynchronous, non-call events to all of a user's live
// connections. Events are stored before any delivery attempt, so a
// delivery racing a disconnect loses nothing.
type Fanout struct {
	Presence *Presence
	Notes    store.Notifications
}

func NewFanout(p *Presence, notes store.Notifications) *Fanout {
	return &Fanout{Presence: p, Notes: notes}
}

// Deliver sends v to every live connection of user and reports whether
// anything was delivered. Callers must have stored the event durably
// first; store-then-notify, never the reverse.
func (f *Fanout) Deliver(user domain.UserID, v any) bool {
	conns := f.Presence.ConnectionsFor(user)
	if len(conns) == 0 {
		log.Debug().Str("module", "app.fanout").Str("user", string(user)).Msg("user offline, stored only")
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Msg("marshal payload")
		return false
	}
	for _, c := range conns {
		_ = c.TrySend(core.Frame(b))
	}
	log.Info().Str("module", "app.fanout").Str("user", string(user)).Int("conns", len(conns)).Msg("delivered")
	return true
}

// CreateAndDeliver stores the notification, then pushes it to the
// user's live connections if any.
func (f *Fanout) CreateAndDeliver(ctx context.Context, n *domain.Notification) error {
	if err := f.Notes.Create(ctx, n); err != nil {
		return err
	}
	f.Deliver(n.UserID, struct {
		Type         string               `json:"type"`
		Notification *domain.Notification `json:"notification"`
	}{
		Type:         "notification:new",
		Notification: n,
	})
	return nil
}
