package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wecall/signaling/internal/core"
	"github.com/wecall/signaling/internal/domain"
)

type connEntry struct {
	user domain.UserID // empty until authenticated
	conn core.SignalConnection
}

// Presence tracks which live connections belong to which user. A user
// is online iff it owns at least one connection. Nothing here is
// persisted; state is rebuilt from nothing on restart.
type Presence struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*connEntry
	users map[domain.UserID]map[domain.ConnID]struct{}
}

func NewPresence() *Presence {
	return &Presence{
		conns: make(map[domain.ConnID]*connEntry),
		users: make(map[domain.UserID]map[domain.ConnID]struct{}),
	}
}

// Track registers a freshly accepted connection before it has
// authenticated. Broadcast reaches it; per-user lookups do not.
func (p *Presence) Track(id domain.ConnID, conn core.SignalConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns[id] = &connEntry{conn: conn}
}

// Register binds a connection to its authenticated user. Idempotent per
// connection id. Reports whether this was the user's first connection,
// so the caller emits exactly one user:online broadcast.
func (p *Presence) Register(user domain.UserID, id domain.ConnID) (first bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.conns[id]
	if !ok {
		return false
	}
	if e.user == user {
		return false
	}
	if e.user != "" {
		// Re-auth as a different user moves the connection over.
		if old := p.users[e.user]; old != nil {
			delete(old, id)
			if len(old) == 0 {
				delete(p.users, e.user)
			}
		}
	}
	e.user = user
	set, ok := p.users[user]
	if !ok {
		set = make(map[domain.ConnID]struct{})
		p.users[user] = set
	}
	set[id] = struct{}{}
	log.Info().Str("module", "app.presence").Str("user", string(user)).Str("conn", string(id)).Int("conns", len(set)).Msg("registered connection")
	return len(set) == 1
}

// Unregister drops a connection entirely. Reports the owning user (if
// any) and whether this was its last connection, so the caller emits
// exactly one user:offline broadcast and synthesizes hangups.
func (p *Presence) Unregister(id domain.ConnID) (user domain.UserID, last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.conns[id]
	if !ok {
		return "", false
	}
	delete(p.conns, id)
	if e.user == "" {
		return "", false
	}
	set := p.users[e.user]
	delete(set, id)
	if len(set) == 0 {
		delete(p.users, e.user)
		last = true
	}
	log.Info().Str("module", "app.presence").Str("user", string(e.user)).Str("conn", string(id)).Bool("last", last).Msg("unregistered connection")
	return e.user, last
}

// ConnectionsFor returns the user's live connections; empty if offline.
func (p *Presence) ConnectionsFor(user domain.UserID) []core.SignalConnection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := p.users[user]
	out := make([]core.SignalConnection, 0, len(set))
	for id := range set {
		if e, ok := p.conns[id]; ok {
			out = append(out, e.conn)
		}
	}
	return out
}

func (p *Presence) IsOnline(user domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.users[user]) > 0
}

// UserOf resolves the authenticated owner of a connection.
func (p *Presence) UserOf(id domain.ConnID) (domain.UserID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.conns[id]; ok && e.user != "" {
		return e.user, true
	}
	return "", false
}

// Broadcast sends a frame to every live connection, authenticated or
// not. Used for the user:online / user:offline announcements.
func (p *Presence) Broadcast(f core.Frame) {
	p.mu.RLock()
	conns := make([]core.SignalConnection, 0, len(p.conns))
	for _, e := range p.conns {
		conns = append(conns, e.conn)
	}
	p.mu.RUnlock()
	for _, c := range conns {
		_ = c.TrySend(f)
	}
}
