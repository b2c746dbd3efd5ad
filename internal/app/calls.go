package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wecall/signaling/internal/core"
	"github.com/wecall/signaling/internal/domain"
	"github.com/wecall/signaling/internal/store"
)

type callEntry struct {
	domain.CallSession
	ringTimer *time.Timer
}

// CallManager owns the active call sessions and the single-call-per-user
// invariant. All transitions go through one mutex; contention is low
// (one session per user pair). Durable record writes happen after the
// in-memory transition is committed, outside the critical section, and
// never roll it back.
type CallManager struct {
	mu       sync.Mutex
	sessions map[domain.CallID]*callEntry
	byUser   map[domain.UserID]domain.CallID

	Presence *Presence
	Logs     store.CallLogs
	Fanout   *Fanout

	// RingTimeout bounds RINGING; zero leaves a never-answered call
	// ringing until a party disconnects.
	RingTimeout time.Duration
}

func NewCallManager(p *Presence, logs store.CallLogs, fanout *Fanout, ringTimeout time.Duration) *CallManager {
	return &CallManager{
		sessions:    make(map[domain.CallID]*callEntry),
		byUser:      make(map[domain.UserID]domain.CallID),
		Presence:    p,
		Logs:        logs,
		Fanout:      fanout,
		RingTimeout: ringTimeout,
	}
}

// ActiveCall reports the non-terminal session user participates in.
func (m *CallManager) ActiveCall(user domain.UserID) (domain.CallID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUser[user]
	return id, ok
}

// Initiate starts a call attempt. The busy check covers both roles for
// both parties and is a fast local check: a busy party means no session
// and no record get created. An offline callee yields a missed record
// and ErrUnavailable; no ringing occurs.
func (m *CallManager) Initiate(ctx context.Context, caller, callee domain.UserID, typ domain.CallType, offer json.RawMessage) (domain.CallID, error) {
	if caller == callee {
		return "", domain.ErrSelfCall
	}

	m.mu.Lock()
	if _, busy := m.byUser[caller]; busy {
		m.mu.Unlock()
		return "", domain.ErrBusy
	}
	if _, busy := m.byUser[callee]; busy {
		m.mu.Unlock()
		return "", domain.ErrBusy
	}

	id := domain.CallID(uuid.NewString())
	now := time.Now()

	if !m.Presence.IsOnline(callee) {
		m.mu.Unlock()
		log.Info().Str("module", "app.calls").Str("call", string(id)).Str("callee", string(callee)).Msg("callee offline, missed")
		m.createLog(ctx, &domain.CallLog{
			CallID: id, Caller: caller, Callee: callee,
			Type: typ, Status: domain.StatusMissed, StartedAt: now,
		})
		m.notifyMissed(ctx, caller, callee, id)
		return id, domain.ErrUnavailable
	}

	e := &callEntry{CallSession: domain.CallSession{
		ID: id, Caller: caller, Callee: callee,
		Type: typ, State: domain.StateRinging, StartedAt: now,
	}}
	m.sessions[id] = e
	m.byUser[caller] = id
	m.byUser[callee] = id
	if m.RingTimeout > 0 {
		e.ringTimer = time.AfterFunc(m.RingTimeout, func() { m.onRingTimeout(id) })
	}
	m.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(id)).Str("caller", string(caller)).Str("callee", string(callee)).Str("type", string(typ)).Msg("ringing")
	m.createLog(ctx, &domain.CallLog{
		CallID: id, Caller: caller, Callee: callee,
		Type: typ, Status: domain.StatusOngoing, StartedAt: now,
	})
	m.sendTo(callee, struct {
		Type       string          `json:"type"`
		CallID     domain.CallID   `json:"callId"`
		FromUserID domain.UserID   `json:"fromUserId"`
		CallType   domain.CallType `json:"callType"`
		Offer      json.RawMessage `json:"offer"`
	}{"call:incoming", id, caller, typ, offer})
	return id, nil
}

// Answer moves a ringing call to active and relays the answer payload
// to the caller's connections. The answer message carries the call id:
// the caller may not have learned it yet, since the manager assigned it
// after initiation.
func (m *CallManager) Answer(callID domain.CallID, answerer domain.UserID, answer json.RawMessage) error {
	m.mu.Lock()
	e, ok := m.sessions[callID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrUnavailable
	}
	if answerer != e.Callee {
		m.mu.Unlock()
		return domain.ErrForbidden
	}
	if e.State != domain.StateRinging && e.State != domain.StateInitiated {
		m.mu.Unlock()
		return domain.ErrUnavailable
	}
	e.State = domain.StateActive
	if e.ringTimer != nil {
		e.ringTimer.Stop()
	}
	caller := e.Caller
	m.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Msg("answered")
	m.sendTo(caller, struct {
		Type       string          `json:"type"`
		CallID     domain.CallID   `json:"callId"`
		Answer     json.RawMessage `json:"answer"`
		FromUserID domain.UserID   `json:"fromUserId"`
	}{"call:answer", callID, answer, answerer})
	return nil
}

// RelayCandidate forwards an opaque candidate to the other party.
// Candidates racing a hangup are expected; a missing or terminal call
// drops the candidate silently.
func (m *CallManager) RelayCandidate(callID domain.CallID, from domain.UserID, candidate json.RawMessage) {
	m.mu.Lock()
	var to domain.UserID
	ok := false
	if e, live := m.sessions[callID]; live && !e.State.Terminal() {
		to, ok = e.Other(from)
	}
	m.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "app.calls").Str("call", string(callID)).Msg("candidate for gone call dropped")
		return
	}
	m.sendTo(to, struct {
		Type       string          `json:"type"`
		CallID     domain.CallID   `json:"callId"`
		Candidate  json.RawMessage `json:"candidate"`
		FromUserID domain.UserID   `json:"fromUserId"`
	}{"call:ice", callID, candidate, from})
}

// Hangup ends a call from any non-terminal state. Idempotent: hanging
// up an absent call is a no-op.
func (m *CallManager) Hangup(ctx context.Context, callID domain.CallID, from domain.UserID) error {
	return m.terminate(ctx, callID, from, domain.StateEnded)
}

// Decline rejects a call; the other party sees call:declined.
func (m *CallManager) Decline(ctx context.Context, callID domain.CallID, from domain.UserID) error {
	return m.terminate(ctx, callID, from, domain.StateDeclined)
}

func (m *CallManager) terminate(ctx context.Context, callID domain.CallID, from domain.UserID, final domain.CallState) error {
	m.mu.Lock()
	e, ok := m.sessions[callID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	other, isParty := e.Other(from)
	if !isParty {
		m.mu.Unlock()
		return domain.ErrForbidden
	}
	m.removeLocked(e)
	e.State = final
	m.mu.Unlock()

	status := domain.StatusEnded
	msgType := "call:hangup"
	if final == domain.StateDeclined {
		status = domain.StatusDeclined
		msgType = "call:declined"
	}
	log.Info().Str("module", "app.calls").Str("call", string(callID)).Str("from", string(from)).Str("state", string(final)).Msg("terminated")
	m.updateLog(ctx, callID, status)
	m.sendTo(other, struct {
		Type       string        `json:"type"`
		CallID     domain.CallID `json:"callId"`
		FromUserID domain.UserID `json:"fromUserId"`
	}{msgType, callID, from})
	return nil
}

// OnDisconnect synthesizes a hangup for every non-terminal session the
// user participates in. Called when the user's last connection closes;
// guarantees no session survives with zero live participants.
func (m *CallManager) OnDisconnect(ctx context.Context, user domain.UserID) {
	m.mu.Lock()
	var ended []*callEntry
	for _, e := range m.sessions {
		if e.Caller == user || e.Callee == user {
			ended = append(ended, e)
		}
	}
	for _, e := range ended {
		m.removeLocked(e)
		e.State = domain.StateEnded
	}
	m.mu.Unlock()

	for _, e := range ended {
		other, _ := e.Other(user)
		log.Info().Str("module", "app.calls").Str("call", string(e.ID)).Str("user", string(user)).Msg("ended by disconnect")
		m.updateLog(ctx, e.ID, domain.StatusEnded)
		m.sendTo(other, struct {
			Type       string        `json:"type"`
			CallID     domain.CallID `json:"callId"`
			FromUserID domain.UserID `json:"fromUserId"`
		}{"call:hangup", e.ID, user})
	}
}

func (m *CallManager) onRingTimeout(callID domain.CallID) {
	m.mu.Lock()
	e, ok := m.sessions[callID]
	if !ok || e.State != domain.StateRinging {
		m.mu.Unlock()
		return
	}
	m.removeLocked(e)
	e.State = domain.StateMissed
	m.mu.Unlock()

	ctx := context.Background()
	log.Info().Str("module", "app.calls").Str("call", string(callID)).Msg("ring timeout, missed")
	m.updateLog(ctx, callID, domain.StatusMissed)
	m.sendTo(e.Caller, struct {
		Type     string        `json:"type"`
		CallID   domain.CallID `json:"callId"`
		ToUserID domain.UserID `json:"toUserId"`
	}{"call:unavailable", callID, e.Callee})
	m.sendTo(e.Callee, struct {
		Type       string        `json:"type"`
		CallID     domain.CallID `json:"callId"`
		FromUserID domain.UserID `json:"fromUserId"`
	}{"call:hangup", callID, e.Caller})
	m.notifyMissed(ctx, e.Caller, e.Callee, callID)
}

// removeLocked drops a session from the active set. Callers hold m.mu.
func (m *CallManager) removeLocked(e *callEntry) {
	delete(m.sessions, e.ID)
	delete(m.byUser, e.Caller)
	delete(m.byUser, e.Callee)
	if e.ringTimer != nil {
		e.ringTimer.Stop()
	}
}

func (m *CallManager) createLog(ctx context.Context, rec *domain.CallLog) {
	if err := m.Logs.Create(ctx, rec); err != nil {
		log.Error().Err(err).Str("module", "app.calls").Str("call", string(rec.CallID)).Msg("create call log")
	}
}

func (m *CallManager) updateLog(ctx context.Context, id domain.CallID, status domain.CallStatus) {
	if err := m.Logs.UpdateByCallID(ctx, id, status, time.Now()); err != nil {
		log.Error().Err(err).Str("module", "app.calls").Str("call", string(id)).Msg("update call log")
	}
}

func (m *CallManager) notifyMissed(ctx context.Context, caller, callee domain.UserID, callID domain.CallID) {
	n := &domain.Notification{
		UserID:     callee,
		Type:       domain.NotifyMissedCall,
		FromUserID: caller,
		Message:    "Missed call",
		Data:       json.RawMessage(fmt.Sprintf(`{"callId":%q}`, string(callID))),
	}
	if err := m.Fanout.CreateAndDeliver(ctx, n); err != nil {
		log.Error().Err(err).Str("module", "app.calls").Str("call", string(callID)).Msg("missed call notification")
	}
}

func (m *CallManager) sendTo(user domain.UserID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.calls").Msg("marshal outbound")
		return
	}
	for _, c := range m.Presence.ConnectionsFor(user) {
		_ = c.TrySend(core.Frame(b))
	}
}
