package app

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wecall/signaling/internal/core"
	"github.com/wecall/signaling/internal/domain"
	"github.com/wecall/signaling/internal/store"
)

// fakeConn records every frame pushed at it.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

// decoded returns every received frame as a generic map.
func (f *fakeConn) decoded(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(fr, &m))
		out = append(out, m)
	}
	return out
}

// ofType filters received frames by message type.
func (f *fakeConn) ofType(t *testing.T, msgType string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range f.decoded(t) {
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

type env struct {
	presence *Presence
	calls    *CallManager
	logs     *store.Memory
	notes    *store.NotesMemory
}

func newEnv(t *testing.T) *env {
	t.Helper()
	p := NewPresence()
	logs := store.NewMemory()
	notes := store.NewNotesMemory()
	fanout := NewFanout(p, notes)
	return &env{
		presence: p,
		calls:    NewCallManager(p, logs, fanout, 0),
		logs:     logs,
		notes:    notes,
	}
}

// connect wires a fake connection for user and authenticates it.
func (e *env) connect(user domain.UserID, conn domain.ConnID) *fakeConn {
	c := &fakeConn{}
	e.presence.Track(conn, c)
	e.presence.Register(user, conn)
	return c
}
