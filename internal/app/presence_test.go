package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wecall/signaling/internal/domain"
)

func TestPresenceFirstAndLastConnection(t *testing.T) {
	p := NewPresence()
	a, b := &fakeConn{}, &fakeConn{}

	p.Track("c1", a)
	require.True(t, p.Register("alice", "c1"), "first connection must report first=true")
	require.True(t, p.IsOnline("alice"))

	p.Track("c2", b)
	require.False(t, p.Register("alice", "c2"), "second connection is not first")
	require.Len(t, p.ConnectionsFor("alice"), 2)

	user, last := p.Unregister("c1")
	require.Equal(t, domain.UserID("alice"), user)
	require.False(t, last, "one connection remains")
	require.True(t, p.IsOnline("alice"))

	user, last = p.Unregister("c2")
	require.Equal(t, domain.UserID("alice"), user)
	require.True(t, last)
	require.False(t, p.IsOnline("alice"))
	require.Empty(t, p.ConnectionsFor("alice"))
}

func TestPresenceRegisterIdempotentPerConnection(t *testing.T) {
	p := NewPresence()
	p.Track("c1", &fakeConn{})

	require.True(t, p.Register("alice", "c1"))
	require.False(t, p.Register("alice", "c1"), "re-register of same connection is a no-op")
	require.Len(t, p.ConnectionsFor("alice"), 1)
}

func TestPresenceRegisterUnknownConnection(t *testing.T) {
	p := NewPresence()
	require.False(t, p.Register("alice", "ghost"))
	require.False(t, p.IsOnline("alice"))
}

func TestPresenceUnregisterUnauthenticated(t *testing.T) {
	p := NewPresence()
	p.Track("c1", &fakeConn{})

	user, last := p.Unregister("c1")
	require.Empty(t, user)
	require.False(t, last)
}

func TestPresenceUnregisterUnknown(t *testing.T) {
	p := NewPresence()
	user, last := p.Unregister("ghost")
	require.Empty(t, user)
	require.False(t, last)
}

func TestPresenceBroadcastReachesAllConnections(t *testing.T) {
	p := NewPresence()
	authed, anon := &fakeConn{}, &fakeConn{}
	p.Track("c1", authed)
	p.Register("alice", "c1")
	p.Track("c2", anon) // never authenticates

	p.Broadcast([]byte(`{"type":"user:online","userId":"alice"}`))

	require.Len(t, authed.decoded(t), 1)
	require.Len(t, anon.decoded(t), 1, "broadcast must reach unauthenticated connections too")
}

func TestPresenceUserOf(t *testing.T) {
	p := NewPresence()
	p.Track("c1", &fakeConn{})

	_, ok := p.UserOf("c1")
	require.False(t, ok, "unauthenticated connection has no user")

	p.Register("bob", "c1")
	user, ok := p.UserOf("c1")
	require.True(t, ok)
	require.Equal(t, domain.UserID("bob"), user)
}
