package signal_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	router "github.com/wecall/signaling/internal/adapters/http"
	"github.com/wecall/signaling/internal/adapters/signal"
	"github.com/wecall/signaling/internal/app"
	"github.com/wecall/signaling/internal/auth"
	"github.com/wecall/signaling/internal/client"
	"github.com/wecall/signaling/internal/config"
	"github.com/wecall/signaling/internal/domain"
	"github.com/wecall/signaling/internal/store"
)

type testServer struct {
	url  string
	jwt  *auth.JWT
	logs *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Mode:           "release",
		ReadLimit:      32768,
		PingPeriod:     50 * time.Second,
		CallRateLimit:  100,
		CallRateWindow: time.Minute,
	}
	presence := app.NewPresence()
	logs := store.NewMemory()
	notes := store.NewNotesMemory()
	calls := app.NewCallManager(presence, logs, app.NewFanout(presence, notes), 0)
	jwt := auth.NewJWT("test-secret")
	limiter := signal.NewRateLimiter(cfg.CallRateLimit, cfg.CallRateWindow)
	ctl := signal.NewController(presence, calls, jwt, limiter, cfg.ReadLimit, cfg.PingPeriod)

	srv := httptest.NewServer(router.SetupRouter(context.Background(), cfg, ctl, logs))
	t.Cleanup(srv.Close)

	return &testServer{
		url:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws",
		jwt:  jwt,
		logs: logs,
	}
}

func (ts *testServer) dial(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.Dial(context.Background(), ts.url)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func (ts *testServer) dialAndAuth(t *testing.T, user domain.UserID) *client.Client {
	t.Helper()
	c := ts.dial(t)
	token, err := ts.jwt.Sign(user, time.Hour)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Auth(ctx, token))
	return c
}

// waitFor discards events until one of the wanted type arrives.
func waitFor(t *testing.T, c *client.Client, msgType string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatalf("connection closed while waiting for %s", msgType)
			}
			if ev.Type != msgType {
				continue
			}
			var m map[string]any
			require.NoError(t, json.Unmarshal(ev.Data, &m))
			return m
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

// waitForUser is waitFor narrowed to a broadcast about one user, since
// a client also sees its own online announcement.
func waitForUser(t *testing.T, c *client.Client, msgType, user string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := waitFor(t, c, msgType)
		if m["userId"] == user {
			return m
		}
	}
	t.Fatalf("timed out waiting for %s about %s", msgType, user)
	return nil
}

func pionCandidate(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func TestWSAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	c := ts.dial(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.ErrorIs(t, c.Auth(ctx, "bogus"), client.ErrAuthFailed)

	// The failed attempt does not kill the connection.
	token, err := ts.jwt.Sign("alice", time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Auth(ctx, token))
	require.Equal(t, domain.UserID("alice"), c.UserID())
}

func TestWSPresenceBroadcastAndCheck(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dialAndAuth(t, "alice")

	bob := ts.dialAndAuth(t, "bob")
	waitForUser(t, alice, "user:online", "bob")

	require.NoError(t, alice.CheckPresence([]domain.UserID{"bob", "ghost"}))
	status := waitFor(t, alice, "presence:status")
	presence := status["presence"].(map[string]any)
	require.Equal(t, true, presence["bob"])
	require.Equal(t, false, presence["ghost"])

	bob.Close()
	waitForUser(t, alice, "user:offline", "bob")
}

func TestWSUnauthenticatedCallRejected(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)

	require.NoError(t, c.Initiate("bob", domain.CallAudio, map[string]any{"sdp": "x"}))
	errMsg := waitFor(t, c, "call:error")
	require.Equal(t, "unauthenticated", errMsg["code"])
}

func TestWSCallToOfflineUser(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dialAndAuth(t, "alice")

	require.NoError(t, alice.Initiate("ghost", domain.CallAudio, map[string]any{"sdp": "x"}))
	unavailable := waitFor(t, alice, "call:unavailable")
	callID := domain.CallID(unavailable["callId"].(string))

	rec, err := ts.logs.GetByCallID(context.Background(), callID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusMissed, rec.Status)
}

func TestWSCallLifecycle(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dialAndAuth(t, "alice")
	bob := ts.dialAndAuth(t, "bob")

	require.NoError(t, alice.Initiate("bob", domain.CallVideo, map[string]any{"type": "offer", "sdp": "v=0"}))

	incoming := waitFor(t, bob, "call:incoming")
	require.Equal(t, "alice", incoming["fromUserId"])
	require.Equal(t, "video", incoming["callType"])
	callID := domain.CallID(incoming["callId"].(string))

	require.NoError(t, bob.Answer(callID, "alice", map[string]any{"type": "answer", "sdp": "v=0"}))
	answer := waitFor(t, alice, "call:answer")
	require.Equal(t, string(callID), answer["callId"])
	require.Equal(t, "bob", answer["fromUserId"])

	require.NoError(t, alice.SendCandidate(callID, "bob", pionCandidate("cand-a")))
	ice := waitFor(t, bob, "call:ice")
	require.Equal(t, "alice", ice["fromUserId"])

	require.NoError(t, alice.Hangup(callID))
	hangup := waitFor(t, bob, "call:hangup")
	require.Equal(t, "alice", hangup["fromUserId"])

	rec, err := ts.logs.GetByCallID(context.Background(), callID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusEnded, rec.Status)
	require.NotNil(t, rec.EndedAt)
}

func TestWSBusySecondCaller(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dialAndAuth(t, "alice")
	bob := ts.dialAndAuth(t, "bob")
	carol := ts.dialAndAuth(t, "carol")

	require.NoError(t, alice.Initiate("bob", domain.CallAudio, map[string]any{"sdp": "x"}))
	waitFor(t, bob, "call:incoming")

	require.NoError(t, carol.Initiate("bob", domain.CallAudio, map[string]any{"sdp": "x"}))
	busy := waitFor(t, carol, "call:busy")
	require.Equal(t, "bob", busy["toUserId"])
}

func TestWSDisconnectEndsCall(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dialAndAuth(t, "alice")
	bob := ts.dialAndAuth(t, "bob")

	require.NoError(t, alice.Initiate("bob", domain.CallAudio, map[string]any{"sdp": "x"}))
	incoming := waitFor(t, bob, "call:incoming")
	callID := domain.CallID(incoming["callId"].(string))
	require.NoError(t, bob.Answer(callID, "alice", map[string]any{"sdp": "x"}))
	waitFor(t, alice, "call:answer")

	alice.Close()

	hangup := waitFor(t, bob, "call:hangup")
	require.Equal(t, string(callID), hangup["callId"])
	require.Equal(t, "alice", hangup["fromUserId"])
}
