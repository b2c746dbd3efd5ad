package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/wecall/signaling/internal/app"
	"github.com/wecall/signaling/internal/auth"
	"github.com/wecall/signaling/internal/core"
	"github.com/wecall/signaling/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller is the stateless routing shim between the socket and the
// call manager: it authenticates senders, decodes envelopes and lets
// the app layer resolve destinations.
type Controller struct {
	Presence *app.Presence
	Calls    *app.CallManager
	Verifier auth.Verifier
	Limiter  *RateLimiter

	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(p *app.Presence, calls *app.CallManager, verifier auth.Verifier, limiter *RateLimiter, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		Presence:   p,
		Calls:      calls,
		Verifier:   verifier,
		Limiter:    limiter,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
	}
}

type wsConn struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
	user   domain.UserID
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsConn) setUser(u domain.UserID) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

func (c *wsConn) User() domain.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the connection until the
// transport closes. The connection stays inert for call traffic until
// an auth frame succeeds.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		id:   domain.ConnID(uuid.NewString()),
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Msg("new WS connection")

	ctl.Presence.Track(conn.id, conn)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn)
}

func (ctl *Controller) broadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	ctl.Presence.Broadcast(b)
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
