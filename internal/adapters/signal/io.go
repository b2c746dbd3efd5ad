package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump closing")
		c.Close()
		ctl.onClosed(ctx, c)
	}()

	pongWait := ctl.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleSignal(ctx, c, data)
		}
	}
}

// onClosed tears down presence for the connection. The last connection
// of a user ends their calls and announces them offline; intermediate
// connections produce no broadcast.
func (ctl *Controller) onClosed(ctx context.Context, c *wsConn) {
	user, last := ctl.Presence.Unregister(c.id)
	if user == "" || !last {
		return
	}
	ctl.Calls.OnDisconnect(ctx, user)
	ctl.broadcastJSON(struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	}{"user:offline", string(user)})
}

func (ctl *Controller) handleSignal(ctx context.Context, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "auth":
		ctl.handleAuth(c, data)
	case "call:initiate":
		ctl.handleInitiate(ctx, c, data)
	case "call:answer":
		ctl.handleAnswer(c, data)
	case "call:ice":
		ctl.handleCandidate(c, data)
	case "call:hangup":
		ctl.handleHangup(ctx, c, data)
	case "call:decline":
		ctl.handleDecline(ctx, c, data)
	case "presence:check":
		ctl.handlePresenceCheck(c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}
