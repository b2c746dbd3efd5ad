package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/wecall/signaling/internal/domain"
)

func (ctl *Controller) handleAuth(c *wsConn, data []byte) {
	var p struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad auth payload")
		ctl.sendJSON(c, map[string]any{"type": "auth:error", "message": "bad payload"})
		return
	}

	user, err := ctl.Verifier.Verify(p.Token)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("auth failed")
		ctl.sendJSON(c, map[string]any{"type": "auth:error", "message": "Invalid token"})
		return
	}

	c.setUser(user)
	first := ctl.Presence.Register(user, c.id)
	log.Info().Str("module", "signal").Str("conn", string(c.id)).Str("user", string(user)).Bool("first", first).Msg("authenticated")

	ctl.sendJSON(c, struct {
		Type   string        `json:"type"`
		UserID domain.UserID `json:"userId"`
	}{"auth:ok", user})

	if first {
		ctl.broadcastJSON(struct {
			Type   string        `json:"type"`
			UserID domain.UserID `json:"userId"`
		}{"user:online", user})
	}
}

// requireUser gates call-related messages behind authentication. The
// attempted action dies; the connection stays open.
func (ctl *Controller) requireUser(c *wsConn) (domain.UserID, bool) {
	user := c.User()
	if user == "" {
		ctl.sendError(c, "unauthenticated", domain.ErrUnauthenticated.Error())
		return "", false
	}
	return user, true
}

func (ctl *Controller) sendError(c *wsConn, code, message string) {
	ctl.sendJSON(c, struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}{"call:error", code, message})
}
