package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/wecall/signaling/internal/domain"
)

func (ctl *Controller) handlePresenceCheck(c *wsConn, data []byte) {
	var p struct {
		Type    string          `json:"type"`
		UserIDs []domain.UserID `json:"userIds"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad presence payload")
		return
	}

	presence := make(map[domain.UserID]bool, len(p.UserIDs))
	for _, uid := range p.UserIDs {
		presence[uid] = ctl.Presence.IsOnline(uid)
	}
	ctl.sendJSON(c, struct {
		Type     string                 `json:"type"`
		Presence map[domain.UserID]bool `json:"presence"`
	}{"presence:status", presence})
}
