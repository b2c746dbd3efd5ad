package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/wecall/signaling/internal/domain"
)

func (ctl *Controller) handleInitiate(ctx context.Context, c *wsConn, data []byte) {
	user, ok := ctl.requireUser(c)
	if !ok {
		return
	}

	var p struct {
		Type     string          `json:"type"`
		ToUserID domain.UserID   `json:"toUserId"`
		CallType domain.CallType `json:"callType"`
		Offer    json.RawMessage `json:"offer"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ToUserID == "" || !p.CallType.Valid() {
		log.Error().Str("module", "signal").Msg("bad initiate payload")
		ctl.sendError(c, "bad_payload", "missing or invalid fields")
		return
	}

	if ctl.Limiter != nil && !ctl.Limiter.Allow(user) {
		ctl.sendError(c, "rate_limited", "too many call attempts")
		return
	}

	callID, err := ctl.Calls.Initiate(ctx, user, p.ToUserID, p.CallType, p.Offer)
	switch {
	case errors.Is(err, domain.ErrSelfCall):
		ctl.sendError(c, "self_call", err.Error())
	case errors.Is(err, domain.ErrBusy):
		ctl.sendJSON(c, struct {
			Type     string        `json:"type"`
			ToUserID domain.UserID `json:"toUserId"`
		}{"call:busy", p.ToUserID})
	case errors.Is(err, domain.ErrUnavailable):
		ctl.sendJSON(c, struct {
			Type     string        `json:"type"`
			CallID   domain.CallID `json:"callId"`
			ToUserID domain.UserID `json:"toUserId"`
		}{"call:unavailable", callID, p.ToUserID})
	case err != nil:
		ctl.sendError(c, "internal", "call failed")
	}
	// The happy path answers nothing here: the caller learns the call id
	// when the callee answers.
}

func (ctl *Controller) handleAnswer(c *wsConn, data []byte) {
	user, ok := ctl.requireUser(c)
	if !ok {
		return
	}

	var p struct {
		Type     string          `json:"type"`
		CallID   domain.CallID   `json:"callId"`
		ToUserID domain.UserID   `json:"toUserId"`
		Answer   json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.sendError(c, "bad_payload", "missing or invalid fields")
		return
	}

	err := ctl.Calls.Answer(p.CallID, user, p.Answer)
	switch {
	case errors.Is(err, domain.ErrForbidden):
		ctl.sendError(c, "forbidden", err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		ctl.sendJSON(c, struct {
			Type     string        `json:"type"`
			CallID   domain.CallID `json:"callId"`
			ToUserID domain.UserID `json:"toUserId"`
		}{"call:unavailable", p.CallID, p.ToUserID})
	}
}

func (ctl *Controller) handleCandidate(c *wsConn, data []byte) {
	user, ok := ctl.requireUser(c)
	if !ok {
		return
	}

	var p struct {
		Type      string          `json:"type"`
		CallID    domain.CallID   `json:"callId"`
		ToUserID  domain.UserID   `json:"toUserId"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		return // best-effort, no error path
	}
	ctl.Calls.RelayCandidate(p.CallID, user, p.Candidate)
}

func (ctl *Controller) handleHangup(ctx context.Context, c *wsConn, data []byte) {
	user, ok := ctl.requireUser(c)
	if !ok {
		return
	}
	var p struct {
		Type   string        `json:"type"`
		CallID domain.CallID `json:"callId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.sendError(c, "bad_payload", "missing call id")
		return
	}
	if err := ctl.Calls.Hangup(ctx, p.CallID, user); errors.Is(err, domain.ErrForbidden) {
		ctl.sendError(c, "forbidden", err.Error())
	}
}

func (ctl *Controller) handleDecline(ctx context.Context, c *wsConn, data []byte) {
	user, ok := ctl.requireUser(c)
	if !ok {
		return
	}
	var p struct {
		Type   string        `json:"type"`
		CallID domain.CallID `json:"callId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.sendError(c, "bad_payload", "missing call id")
		return
	}
	if err := ctl.Calls.Decline(ctx, p.CallID, user); errors.Is(err, domain.ErrForbidden) {
		ctl.sendError(c, "forbidden", err.Error())
	}
}
