// Package client is the Go side of the signaling protocol: it dials
// the server, authenticates, and keeps candidate/description ordering
// straight for one call at a time (the server enforces one call per
// user anyway).
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	pionwebrtc "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/wecall/signaling/internal/domain"
)

// PeerConnection is the negotiation context buffered candidates apply
// to. *webrtc.PeerConnection satisfies it.
type PeerConnection interface {
	SetRemoteDescription(pionwebrtc.SessionDescription) error
	AddICECandidate(pionwebrtc.ICECandidateInit) error
}

var ErrAuthFailed = errors.New("authentication failed")

// Event is a decoded server frame handed to the application after the
// client's own bookkeeping ran.
type Event struct {
	Type string
	Data []byte
}

type Client struct {
	conn *websocket.Conn
	buf  *CandidateBuffer

	mu     sync.Mutex
	wmu    sync.Mutex
	pc     PeerConnection
	callID domain.CallID
	userID domain.UserID

	authRes chan error
	events  chan Event
	done    chan struct{}
}

// Dial connects to the server's websocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling server: %w", err)
	}
	c := &Client{
		conn:    conn,
		buf:     NewCandidateBuffer(),
		authRes: make(chan error, 1),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Events delivers every server frame after internal handling; the
// channel closes when the connection dies.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) UserID() domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Auth presents the bearer credential and waits for the verdict.
func (c *Client) Auth(ctx context.Context, token string) error {
	if err := c.send(map[string]any{"type": "auth", "token": token}); err != nil {
		return err
	}
	select {
	case err := <-c.authRes:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errors.New("connection closed")
	}
}

// BindPeer attaches the negotiation context for a call. For the caller
// this happens before the call id is known; pass the id later via
// BindCall once call:answer reveals it.
func (c *Client) BindPeer(pc PeerConnection) {
	c.mu.Lock()
	c.pc = pc
	c.mu.Unlock()
}

// BindCall associates the current peer with a call id (callee side,
// where the id arrives with call:incoming).
func (c *Client) BindCall(id domain.CallID) {
	c.mu.Lock()
	c.callID = id
	c.mu.Unlock()
}

// Initiate starts a call. The server assigns the call id; it reaches
// us with call:answer at the latest.
func (c *Client) Initiate(to domain.UserID, typ domain.CallType, offer any) error {
	return c.send(map[string]any{"type": "call:initiate", "toUserId": to, "callType": typ, "offer": offer})
}

func (c *Client) Answer(id domain.CallID, to domain.UserID, answer any) error {
	return c.send(map[string]any{"type": "call:answer", "callId": id, "toUserId": to, "answer": answer})
}

func (c *Client) SendCandidate(id domain.CallID, to domain.UserID, cand pionwebrtc.ICECandidateInit) error {
	return c.send(map[string]any{"type": "call:ice", "callId": id, "toUserId": to, "candidate": cand})
}

func (c *Client) Hangup(id domain.CallID) error {
	return c.send(map[string]any{"type": "call:hangup", "callId": id})
}

func (c *Client) Decline(id domain.CallID) error {
	return c.send(map[string]any{"type": "call:decline", "callId": id})
}

func (c *Client) CheckPresence(ids []domain.UserID) error {
	return c.send(map[string]any{"type": "presence:check", "userIds": ids})
}

// RemoteApplied reports that the remote description for id was applied
// locally (callee side, after ApplyOfferAndCreateAnswer) and flushes
// any queued candidates into the peer.
func (c *Client) RemoteApplied(id domain.CallID) {
	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()
	c.flush(id, pc)
}

func (c *Client) flush(id domain.CallID, pc PeerConnection) {
	if pc == nil {
		return
	}
	for _, cand := range c.buf.Drain(id) {
		if err := pc.AddICECandidate(cand); err != nil {
			log.Error().Err(err).Str("module", "client").Str("call", string(id)).Msg("apply queued candidate")
		}
	}
}

func (c *Client) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("bad frame")
			continue
		}
		c.handle(env.Type, data)
		select {
		case c.events <- Event{Type: env.Type, Data: data}:
		default:
			// slow consumer, drop rather than stall signaling
		}
	}
}

func (c *Client) handle(msgType string, data []byte) {
	switch msgType {
	case "auth:ok":
		var p struct {
			UserID domain.UserID `json:"userId"`
		}
		_ = json.Unmarshal(data, &p)
		c.mu.Lock()
		c.userID = p.UserID
		c.mu.Unlock()
		select {
		case c.authRes <- nil:
		default:
		}
	case "auth:error":
		select {
		case c.authRes <- ErrAuthFailed:
		default:
		}
	case "call:answer":
		var p struct {
			CallID domain.CallID                 `json:"callId"`
			Answer pionwebrtc.SessionDescription `json:"answer"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.mu.Lock()
		c.callID = p.CallID // caller learns the id here
		pc := c.pc
		c.mu.Unlock()
		if pc == nil {
			return
		}
		if err := pc.SetRemoteDescription(p.Answer); err != nil {
			log.Error().Err(err).Str("module", "client").Str("call", string(p.CallID)).Msg("set remote description")
			return
		}
		c.flush(p.CallID, pc)
	case "call:ice":
		var p struct {
			CallID    domain.CallID               `json:"callId"`
			Candidate pionwebrtc.ICECandidateInit `json:"candidate"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.mu.Lock()
		pc := c.pc
		c.mu.Unlock()
		if pc == nil {
			c.buf.Enqueue(p.CallID, p.Candidate)
			return
		}
		if c.buf.Enqueue(p.CallID, p.Candidate) {
			return // remote description not in yet
		}
		if err := pc.AddICECandidate(p.Candidate); err != nil {
			log.Error().Err(err).Str("module", "client").Str("call", string(p.CallID)).Msg("add candidate")
		}
	case "call:hangup", "call:declined", "call:unavailable":
		var p struct {
			CallID domain.CallID `json:"callId"`
		}
		_ = json.Unmarshal(data, &p)
		c.buf.Clear(p.CallID)
		c.mu.Lock()
		if c.callID == p.CallID {
			c.callID = ""
			c.pc = nil
		}
		c.mu.Unlock()
	}
}
