package client

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/wecall/signaling/internal/domain"
)

// CandidateBuffer absorbs the legal reordering between session
// descriptions and network candidates: a candidate may arrive before
// the negotiation context exists or before the remote description has
// been applied. Candidates queue per call and drain in FIFO order
// exactly once, when the remote description lands.
type CandidateBuffer struct {
	mu      sync.Mutex
	pending map[domain.CallID][]webrtc.ICECandidateInit
	applied map[domain.CallID]bool
}

func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{
		pending: make(map[domain.CallID][]webrtc.ICECandidateInit),
		applied: make(map[domain.CallID]bool),
	}
}

// Enqueue queues a candidate unless the remote description for the
// call has already been applied; then the caller applies it directly.
func (b *CandidateBuffer) Enqueue(id domain.CallID, cand webrtc.ICECandidateInit) (queued bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.applied[id] {
		return false
	}
	b.pending[id] = append(b.pending[id], cand)
	return true
}

// Drain marks the call's remote description applied and hands back the
// queued candidates, oldest first. A second Drain returns nothing.
func (b *CandidateBuffer) Drain(id domain.CallID) []webrtc.ICECandidateInit {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.applied[id] {
		return nil
	}
	b.applied[id] = true
	queued := b.pending[id]
	delete(b.pending, id)
	return queued
}

// Clear drops all state for a call, drained or not. Called on every
// terminal transition so abandoned calls cannot grow the buffer.
func (b *CandidateBuffer) Clear(id domain.CallID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, id)
	delete(b.applied, id)
}
