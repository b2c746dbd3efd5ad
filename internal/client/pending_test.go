package client

import (
	"fmt"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestCandidateBufferDrainFIFO(t *testing.T) {
	b := NewCandidateBuffer()
	for i := 0; i < 5; i++ {
		require.True(t, b.Enqueue("call-1", webrtc.ICECandidateInit{Candidate: fmt.Sprintf("c%d", i)}))
	}

	drained := b.Drain("call-1")
	require.Len(t, drained, 5)
	for i, cand := range drained {
		require.Equal(t, fmt.Sprintf("c%d", i), cand.Candidate, "candidates must keep arrival order")
	}
}

func TestCandidateBufferDrainExactlyOnce(t *testing.T) {
	b := NewCandidateBuffer()
	b.Enqueue("call-1", webrtc.ICECandidateInit{Candidate: "c0"})

	require.Len(t, b.Drain("call-1"), 1)
	require.Nil(t, b.Drain("call-1"), "second drain returns nothing")
}

func TestCandidateBufferEnqueueAfterDrain(t *testing.T) {
	b := NewCandidateBuffer()
	b.Drain("call-1")
	require.False(t, b.Enqueue("call-1", webrtc.ICECandidateInit{Candidate: "late"}),
		"after the remote description is applied, candidates go straight to the peer")
}

func TestCandidateBufferPerCallIsolation(t *testing.T) {
	b := NewCandidateBuffer()
	b.Enqueue("call-1", webrtc.ICECandidateInit{Candidate: "a"})
	b.Enqueue("call-2", webrtc.ICECandidateInit{Candidate: "b"})

	require.Len(t, b.Drain("call-1"), 1)
	require.Len(t, b.Drain("call-2"), 1)
}

func TestCandidateBufferClear(t *testing.T) {
	b := NewCandidateBuffer()
	b.Enqueue("call-1", webrtc.ICECandidateInit{Candidate: "a"})
	b.Clear("call-1")
	require.Empty(t, b.Drain("call-1"), "cleared call has nothing to drain")

	// Clear also resets the applied flag so call ids can be reused.
	b.Drain("call-2")
	b.Clear("call-2")
	require.True(t, b.Enqueue("call-2", webrtc.ICECandidateInit{Candidate: "x"}))
}
