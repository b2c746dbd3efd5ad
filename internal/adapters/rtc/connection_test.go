package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

// No STUN: negotiation only, no connectivity needed.
func newPair(t *testing.T) (*PeerConnection, *PeerConnection) {
	t.Helper()
	caller, err := New(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(caller.Close)
	callee, err := New(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(callee.Close)
	return caller, callee
}

func TestOfferAnswerHandshake(t *testing.T) {
	caller, callee := newPair(t)

	_, err := caller.CreateDataChannel("signaling")
	require.NoError(t, err)

	offer, err := caller.CreateOffer()
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	require.NotEmpty(t, offer.SDP)

	answer, err := callee.ApplyOfferAndCreateAnswer(*offer)
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeAnswer, answer.Type)

	require.NoError(t, caller.SetRemoteDescription(*answer))
	require.NotNil(t, caller.LocalDescription())
	require.NotNil(t, callee.LocalDescription())
}

func TestApplyOfferRejectsGarbage(t *testing.T) {
	_, callee := newPair(t)

	_, err := callee.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  "not an sdp",
	})
	require.Error(t, err)
}

func TestDefaultConfigHasSTUN(t *testing.T) {
	cfg := DefaultConfig()
	require.NotEmpty(t, cfg.ICEServers)
	require.Contains(t, cfg.ICEServers[0].URLs[0], "stun:")
}
