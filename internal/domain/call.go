package domain

import "time"

type (
	CallID   string
	CallType string
	// CallState is the in-memory lifecycle state of a call session.
	CallState string
	// CallStatus is what the durable call record carries. It is coarser
	// than CallState: both INITIATED and RINGING map to "ongoing".
	CallStatus string
)

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

const (
	StateInitiated CallState = "initiated"
	StateRinging   CallState = "ringing"
	StateActive    CallState = "active"
	StateEnded     CallState = "ended"
	StateDeclined  CallState = "declined"
	StateMissed    CallState = "missed"
)

const (
	StatusOngoing  CallStatus = "ongoing"
	StatusEnded    CallStatus = "ended"
	StatusMissed   CallStatus = "missed"
	StatusDeclined CallStatus = "declined"
)

// Terminal reports whether the state admits no further transitions.
func (s CallState) Terminal() bool {
	return s == StateEnded || s == StateDeclined || s == StateMissed
}

func (t CallType) Valid() bool {
	return t == CallAudio || t == CallVideo
}

// CallSession is one in-flight call attempt or active call. It lives
// only in memory and is owned by the call manager; the durable CallLog
// mirrors it for history but is never authoritative for live state.
type CallSession struct {
	ID        CallID
	Caller    UserID
	Callee    UserID
	Type      CallType
	State     CallState
	StartedAt time.Time
}

// Other returns the peer of u within the session, false if u is not a
// participant at all.
func (s *CallSession) Other(u UserID) (UserID, bool) {
	switch u {
	case s.Caller:
		return s.Callee, true
	case s.Callee:
		return s.Caller, true
	}
	return "", false
}

// CallLog is the durable record of a call, kept by the store.
type CallLog struct {
	CallID    CallID     `json:"callId"`
	Caller    UserID     `json:"caller"`
	Callee    UserID     `json:"callee"`
	Type      CallType   `json:"type"`
	Status    CallStatus `json:"status"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}
