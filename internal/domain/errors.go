package domain

import "errors"

// Signaling errors. All of them terminate the attempted action only;
// none are fatal to the connection or to other in-flight sessions.
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrSelfCall        = errors.New("cannot call yourself")
	ErrBusy            = errors.New("user is busy")
	ErrUnavailable     = errors.New("user or call unavailable")
	ErrForbidden       = errors.New("not a participant of this call")
)
