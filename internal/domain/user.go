// Package domain contains entity without logic, just meta-data
package domain

type UserID string

// ConnID identifies one live transport connection. A user may hold
// several at once (tabs, devices); a connection belongs to at most
// one user, assigned on successful auth.
type ConnID string
