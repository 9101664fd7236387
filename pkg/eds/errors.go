package eds

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned when the portal invalidates the session and
// a forced re-login plus one retry did not recover the call.
var ErrSessionExpired = errors.New("session expired")

// TransportError is an HTTP-level failure (status >= 400). It is not retried
// by this layer.
type TransportError struct {
	StatusCode int
	URL        string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("http status %d on %s", e.StatusCode, e.URL)
}

// ProtocolError means an expected marker or field was missing from a portal
// response. The portal's HTML/JSON contract is assumed stable, so this is
// fatal for the current operation and never retried.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "portal protocol error: " + e.Reason
}

// CommandError is a business error reported by the portal for a specific
// action, surfaced with the portal's own message text.
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return "portal command error: " + e.Message
}
