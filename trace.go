package quic

import "github.com/m-lab/uuid"

// newTraceID mints an internal correlation id for a connection, used only
// in logs -- distinct from the wire connection id, which must stay short
// and resistant to adversarial prediction (see transport/conn.go's
// resetSecret derivation).
func newTraceID() string {
	return uuid.FromCookie(uuid.NewCookie())
}
