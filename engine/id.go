package engine

import "github.com/google/uuid"

// SessionID is stamped on an Engine at construction and attached to its
// logger's fields, purely for log correlation across structural
// operations — it has no effect on computed values.
type SessionID string

func newSessionID() SessionID {
	return SessionID(uuid.NewString())
}
