package session

import "github.com/google/uuid"

// NewID issues a session id at connect time. Ids are opaque to every
// other layer; only equality is ever assumed.
func NewID() string {
	return uuid.NewString()
}
