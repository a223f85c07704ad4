package chat

import "time"

// SessionToken is the short-lived credential attached to chat requests.
type SessionToken struct {
	Token     string    `json:"sessionId"`
	ExpiresAt time.Time `json:"-"`
}

// ExpiresAtMillis reports the expiry as epoch milliseconds, the unit used on
// the wire and in client storage.
func (t SessionToken) ExpiresAtMillis() int64 {
	return t.ExpiresAt.UnixMilli()
}

// Expired reports whether now is past the expiry.
func (t SessionToken) Expired(now time.Time) bool {
	return now.UnixMilli() > t.ExpiresAtMillis()
}
