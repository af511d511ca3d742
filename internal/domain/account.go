package domain

import "strings"

// Account is one vendor login used to issue generation requests. WebID is
// lazily generated the first time a credential bundle is derived for the
// account and kept for the life of the process.
type Account struct {
	SessionID   string
	Description string
	WebID       string
}

// MaskedSessionID returns the session id with the middle elided, for
// listings and logs.
func (a *Account) MaskedSessionID() string {
	sid := a.SessionID
	if len(sid) <= 8 {
		return strings.Repeat("*", len(sid))
	}
	return sid[:4] + strings.Repeat("*", len(sid)-8) + sid[len(sid)-4:]
}
