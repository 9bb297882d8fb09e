package app

import "net/http"

type sessionKey string

const (
	SessionKeyGuest = sessionKey("guest")
)

func (s sessionKey) String() string {
	return string(s)
}

// ownerID returns the caller's hold-owner identity: the scs session token.
// The TTL reaper is the cleanup path for abandoned sessions, so no explicit
// cancel-on-disconnect handling is needed.
func (app *Application) ownerID(r *http.Request) string {
	return app.sessionManager.Token(r.Context())
}
