package auth

type contextKey string

// SessionContextKey carries the *Session of the authenticated request.
const SessionContextKey contextKey = "coldwatch.session"
