package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"coldwatch/core/auth"
)

const (
	SessionCookieName = "coldwatch_session"
	CSRFCookieName    = "coldwatch_csrf"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sessionFrom(r *http.Request) *auth.Session {
	if v := r.Context().Value(auth.SessionContextKey); v != nil {
		return v.(*auth.Session)
	}
	return nil
}

func isoOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func strOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
