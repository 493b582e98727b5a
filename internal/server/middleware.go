package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"cardreader/internal/logger"
	"cardreader/internal/session"
)

const (
	// SessionHeader carries the session ID for API clients.
	SessionHeader = "X-Session-ID"

	// SessionCookie carries the session ID for browsers.
	SessionCookie = "cardreader_session"

	requestIDHeader = "X-Request-ID"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// requestLogger tags each request with an ID, stores a request-scoped logger
// in the context and logs the outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		log := logger.WithRequestID(requestID).With().Str("component", "server").Logger()
		r = r.WithContext(log.WithContext(r.Context()))

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		event := log.Info()
		if rec.status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// sessionHandlerFunc receives the caller's session and returns it, possibly
// changed, for the wrapper to store.
type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, state session.State) session.State

// withSession resolves the session from the X-Session-ID header or the
// session cookie, starting a new one when neither names a live session.
func (s *Server) withSession(h sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
		}

		state, created := s.deps.Sessions.Load(id)
		if created {
			logger.WithContext(r.Context()).Debug().Str("session_id", state.ID).Msg("Session started")
		}

		w.Header().Set(SessionHeader, state.ID)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    state.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		s.deps.Sessions.Save(h(w, r, state))
	}
}
