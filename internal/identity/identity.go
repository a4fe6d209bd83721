// Package identity resolves the participant a request acts for.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/memelab/internal/domain"
)

const (
	SessionHeaderName = "X-Memelab-Session-ID"
	maxIDLength       = 128
)

type contextKey int

const participantKey contextKey = iota

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ParticipantFromContext extracts the participant from the request context.
func ParticipantFromContext(ctx context.Context) (domain.Participant, bool) {
	p, ok := ctx.Value(participantKey).(domain.Participant)
	return p, ok
}

// Resolve returns the participant stored by Middleware, or parses it from
// the request when the middleware did not run.
func Resolve(r *http.Request, defaultN int) domain.Participant {
	if p, ok := ParticipantFromContext(r.Context()); ok {
		return p
	}
	return ParticipantFromRequest(r, defaultN)
}

// WithParticipant returns a context carrying p.
func WithParticipant(ctx context.Context, p domain.Participant) context.Context {
	return context.WithValue(ctx, participantKey, p)
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if !sessionIDPattern.MatchString(id) {
		return ""
	}
	return id
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxIDLength {
		cut := maxIDLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// ParticipantFromRequest reads workerId, assignmentId, condition, n and
// uniqname from the query string. Missing values take the study defaults;
// defaultN replaces a missing or non-positive n.
func ParticipantFromRequest(r *http.Request, defaultN int) domain.Participant {
	q := r.URL.Query()

	n, err := strconv.Atoi(strings.TrimSpace(q.Get("n")))
	if err != nil || n <= 0 {
		n = defaultN
	}

	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = q.Get("session_id")
	}

	p := domain.Participant{
		WorkerID:     clip(q.Get("workerId")),
		AssignmentID: clip(q.Get("assignmentId")),
		Condition:    domain.ParseCondition(q.Get("condition")),
		N:            n,
		Uniqname:     clip(q.Get("uniqname")),
		SessionID:    sanitizeSessionID(sid),
	}
	return p.WithDefaults()
}

// Middleware injects the participant described by the query string.
func Middleware(defaultN int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := ParticipantFromRequest(r, defaultN)
			next.ServeHTTP(w, r.WithContext(WithParticipant(r.Context(), p)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
