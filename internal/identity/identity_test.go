package identity

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ashureev/memelab/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func TestParticipantFromRequestDefaults(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/trials", nil)
	p := ParticipantFromRequest(req, 8)

	if p.WorkerID != domain.DefaultWorkerID || p.AssignmentID != domain.DefaultAssignmentID {
		t.Errorf("ids = %q/%q", p.WorkerID, p.AssignmentID)
	}
	if p.Condition != domain.ConditionBaseline {
		t.Errorf("condition = %q", p.Condition)
	}
	if p.N != 8 {
		t.Errorf("n = %d, want 8", p.N)
	}
	if p.SessionID != "" {
		t.Errorf("session id = %q, want empty", p.SessionID)
	}
}

func TestParticipantFromRequestQuery(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet,
		"/trials?workerId=W42&assignmentId=A7&condition=With-AI&n=5&uniqname=%20jdoe%20&session_id=tab-1", nil)
	p := ParticipantFromRequest(req, 12)

	want := domain.Participant{
		WorkerID:     "W42",
		AssignmentID: "A7",
		Condition:    domain.ConditionWithAI,
		N:            5,
		Uniqname:     "jdoe",
		SessionID:    "tab-1",
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("participant mismatch (-want +got):\n%s", diff)
	}
}

func TestParticipantFromRequestRejectsBadInput(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/trials?n=-3&workerId="+strings.Repeat("w", 300), nil)
	req.Header.Set(SessionHeaderName, "bad id with spaces")
	p := ParticipantFromRequest(req, 12)

	if p.N != 12 {
		t.Errorf("n = %d, want default", p.N)
	}
	if len(p.WorkerID) != maxIDLength {
		t.Errorf("worker id length = %d", len(p.WorkerID))
	}
	if p.SessionID != "" {
		t.Errorf("session id = %q, want rejected", p.SessionID)
	}
}

func TestParticipantFromRequestClipsOnRuneBoundary(t *testing.T) {
	t.Parallel()

	// 127 ASCII bytes then a 3-byte rune straddling the limit.
	worker := strings.Repeat("w", maxIDLength-1) + "€€"
	req := httptest.NewRequest(http.MethodGet, "/trials?workerId="+url.QueryEscape(worker), nil)
	p := ParticipantFromRequest(req, 12)

	if !utf8.ValidString(p.WorkerID) {
		t.Fatalf("worker id is not valid UTF-8: %q", p.WorkerID)
	}
	if p.WorkerID != strings.Repeat("w", maxIDLength-1) {
		t.Errorf("worker id = %q", p.WorkerID)
	}
}

func TestMiddlewareStoresParticipant(t *testing.T) {
	t.Parallel()

	var got domain.Participant
	var ok bool
	h := Middleware(12)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, ok = ParticipantFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws/session?workerId=W1", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !ok || got.WorkerID != "W1" || got.N != 12 {
		t.Errorf("participant = %+v (ok=%v)", got, ok)
	}
}

func TestResolveWithoutMiddleware(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/trials?workerId=W5&n=3", nil)
	if _, ok := ParticipantFromContext(req.Context()); ok {
		t.Fatal("bare request should carry no participant")
	}
	p := Resolve(req, 12)
	if p.WorkerID != "W5" || p.N != 3 {
		t.Errorf("participant = %+v", p)
	}

	stored := domain.Participant{WorkerID: "ctx"}
	req = req.WithContext(WithParticipant(req.Context(), stored))
	if got := Resolve(req, 12); got != stored {
		t.Errorf("Resolve = %+v, want context value", got)
	}
}
