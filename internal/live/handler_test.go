package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/memelab/internal/session"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func readType(ctx context.Context, t *testing.T, c *websocket.Conn, want string) Outbound {
	t.Helper()
	for {
		var msg Outbound
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		if msg.Type == want {
			return msg
		}
	}
}

func TestHandlerServesSession(t *testing.T) {
	sub := &fakeSubmitter{code: "SRV12345"}
	mgr := NewManager()
	h := NewHandler(&fakeSource{trials: oneTrial()}, sub, mgr, session.Options{}, HandlerConfig{
		IsDev:         true,
		DefaultTrials: 12,
		SubmitTimeout: time.Second,
		TickInterval:  time.Hour,
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session?workerId=W1&session_id=tab-1"
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()

	first := readType(ctx, t, c, TypeState)
	if first.State.Phase != "intro" {
		t.Fatalf("initial phase = %q", first.State.Phase)
	}
	if mgr.Count() != 1 {
		t.Errorf("Count = %d, want 1", mgr.Count())
	}

	steps := []Inbound{
		{Type: TypeStart, Uniqname: "jdoe"},
		{Type: "image", Value: "loaded"},
		{Type: "sentiment", Value: "unsure"},
		{Type: "reason", Value: "sarcasm is hard"},
	}
	for _, step := range steps {
		if err := wsjson.Write(ctx, c, step); err != nil {
			t.Fatalf("write %s: %v", step.Type, err)
		}
		readType(ctx, t, c, TypeState)
	}

	if err := wsjson.Write(ctx, c, Inbound{Type: "key", Value: "Enter"}); err != nil {
		t.Fatal(err)
	}
	done := readType(ctx, t, c, TypeState)
	if done.State.Phase != "done" || done.State.SurveyCode != "SRV12345" {
		t.Errorf("final state = %+v", done.State)
	}

	got := sub.submissions()
	if len(got) != 1 || got[0].SessionID != "tab-1" || got[0].WorkerID != "W1" {
		t.Errorf("submissions = %+v", got)
	}
}

func TestHandlerRejectsForeignOrigin(t *testing.T) {
	h := NewHandler(&fakeSource{}, &fakeSubmitter{}, NewManager(), session.Options{}, HandlerConfig{
		AllowedOrigin: "https://study.example",
	})

	req := httptest.NewRequest(http.MethodGet, "/ws/session", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
