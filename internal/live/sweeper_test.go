package live

import (
	"context"
	"testing"
	"time"
)

func TestStartSweeperClosesIdleSessions(t *testing.T) {
	m := NewManager()
	conn := &fakeConn{}
	m.Register("W1", "tab-1", conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartSweeper(ctx, m, 20*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for m.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if m.Count() != 0 {
		t.Fatal("idle session was not swept")
	}
	if got := conn.reasons(); len(got) != 1 || got[0] != "idle timeout" {
		t.Errorf("reasons = %v", got)
	}
}

func TestStartSweeperDisabledWithoutTTL(t *testing.T) {
	m := NewManager()
	m.Register("W1", "tab-1", &fakeConn{})

	StartSweeper(context.Background(), m, 0)
	time.Sleep(30 * time.Millisecond)

	if m.Count() != 1 {
		t.Error("sweeper ran with ttl 0")
	}
}
