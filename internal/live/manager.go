// Package live hosts browser sessions over WebSocket. The browser renders
// state pushed by the server; every transition runs server-side.
package live

import (
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Closer is the part of *websocket.Conn the manager needs.
type Closer interface {
	Close(code websocket.StatusCode, reason string) error
}

type entry struct {
	conn     Closer
	lastSeen time.Time
}

// Manager tracks live connections per worker and browser tab.
type Manager struct {
	mu     sync.RWMutex
	active map[string]map[string]*entry
	now    func() time.Time
}

// NewManager creates a new connection manager.
func NewManager() *Manager {
	return &Manager{
		active: make(map[string]map[string]*entry),
		now:    time.Now,
	}
}

// Register adds a connection for a worker/tab. An older connection for the
// same tab is closed.
func (m *Manager) Register(workerID, tabID string, conn Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[workerID]; !exists {
		m.active[workerID] = make(map[string]*entry)
	}

	if existing, exists := m.active[workerID][tabID]; exists && existing.conn != conn {
		_ = existing.conn.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[workerID][tabID] = &entry{conn: conn, lastSeen: m.now()}
	slog.Info("Live session registered", "worker_id", workerID, "tab_id", tabID)
}

// Unregister removes a connection for a worker/tab.
func (m *Manager) Unregister(workerID, tabID string, conn Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tabs, ok := m.active[workerID]; ok {
		if current, exists := tabs[tabID]; exists && current.conn == conn {
			delete(tabs, tabID)
			if len(tabs) == 0 {
				delete(m.active, workerID)
			}
			slog.Info("Live session unregistered", "worker_id", workerID, "tab_id", tabID)
		}
	}
}

// Touch records participant activity on a tab.
func (m *Manager) Touch(workerID, tabID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.active[workerID][tabID]; ok {
		e.lastSeen = m.now()
	}
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, tabs := range m.active {
		n += len(tabs)
	}
	return n
}

// CloseWorker terminates every live session of a worker.
func (m *Manager) CloseWorker(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tabs, ok := m.active[workerID]
	if !ok {
		return
	}

	for tid, e := range tabs {
		_ = e.conn.Close(websocket.StatusNormalClosure, "session closed")
		slog.Info("Live session closed", "worker_id", workerID, "tab_id", tid)
	}
	delete(m.active, workerID)
}

// CloseIdle closes connections without activity for longer than ttl and
// returns how many were closed.
func (m *Manager) CloseIdle(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-ttl)
	closed := 0
	for wid, tabs := range m.active {
		for tid, e := range tabs {
			if e.lastSeen.After(cutoff) {
				continue
			}
			_ = e.conn.Close(websocket.StatusGoingAway, "idle timeout")
			delete(tabs, tid)
			closed++
			slog.Info("Idle live session closed", "worker_id", wid, "tab_id", tid, "idle_since", e.lastSeen)
		}
		if len(tabs) == 0 {
			delete(m.active, wid)
		}
	}
	return closed
}

// CloseAll closes every live connection. Used on server shutdown, since
// http.Server.Shutdown does not touch hijacked connections.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for wid, tabs := range m.active {
		for _, e := range tabs {
			_ = e.conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(m.active, wid)
	}
}
