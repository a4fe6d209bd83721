package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/memelab/internal/identity"
	"github.com/ashureev/memelab/internal/session"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	defaultTickInterval = time.Second
	writeTimeout        = 5 * time.Second
)

// HandlerConfig configures the WebSocket handler.
type HandlerConfig struct {
	AllowedOrigin string
	IsDev         bool
	DefaultTrials int
	SubmitTimeout time.Duration
	TickInterval  time.Duration
}

// Handler serves /ws/session.
type Handler struct {
	source    session.TrialSource
	submitter session.Submitter
	mgr       *Manager
	opts      session.Options
	cfg       HandlerConfig
}

// NewHandler creates a new WebSocket handler.
func NewHandler(source session.TrialSource, submitter session.Submitter, mgr *Manager, opts session.Options, cfg HandlerConfig) *Handler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	return &Handler{
		source:    source,
		submitter: submitter,
		mgr:       mgr,
		opts:      opts,
		cfg:       cfg,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := identity.Resolve(r, h.cfg.DefaultTrials)
	if p.SessionID == "" {
		p.SessionID = uuid.NewString()
	}
	slog.Info("WebSocket connection request",
		"worker_id", p.WorkerID,
		"session_id", p.SessionID,
		"condition", p.Condition,
		"ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "worker_id", p.WorkerID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "worker_id", p.WorkerID)
		}
	}()

	h.mgr.Register(p.WorkerID, p.SessionID, ws)
	defer h.mgr.Unregister(p.WorkerID, p.SessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := slog.Default().With("worker_id", p.WorkerID, "session_id", p.SessionID)
	opts := h.opts
	opts.Logger = logger
	hs := &host{
		ctrl:          session.NewController(p, h.source, h.submitter, opts),
		submitTimeout: h.cfg.SubmitTimeout,
		logger:        logger,
	}

	inbound := make(chan Inbound)
	go func() {
		defer cancel()
		defer close(inbound)
		h.readLoop(ctx, ws, inbound, logger)
	}()

	if err := h.writeJSON(ctx, ws, hs.state()); err != nil {
		logger.Debug("Failed to send initial state", "error", err)
		return
	}

	ticker := time.NewTicker(h.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-inbound:
			if !ok {
				logger.Info("Live session ended", "phase", hs.ctrl.State().Phase.String())
				return
			}
			h.mgr.Touch(p.WorkerID, p.SessionID)
			for _, out := range hs.handle(ctx, msg) {
				if err := h.writeJSON(ctx, ws, out); err != nil {
					logger.Debug("Failed to send message", "type", out.Type, "error", err)
					return
				}
			}
		case <-ticker.C:
			if out, ok := hs.tick(); ok {
				if err := h.writeJSON(ctx, ws, out); err != nil {
					logger.Debug("Failed to send tick", "error", err)
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// readLoop decodes browser messages and forwards them. It never touches
// session state.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, out chan<- Inbound, logger *slog.Logger) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				logger.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("Dropping malformed message", "error", err)
			continue
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	if origin == h.cfg.AllowedOrigin || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigin)
	return false
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(wctx, websocket.MessageText, data)
}
