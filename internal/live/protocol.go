package live

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/memelab/internal/domain"
	"github.com/ashureev/memelab/internal/session"
)

// Inbound message types.
const (
	TypeStart = "start"
	TypePing  = "ping"
)

// Outbound message types.
const (
	TypeState       = "state"
	TypeError       = "error"
	TypeConfirmSkip = "confirm_skip"
	TypeTick        = "tick"
	TypePong        = "pong"
)

// Inbound is a message from the browser. Types other than start and ping
// carry a session event.
type Inbound struct {
	Type      string             `json:"type"`
	Value     string             `json:"value,omitempty"`
	Confirmed bool               `json:"confirmed,omitempty"`
	Uniqname  string             `json:"uniqname,omitempty"`
	Meta      *domain.ClientMeta `json:"meta,omitempty"`
}

// Outbound is a message to the browser.
type Outbound struct {
	Type    string        `json:"type"`
	State   *session.View `json:"state,omitempty"`
	Error   string        `json:"error,omitempty"`
	Elapsed string        `json:"elapsed,omitempty"`
}

// host drives one Controller. It is owned by a single goroutine.
type host struct {
	ctrl          *session.Controller
	submitTimeout time.Duration
	logger        *slog.Logger
}

func (h *host) state() Outbound {
	v := h.ctrl.View()
	return Outbound{Type: TypeState, State: &v}
}

func (h *host) fail(err error) []Outbound {
	return []Outbound{{Type: TypeError, Error: err.Error()}, h.state()}
}

func (h *host) tick() (Outbound, bool) {
	if h.ctrl.State().Phase != session.PhaseTask {
		return Outbound{}, false
	}
	return Outbound{Type: TypeTick, Elapsed: h.ctrl.View().Elapsed}, true
}

// handle applies one inbound message and returns the replies in order.
func (h *host) handle(ctx context.Context, msg Inbound) []Outbound {
	switch msg.Type {
	case TypePing:
		return []Outbound{{Type: TypePong}}
	case TypeStart:
		if msg.Meta != nil {
			h.ctrl.SetClientMeta(*msg.Meta)
		}
		if err := h.ctrl.SetUniqname(msg.Uniqname); err != nil {
			return h.fail(err)
		}
		if err := h.ctrl.Start(ctx); err != nil {
			return h.fail(err)
		}
		return []Outbound{h.state()}
	}

	ev := session.Event{Type: session.EventType(msg.Type), Value: msg.Value, Confirmed: msg.Confirmed}
	if !knownEvent(ev.Type) {
		h.logger.Debug("Ignoring unknown message", "type", msg.Type)
		return nil
	}

	dctx := ctx
	if h.submitTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, h.submitTimeout)
		defer cancel()
	}

	if err := h.ctrl.Dispatch(dctx, ev); err != nil {
		if errors.Is(err, session.ErrSkipNeedsConfirmation) {
			return []Outbound{{Type: TypeConfirmSkip}}
		}
		return h.fail(err)
	}
	return []Outbound{h.state()}
}

func knownEvent(t session.EventType) bool {
	switch t {
	case session.EventSentiment, session.EventConfidence, session.EventReason,
		session.EventAIToggle, session.EventAIHelpful, session.EventImage,
		session.EventKey, session.EventNext, session.EventSkip, session.EventExit:
		return true
	}
	return false
}
