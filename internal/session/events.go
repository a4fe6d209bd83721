package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/memelab/internal/domain"
)

// EventType names an operator input.
type EventType string

const (
	EventSentiment  EventType = "sentiment"
	EventConfidence EventType = "confidence"
	EventReason     EventType = "reason"
	EventAIToggle   EventType = "ai_toggle"
	EventAIHelpful  EventType = "ai_helpful"
	EventImage      EventType = "image"
	EventKey        EventType = "key"
	EventNext       EventType = "next"
	EventSkip       EventType = "skip"
	EventExit       EventType = "exit"
)

// Image event values.
const (
	ImageValueLoaded = "loaded"
	ImageValueError  = "error"
)

// Event is one discrete operator input, independent of the UI that produced it.
type Event struct {
	Type      EventType `json:"type"`
	Value     string    `json:"value,omitempty"`
	Confirmed bool      `json:"confirmed,omitempty"`
}

// Apply routes an event to its transition.
func (s State) Apply(ev Event, now time.Time) (State, error) {
	switch ev.Type {
	case EventSentiment:
		v, err := domain.ParseSentiment(ev.Value)
		if err != nil {
			return s, err
		}
		return s.SelectSentiment(v)
	case EventConfidence:
		c, err := strconv.Atoi(strings.TrimSpace(ev.Value))
		if err != nil {
			return s, ErrInvalidConfidence
		}
		return s.SelectConfidence(c)
	case EventReason:
		return s.SetReason(ev.Value)
	case EventAIToggle:
		return s.ToggleAI(now)
	case EventAIHelpful:
		return s.SetAIHelpful(ev.Value)
	case EventImage:
		switch ev.Value {
		case ImageValueLoaded:
			return s.ImageLoaded()
		case ImageValueError:
			return s.ImageFailed()
		default:
			return s, fmt.Errorf("unknown image status %q", ev.Value)
		}
	case EventKey:
		return s.HandleKey(ev.Value, now)
	case EventNext:
		return s.Next(now)
	case EventSkip:
		return s.Skip(ev.Confirmed, now)
	case EventExit:
		return s.Exit(now)
	default:
		return s, fmt.Errorf("unknown event %q", ev.Type)
	}
}

var keySentiments = map[string]domain.Sentiment{
	"a": domain.SentimentNegative,
	"b": domain.SentimentNeutral,
	"c": domain.SentimentPositive,
	"d": domain.SentimentUnsure,
}

// HandleKey applies a keyboard shortcut: 1-5 confidence, a/b/c/d sentiment,
// enter advances when allowed. Shortcuts go through the same transitions as
// pointer input, so the resulting state does not depend on the modality.
// Keys that do not apply in the current state are ignored.
func (s State) HandleKey(key string, now time.Time) (State, error) {
	if err := s.requireTask(); err != nil {
		return s, err
	}
	k := strings.ToLower(key)
	switch {
	case len(k) == 1 && k[0] >= '1' && k[0] <= '5':
		if !s.Draft.ConfidenceEnabled() {
			return s, nil
		}
		return s.SelectConfidence(int(k[0] - '0'))
	case keySentiments[k] != "":
		return s.SelectSentiment(keySentiments[k])
	case k == "enter":
		if !CanAdvance(s.Draft) {
			return s, nil
		}
		return s.Next(now)
	default:
		return s, nil
	}
}
