package session

import (
	"errors"
	"testing"
	"time"

	"github.com/ashureev/memelab/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func TestKeyboardMatchesPointerInput(t *testing.T) {
	t.Parallel()

	base := started(t, domain.ConditionBaseline, 2)

	byPointer := must(t)(base.SelectSentiment(domain.SentimentNeutral))
	byPointer = must(t)(byPointer.SelectConfidence(4))

	byKey := must(t)(base.HandleKey("B", t0))
	byKey = must(t)(byKey.HandleKey("4", t0))

	if diff := cmp.Diff(byPointer.Draft, byKey.Draft); diff != "" {
		t.Fatalf("drafts differ (-pointer +key):\n%s", diff)
	}
	if CanAdvance(byKey.Draft) != CanAdvance(byPointer.Draft) {
		t.Error("gate differs between modalities")
	}
}

func TestKeyboardUnsureIgnoresDigits(t *testing.T) {
	t.Parallel()

	s := started(t, domain.ConditionBaseline, 1)
	s = must(t)(s.HandleKey("c", t0))
	s = must(t)(s.HandleKey("2", t0))
	s = must(t)(s.HandleKey("d", t0))
	if s.Draft.Confidence != 0 {
		t.Fatalf("confidence = %d after unsure", s.Draft.Confidence)
	}

	s = must(t)(s.HandleKey("5", t0))
	if s.Draft.Confidence != 0 {
		t.Errorf("digit applied while confidence disabled")
	}

	s = must(t)(s.HandleKey("a", t0))
	s = must(t)(s.HandleKey("5", t0))
	if s.Draft.Confidence != 5 || s.Draft.Sentiment != domain.SentimentNegative {
		t.Errorf("draft = %+v", s.Draft)
	}
}

func TestEnterOnlyAdvancesWhenEnabled(t *testing.T) {
	t.Parallel()

	s := started(t, domain.ConditionBaseline, 2)
	s = must(t)(s.HandleKey("c", t0))
	s = must(t)(s.HandleKey("Enter", t0.Add(time.Second)))
	if s.Index != 0 {
		t.Fatal("enter advanced without confidence")
	}

	s = must(t)(s.HandleKey("3", t0))
	s = must(t)(s.HandleKey("enter", t0.Add(time.Second)))
	if s.Index != 1 || len(s.Log) != 1 {
		t.Fatalf("enter did not advance: index=%d log=%d", s.Index, len(s.Log))
	}
}

func TestApplyRoutesEvents(t *testing.T) {
	t.Parallel()

	s := started(t, domain.ConditionWithAI, 1)
	steps := []Event{
		{Type: EventImage, Value: ImageValueLoaded},
		{Type: EventAIToggle},
		{Type: EventAIHelpful, Value: "somewhat"},
		{Type: EventSentiment, Value: "positive"},
		{Type: EventConfidence, Value: "2"},
		{Type: EventReason, Value: "the dog is smiling"},
		{Type: EventNext},
	}
	for _, ev := range steps {
		s = must(t)(s.Apply(ev, t0.Add(time.Second)))
	}
	if s.Phase != PhaseDone || len(s.Log) != 1 {
		t.Fatalf("phase=%v log=%d", s.Phase, len(s.Log))
	}

	if _, err := s.Apply(Event{Type: "dance"}, t0); err == nil {
		t.Error("expected error for unknown event")
	}
}

func TestApplyRejectsBadValues(t *testing.T) {
	t.Parallel()

	s := started(t, domain.ConditionBaseline, 1)
	if _, err := s.Apply(Event{Type: EventConfidence, Value: "high"}, t0); !errors.Is(err, ErrInvalidConfidence) {
		t.Errorf("confidence err = %v", err)
	}
	if _, err := s.Apply(Event{Type: EventSentiment, Value: "angry"}, t0); err == nil {
		t.Error("expected error for unknown sentiment")
	}
	if _, err := s.Apply(Event{Type: EventImage, Value: "maybe"}, t0); err == nil {
		t.Error("expected error for unknown image status")
	}
}
