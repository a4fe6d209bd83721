package session

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/memelab/internal/domain"
)

func TestViewIntro(t *testing.T) {
	t.Parallel()

	v := New(domain.Participant{Condition: domain.ConditionWithAI}).View(t0)
	if v.Phase != "intro" || v.TrialCount != domain.DefaultTrialCount || !v.WithAI {
		t.Errorf("intro view = %+v", v)
	}
	if v.Elapsed != "00:00" || v.Counter != "" {
		t.Errorf("intro timer/counter = %q/%q", v.Elapsed, v.Counter)
	}
}

func TestViewSkipOnlyAfterImageFailure(t *testing.T) {
	t.Parallel()

	s := started(t, domain.ConditionBaseline, 1)
	if v := s.View(t0); v.SkipEnabled {
		t.Error("skip enabled while the image is pending")
	}
	loaded := must(t)(s.ImageLoaded())
	if v := loaded.View(t0); v.SkipEnabled {
		t.Error("skip enabled for a loaded image")
	}
	failed := must(t)(s.ImageFailed())
	if v := failed.View(t0); !v.SkipEnabled {
		t.Error("skip disabled for a failed image")
	}
}

func TestViewTaskWithAI(t *testing.T) {
	t.Parallel()

	s := started(t, domain.ConditionWithAI, 2)
	s.Trials[0].MemeText = ""
	s = must(t)(s.ImageFailed())
	s = must(t)(s.ToggleAI(t0.Add(time.Second)))

	v := s.View(t0.Add(65 * time.Second))
	if v.Counter != "Trial 1 of 2" || v.Elapsed != "01:05" {
		t.Errorf("counter=%q elapsed=%q", v.Counter, v.Elapsed)
	}
	if v.MemeText != "(no overlaid text)" {
		t.Errorf("meme text = %q", v.MemeText)
	}
	if !v.SkipEnabled || !v.ImageFailed {
		t.Error("skip should be enabled after image failure")
	}
	if !v.AIVisible || len(v.TopK) != 3 || v.TopK[0].Label != "positive" || v.TopK[0].Percent != "70.0%" {
		t.Errorf("topk = %+v visible=%v", v.TopK, v.AIVisible)
	}
	if v.Rationale != "—" {
		t.Errorf("rationale placeholder = %q", v.Rationale)
	}
}

func TestViewWithoutScores(t *testing.T) {
	t.Parallel()

	s := New(domain.Participant{Condition: domain.ConditionWithAI, Uniqname: "jdoe"})
	s = must(t)(s.Begin([]domain.Trial{{ID: "1"}}, t0))

	v := s.View(t0)
	if v.TopK != nil || v.TopKPlaceholder != "(no AI scores available)" {
		t.Errorf("topk=%+v placeholder=%q", v.TopK, v.TopKPlaceholder)
	}
}

func TestViewBaselineHidesAI(t *testing.T) {
	t.Parallel()

	v := started(t, domain.ConditionBaseline, 1).View(t0)
	if v.WithAI || v.TopK != nil || v.Rationale != "" {
		t.Errorf("baseline view exposes AI: %+v", v)
	}
}

func TestBuildSubmissionBeforeStart(t *testing.T) {
	t.Parallel()

	s := must(t)(New(domain.Participant{WorkerID: "W1"}).Exit(t0))
	sub := BuildSubmission(s, domain.ClientMeta{})
	if sub.StartedAt != nil || sub.TotalMs != nil || sub.Uniqname != nil {
		t.Errorf("unexpected timing/identity: %+v", sub)
	}
	if sub.Trials == nil || len(sub.Trials) != 0 {
		t.Errorf("trials = %#v, want empty non-nil slice", sub.Trials)
	}
	if !sub.ExitEarly || sub.EndedAt != t0.UnixMilli() {
		t.Errorf("exit_early=%v endedAt=%d", sub.ExitEarly, sub.EndedAt)
	}
}

func TestBuildSubmissionKeepsNumericTrialIDs(t *testing.T) {
	t.Parallel()

	var trials []domain.Trial
	if err := json.Unmarshal([]byte(`[{"id":808,"img_url":"/static/images/808.jpg"}]`), &trials); err != nil {
		t.Fatal(err)
	}
	s := must(t)(New(domain.Participant{WorkerID: "W1", Condition: domain.ConditionBaseline, Uniqname: "jdoe"}).Begin(trials, t0))
	s = must(t)(s.ImageFailed())
	s = must(t)(s.Skip(false, t0.Add(time.Second)))

	data, err := json.Marshal(BuildSubmission(s, domain.ClientMeta{}).Trials[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"trial_id":808,`) {
		t.Errorf("response = %s, want numeric trial_id", data)
	}
}
