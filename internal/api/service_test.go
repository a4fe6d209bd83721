package api

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/memelab/internal/domain"
)

func TestSurveyCode(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 11, 3, 12, 0, 0, 500_000_000, time.UTC)
	if got := SurveyCode("W1", at); got != "19FEA278" {
		t.Errorf("SurveyCode = %q, want 19FEA278", got)
	}
	if SurveyCode("W1", at) == SurveyCode("W2", at) {
		t.Error("codes for different workers collide")
	}
}

func TestNormalizeLanguage(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"en-us":     "en-US",
		" pt_br ":   "pt-BR",
		"zh-hant":   "zh-Hant",
		"not a tag": "not a tag",
	}
	for in, want := range tests {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServiceImplementsSessionPorts(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	svc := NewService(bankOf(4), repo, 2)

	trials, err := svc.FetchTrials(context.Background(), domain.Participant{})
	if err != nil || len(trials) != 2 {
		t.Fatalf("FetchTrials = %d, %v; want 2 default trials", len(trials), err)
	}

	code, err := svc.Submit(context.Background(), &domain.Submission{WorkerID: "W9"})
	if err != nil || len(code) != 8 {
		t.Errorf("Submit = %q, %v", code, err)
	}
	if repo.recs[0].Submission.Trials == nil {
		t.Error("nil trials should be stored as an empty list")
	}
}

type recordingJournal struct {
	codes []string
}

func (r *recordingJournal) Record(rec *domain.SubmissionRecord) {
	r.codes = append(r.codes, rec.SurveyCode)
}

func TestServiceRecordsOnlyNewSubmissions(t *testing.T) {
	t.Parallel()
	svc := NewService(bankOf(1), newFakeRepo(), 1)
	journal := &recordingJournal{}
	svc.SetRecorder(journal)

	first, err := svc.Submit(context.Background(), &domain.Submission{SessionID: "s-1", WorkerID: "W1"})
	if err != nil {
		t.Fatal(err)
	}
	again, err := svc.Submit(context.Background(), &domain.Submission{SessionID: "s-1", WorkerID: "W1"})
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Errorf("resubmit code = %q, want %q", again, first)
	}
	if len(journal.codes) != 1 || journal.codes[0] != first {
		t.Errorf("journal = %v, want one entry", journal.codes)
	}
}
