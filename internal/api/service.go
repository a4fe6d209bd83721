package api

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/memelab/internal/domain"
	"github.com/ashureev/memelab/internal/store"
	"golang.org/x/text/language"
)

// TrialSampler draws a session's trials.
type TrialSampler interface {
	Sample(n int) []domain.Trial
}

// Recorder receives each newly stored submission.
type Recorder interface {
	Record(rec *domain.SubmissionRecord)
}

// Service implements the study operations shared by the HTTP handlers and
// in-process live sessions.
type Service struct {
	bank     TrialSampler
	repo     store.Repository
	defaultN int
	now      func() time.Time
	recorder Recorder
}

// NewService creates a study service.
func NewService(bank TrialSampler, repo store.Repository, defaultN int) *Service {
	if defaultN <= 0 {
		defaultN = domain.DefaultTrialCount
	}
	return &Service{bank: bank, repo: repo, defaultN: defaultN, now: time.Now}
}

// SetRecorder attaches a recorder for new submissions.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// FetchTrials samples trials for a participant.
func (s *Service) FetchTrials(_ context.Context, p domain.Participant) ([]domain.Trial, error) {
	n := p.N
	if n <= 0 {
		n = s.defaultN
	}
	return s.bank.Sample(n), nil
}

// Submit stores a finished session and returns its survey code.
func (s *Service) Submit(ctx context.Context, sub *domain.Submission) (string, error) {
	rec, err := s.Store(ctx, sub)
	if err != nil {
		return "", err
	}
	return rec.SurveyCode, nil
}

// Store records a submission. A repeated session id returns the record
// stored the first time.
func (s *Service) Store(ctx context.Context, sub *domain.Submission) (*domain.SubmissionRecord, error) {
	now := s.now()
	normalizeSubmission(sub)

	rec := &domain.SubmissionRecord{
		ReceivedAt: now.UTC(),
		SurveyCode: SurveyCode(sub.WorkerID, now),
		DurationMs: sub.DurationMs(),
		Submission: *sub,
	}

	saved, created, err := s.repo.SaveSubmission(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}
	if !created {
		return saved, nil
	}
	if s.recorder != nil {
		s.recorder.Record(saved)
	}

	slog.Info("Submission stored",
		"worker_id", saved.Submission.WorkerID,
		"session_id", saved.Submission.SessionID,
		"survey_code", saved.SurveyCode,
		"responses", len(saved.Submission.Trials),
		"exit_early", saved.Submission.ExitEarly)
	return saved, nil
}

// Submissions lists every stored submission.
func (s *Service) Submissions(ctx context.Context) ([]*domain.SubmissionRecord, error) {
	return s.repo.ListSubmissions(ctx)
}

// SurveyCode derives the completion code: the first eight hex digits of
// md5("<workerId>-<unix seconds>"), upper-case.
func SurveyCode(workerID string, now time.Time) string {
	seed := fmt.Sprintf("%s-%.6f", workerID, float64(now.UnixMicro())/1e6)
	sum := md5.Sum([]byte(seed))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:8])
}

func normalizeSubmission(sub *domain.Submission) {
	if strings.TrimSpace(sub.WorkerID) == "" {
		sub.WorkerID = "local"
	}
	if sub.Trials == nil {
		sub.Trials = []domain.Response{}
	}
	if sub.ClientMeta.Lang != nil {
		lang := NormalizeLanguage(*sub.ClientMeta.Lang)
		sub.ClientMeta.Lang = &lang
	}
}

// NormalizeLanguage canonicalizes a BCP 47 tag ("en-us" → "en-US").
// Unparseable input is returned trimmed.
func NormalizeLanguage(raw string) string {
	raw = strings.TrimSpace(raw)
	tag, err := language.Parse(raw)
	if err != nil {
		return raw
	}
	return tag.String()
}
