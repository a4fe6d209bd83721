// Package session implements the trial session state machine.
//
// A State moves Intro -> Task(0..n-1) -> Done. Every transition is a
// value-receiver method that returns the next State, so callers hold the
// only copy of the session and nothing is shared between steps. Hosts that
// need blocking I/O (fetching trials, submitting the log) wrap a State in a
// Controller.
package session

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/memelab/internal/domain"
)

// Phase is the coarse position of the session.
type Phase int

const (
	PhaseIntro Phase = iota
	PhaseTask
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIntro:
		return "intro"
	case PhaseTask:
		return "task"
	case PhaseDone:
		return "done"
	default:
		return "phase(" + strconv.Itoa(int(p)) + ")"
	}
}

var (
	ErrUniqnameRequired      = errors.New("uniqname is required")
	ErrNoTrials              = errors.New("no trials to run")
	ErrNotIntro              = errors.New("session has already started")
	ErrNotInTask             = errors.New("session is not on a trial")
	ErrAlreadyDone           = errors.New("session already finished")
	ErrConfidenceDisabled    = errors.New("confidence is disabled while unsure is selected")
	ErrInvalidConfidence     = errors.New("confidence must be between 1 and 5")
	ErrAIUnavailable         = errors.New("AI suggestion is not available in this condition")
	ErrIncomplete            = errors.New("trial response is incomplete")
	ErrSkipNeedsConfirmation = errors.New("image appears to have loaded; confirm to skip")
)

// ImageStatus tracks whether the current trial's image rendered.
type ImageStatus int

const (
	ImagePending ImageStatus = iota
	ImageLoaded
	ImageFailed
)

// Draft holds the inputs of the trial on screen. It is reset on every render.
type Draft struct {
	Sentiment   domain.Sentiment
	Confidence  int
	Reason      string
	AIHelpful   string
	Image       ImageStatus
	AIVisible   bool
	AIOpenCount int
	AIFirstOpen *time.Duration
	StartedAt   time.Time
}

// ConfidenceEnabled is false while "unsure" is selected.
func (d Draft) ConfidenceEnabled() bool {
	return d.Sentiment != domain.SentimentUnsure
}

// CanAdvance is the validation gate for "next": unsure needs a reason,
// any other sentiment needs a confidence.
func CanAdvance(d Draft) bool {
	switch d.Sentiment {
	case domain.SentimentNone:
		return false
	case domain.SentimentUnsure:
		return strings.TrimSpace(d.Reason) != ""
	default:
		return d.Confidence != 0
	}
}

// State is the whole session. The zero value is not usable; start from New.
type State struct {
	Phase       Phase
	Participant domain.Participant
	Trials      []domain.Trial
	Index       int
	StartedAt   time.Time
	EndedAt     time.Time
	Log         []domain.Response
	ExitEarly   bool
	Draft       Draft
}

// New returns a session on the intro screen.
func New(p domain.Participant) State {
	return State{Phase: PhaseIntro, Participant: p.WithDefaults()}
}

// Current returns the trial on screen.
func (s State) Current() (domain.Trial, bool) {
	if s.Phase != PhaseTask || s.Index < 0 || s.Index >= len(s.Trials) {
		return domain.Trial{}, false
	}
	return s.Trials[s.Index], true
}

// Elapsed is the session time shown by the header timer.
func (s State) Elapsed(now time.Time) time.Duration {
	switch {
	case s.StartedAt.IsZero():
		return 0
	case s.Phase == PhaseDone && !s.EndedAt.IsZero():
		return s.EndedAt.Sub(s.StartedAt)
	default:
		return now.Sub(s.StartedAt)
	}
}

// StartedAtMs is the session start in epoch milliseconds, 0 if never started.
func (s State) StartedAtMs() int64 {
	if s.StartedAt.IsZero() {
		return 0
	}
	return s.StartedAt.UnixMilli()
}

// SetUniqname records the participant's uniqname on the intro screen.
func (s State) SetUniqname(name string) (State, error) {
	if s.Phase != PhaseIntro {
		return s, ErrNotIntro
	}
	s.Participant.Uniqname = strings.TrimSpace(name)
	return s, nil
}

// Begin moves from the intro screen to the first trial.
func (s State) Begin(trials []domain.Trial, now time.Time) (State, error) {
	if s.Phase != PhaseIntro {
		return s, ErrNotIntro
	}
	if s.Participant.Uniqname == "" {
		return s, ErrUniqnameRequired
	}
	if len(trials) == 0 {
		return s, ErrNoTrials
	}
	s.Phase = PhaseTask
	s.Trials = slices.Clone(trials)
	s.Index = 0
	s.Log = nil
	s.StartedAt = now
	s.Draft = Draft{StartedAt: now}
	return s, nil
}

func (s State) requireTask() error {
	switch s.Phase {
	case PhaseTask:
		return nil
	case PhaseDone:
		return ErrAlreadyDone
	default:
		return ErrNotInTask
	}
}

// SelectSentiment picks a label. Unsure clears and disables confidence;
// any other label re-enables it.
func (s State) SelectSentiment(v domain.Sentiment) (State, error) {
	if err := s.requireTask(); err != nil {
		return s, err
	}
	if v == domain.SentimentUnsure {
		s.Draft.Confidence = 0
	}
	s.Draft.Sentiment = v
	return s, nil
}

// SelectConfidence picks a 1..5 confidence.
func (s State) SelectConfidence(c int) (State, error) {
	if err := s.requireTask(); err != nil {
		return s, err
	}
	if !s.Draft.ConfidenceEnabled() {
		return s, ErrConfidenceDisabled
	}
	if c < 1 || c > 5 {
		return s, ErrInvalidConfidence
	}
	s.Draft.Confidence = c
	return s, nil
}

// SetReason replaces the free-text reason.
func (s State) SetReason(text string) (State, error) {
	if err := s.requireTask(); err != nil {
		return s, err
	}
	s.Draft.Reason = text
	return s, nil
}

// SetAIHelpful records the participant's rating of the suggestion.
func (s State) SetAIHelpful(v string) (State, error) {
	if err := s.requireTask(); err != nil {
		return s, err
	}
	if !s.Participant.Condition.WithAI() {
		return s, ErrAIUnavailable
	}
	s.Draft.AIHelpful = strings.TrimSpace(v)
	return s, nil
}

// ToggleAI shows or hides the suggestion. Only openings are counted, and
// the first opening time is kept for the rest of the trial.
func (s State) ToggleAI(now time.Time) (State, error) {
	if err := s.requireTask(); err != nil {
		return s, err
	}
	if !s.Participant.Condition.WithAI() {
		return s, ErrAIUnavailable
	}
	if s.Draft.AIVisible {
		s.Draft.AIVisible = false
		return s, nil
	}
	s.Draft.AIVisible = true
	s.Draft.AIOpenCount++
	if s.Draft.AIFirstOpen == nil {
		d := now.Sub(s.Draft.StartedAt)
		s.Draft.AIFirstOpen = &d
	}
	return s, nil
}

// ImageLoaded marks the current image as rendered.
func (s State) ImageLoaded() (State, error) {
	if err := s.requireTask(); err != nil {
		return s, err
	}
	s.Draft.Image = ImageLoaded
	return s, nil
}

// ImageFailed marks the current image as broken, which enables skipping.
func (s State) ImageFailed() (State, error) {
	if err := s.requireTask(); err != nil {
		return s, err
	}
	s.Draft.Image = ImageFailed
	return s, nil
}

// Next finalizes the current trial when the validation gate is open.
func (s State) Next(now time.Time) (State, error) {
	if err := s.requireTask(); err != nil {
		return s, err
	}
	if !CanAdvance(s.Draft) {
		return s, ErrIncomplete
	}
	return s.finalize(false, false, now), nil
}

// Skip finalizes the current trial without an answer. An image that failed
// or never finished loading counts as broken and skips directly with
// load_error set; a loaded image needs the operator's confirmation.
func (s State) Skip(confirmed bool, now time.Time) (State, error) {
	if err := s.requireTask(); err != nil {
		return s, err
	}
	broken := s.Draft.Image != ImageLoaded
	if !broken && !confirmed {
		return s, ErrSkipNeedsConfirmation
	}
	return s.finalize(true, broken, now), nil
}

// Exit ends the session early. The trial on screen is not logged.
func (s State) Exit(now time.Time) (State, error) {
	if s.Phase == PhaseDone {
		return s, ErrAlreadyDone
	}
	s.Phase = PhaseDone
	s.ExitEarly = true
	s.EndedAt = now
	s.Draft = Draft{}
	return s, nil
}

func optString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func optInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

// finalize appends the response and advances. The returned State is the
// only place the new log and index are visible.
func (s State) finalize(skipped, loadError bool, now time.Time) State {
	t := s.Trials[s.Index]
	d := s.Draft

	resp := domain.Response{
		TrialID:    t.ID,
		Order:      s.Index + 1,
		ImgURL:     optString(t.ImgURL),
		MemeText:   optString(t.MemeText),
		Chosen:     optString(string(d.Sentiment)),
		Confidence: optInt(d.Confidence),
		Reasoning:  optString(strings.TrimSpace(d.Reason)),
		RTMs:       now.Sub(d.StartedAt).Milliseconds(),
		Skipped:    skipped,
		LoadError:  loadError,
		Condition:  s.Participant.Condition,
		Timestamp:  now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if s.Participant.Condition.WithAI() {
		opened := d.AIOpenCount > 0
		count := d.AIOpenCount
		topk := t.TopKLog()
		resp.AIOpened = &opened
		resp.AIOpenCount = &count
		resp.AISeenTopK = &topk
		resp.AIHelpful = optString(d.AIHelpful)
		if d.AIFirstOpen != nil {
			ms := d.AIFirstOpen.Milliseconds()
			resp.AIFirstOpenMs = &ms
		}
	}

	s.Log = append(slices.Clip(s.Log), resp)
	s.Index++
	if s.Index >= len(s.Trials) {
		s.Phase = PhaseDone
		s.EndedAt = now
		s.Draft = Draft{}
		return s
	}
	s.Draft = Draft{StartedAt: now}
	return s
}
