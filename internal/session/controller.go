package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/memelab/internal/domain"
	"github.com/google/uuid"
)

// TrialSource loads the trial set for a participant.
type TrialSource interface {
	FetchTrials(ctx context.Context, p domain.Participant) ([]domain.Trial, error)
}

// Submitter stores a finished session and returns the issued survey code.
type Submitter interface {
	Submit(ctx context.Context, sub *domain.Submission) (string, error)
}

// Options configures a Controller.
type Options struct {
	SurveyURL string
	Prefill   Prefill
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Controller owns one State and performs the I/O its transitions call for.
// It is not safe for concurrent use; hosts drive it from a single goroutine.
type Controller struct {
	state     State
	source    TrialSource
	submitter Submitter
	meta      domain.ClientMeta
	opts      Options
	code      string
	submitted bool
}

// NewController creates a controller on the intro screen. A session id is
// generated when the participant has none.
func NewController(p domain.Participant, source TrialSource, submitter Submitter, opts Options) *Controller {
	if p.SessionID == "" {
		p.SessionID = uuid.NewString()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		state:     New(p),
		source:    source,
		submitter: submitter,
		opts:      opts,
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	return c.state
}

// SurveyCode returns the completion code once the session is done.
func (c *Controller) SurveyCode() string {
	return c.code
}

// SetClientMeta records the participant's environment for the submission.
func (c *Controller) SetClientMeta(meta domain.ClientMeta) {
	c.meta = meta
}

// SetUniqname records the uniqname typed on the intro screen.
func (c *Controller) SetUniqname(name string) error {
	next, err := c.state.SetUniqname(name)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Start fetches the trial set and shows the first trial. On failure the
// session stays on the intro screen and Start may be called again.
func (c *Controller) Start(ctx context.Context) error {
	if c.state.Phase != PhaseIntro {
		return ErrNotIntro
	}
	if c.state.Participant.Uniqname == "" {
		return ErrUniqnameRequired
	}

	trials, err := c.source.FetchTrials(ctx, c.state.Participant)
	if err != nil {
		c.opts.Logger.Warn("Failed to load trials",
			"worker_id", c.state.Participant.WorkerID,
			"error", err)
		return fmt.Errorf("load trials: %w", err)
	}

	next, err := c.state.Begin(trials, c.opts.Clock())
	if err != nil {
		return err
	}
	c.state = next
	c.opts.Logger.Info("Session started",
		"worker_id", next.Participant.WorkerID,
		"session_id", next.Participant.SessionID,
		"condition", next.Participant.Condition,
		"trials", len(next.Trials))
	return nil
}

// Dispatch applies an operator event. When the event ends the session the
// log is submitted before Dispatch returns.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	next, err := c.state.Apply(ev, c.opts.Clock())
	if err != nil {
		return err
	}
	c.state = next
	if c.state.Phase == PhaseDone && !c.submitted {
		c.finish(ctx)
	}
	return nil
}

// finish submits the log once. Failures fall back to a locally derived code
// so the participant always receives one.
func (c *Controller) finish(ctx context.Context) {
	c.submitted = true
	sub := BuildSubmission(c.state, c.meta)

	code, err := c.submitter.Submit(ctx, &sub)
	if err != nil {
		c.opts.Logger.Warn("Submit failed; generating local code",
			"worker_id", sub.WorkerID,
			"session_id", sub.SessionID,
			"error", err)
	}
	if code == "" {
		code = FallbackCode(sub.WorkerID, c.state.StartedAtMs())
	}
	c.code = code
	c.opts.Logger.Info("Session finished",
		"worker_id", sub.WorkerID,
		"session_id", sub.SessionID,
		"responses", len(sub.Trials),
		"exit_early", sub.ExitEarly)
}

// View renders the current state with completion details.
func (c *Controller) View() View {
	v := c.state.View(c.opts.Clock())
	if c.state.Phase == PhaseDone {
		v.SurveyCode = c.code
		v.SurveyURL = SurveyLink(c.opts.SurveyURL, c.opts.Prefill, c.state.Participant.Uniqname, c.code)
	}
	return v
}
