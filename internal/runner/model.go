package runner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/memelab/internal/domain"
	"github.com/ashureev/memelab/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const requestTimeout = 45 * time.Second

// Backend is what the runner needs from the study server.
type Backend interface {
	session.TrialSource
	session.Submitter
	ProbeImage(ctx context.Context, imgURL string) error
}

// Options configures a Model.
type Options struct {
	Participant domain.Participant
	Prefs       Prefs
	PrefsPath   string
	SurveyURL   string
	Prefill     session.Prefill
	Meta        domain.ClientMeta
	Clock       func() time.Time
}

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmSkip
	confirmExit
)

type (
	trialsLoadedMsg struct {
		trials []domain.Trial
		err    error
	}
	imageProbedMsg struct {
		index int
		err   error
	}
	submittedMsg struct {
		code string
		err  error
	}
	prefsSavedMsg struct{ err error }
	tickMsg       time.Time
)

var helpfulCycle = []string{"yes", "somewhat", "no"}

// Model is the bubbletea model of one session.
type Model struct {
	state   session.State
	backend Backend
	opts    Options

	uniq    textinput.Model
	reason  textarea.Model
	spinner spinner.Model
	styles  Styles

	busy    bool
	confirm confirmKind
	errMsg  string
	code    string
	width   int
	height  int
}

// New creates a model on the intro screen.
func New(backend Backend, opts Options) Model {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	styles := NewStyles(ThemeByName(opts.Prefs.Theme))

	ti := textinput.New()
	ti.Placeholder = "uniqname"
	ti.Prompt = "› "
	ti.CharLimit = 64
	ti.Width = 32
	ti.SetValue(opts.Participant.Uniqname)
	ti.Focus()

	ta := textarea.New()
	ta.Placeholder = "Why? (required for Unsure)"
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(60)
	ta.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Muted

	return Model{
		state:   session.New(opts.Participant),
		backend: backend,
		opts:    opts,
		uniq:    ti,
		reason:  ta,
		spinner: sp,
		styles:  styles,
	}
}

// State returns the session state.
func (m Model) State() session.State {
	return m.state
}

// SurveyCode returns the completion code once the session is done.
func (m Model) SurveyCode() string {
	return m.code
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.state.Phase {
		case session.PhaseIntro:
			return m.updateIntro(msg)
		case session.PhaseTask:
			return m.updateTask(msg)
		default:
			return m.updateDone(msg)
		}

	case trialsLoadedMsg:
		return m.onTrialsLoaded(msg)

	case imageProbedMsg:
		if m.state.Phase != session.PhaseTask || msg.index != m.state.Index {
			return m, nil
		}
		if msg.err != nil {
			slog.Info("Image failed to load", "index", msg.index, "error", msg.err)
			m.state, _ = m.state.ImageFailed()
		} else {
			m.state, _ = m.state.ImageLoaded()
		}
		return m, nil

	case submittedMsg:
		m.busy = false
		m.code = msg.code
		if msg.err != nil || m.code == "" {
			slog.Warn("Submit failed; generating local code", "error", msg.err)
			m.code = session.FallbackCode(m.state.Participant.WorkerID, m.state.StartedAtMs())
		}
		return m, nil

	case prefsSavedMsg:
		if msg.err != nil {
			slog.Warn("Failed to save preferences", "error", msg.err)
		}
		return m, nil

	case tickMsg:
		if m.state.Phase == session.PhaseTask {
			return m, tick()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateIntro(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if msg.Type == tea.KeyEnter {
		next, err := m.state.SetUniqname(m.uniq.Value())
		if err == nil && next.Participant.Uniqname == "" {
			err = session.ErrUniqnameRequired
		}
		if err != nil {
			m.errMsg = "Please enter your UM uniqname."
			return m, nil
		}
		m.state = next
		m.errMsg = ""
		m.busy = true
		return m, m.fetchTrials()
	}

	var cmd tea.Cmd
	m.uniq, cmd = m.uniq.Update(msg)
	return m, cmd
}

func (m Model) onTrialsLoaded(msg trialsLoadedMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.errMsg = "Failed to load trials: " + msg.err.Error()
		return m, nil
	}
	next, err := m.state.Begin(msg.trials, m.opts.Clock())
	if err != nil {
		m.errMsg = err.Error()
		return m, nil
	}
	m.state = next
	m.errMsg = ""
	m.uniq.Blur()
	return m, tea.Batch(m.probeImage(), tick())
}

func (m Model) updateTask(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.reason.Focused() {
		if msg.Type == tea.KeyEsc {
			m.reason.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.reason, cmd = m.reason.Update(msg)
		m.state, _ = m.state.SetReason(m.reason.Value())
		return m, cmd
	}

	if m.confirm != confirmNone {
		return m.updateConfirm(msg)
	}

	now := m.opts.Clock()
	key := msg.String()
	m.errMsg = ""

	var next session.State
	var err error
	switch key {
	case "i":
		next, err = m.state.ToggleAI(now)
	case "h":
		next, err = m.state.SetAIHelpful(nextHelpful(m.state.Draft.AIHelpful))
	case "s":
		next, err = m.state.Skip(false, now)
		if errors.Is(err, session.ErrSkipNeedsConfirmation) {
			m.confirm = confirmSkip
			return m, nil
		}
	case "x":
		m.confirm = confirmExit
		return m, nil
	case "t":
		return m.toggleTheme()
	case "r":
		return m, m.reason.Focus()
	default:
		next, err = m.state.HandleKey(key, now)
	}
	if err != nil {
		m.errMsg = err.Error()
		return m, nil
	}
	return m.apply(next)
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kind := m.confirm
	switch strings.ToLower(msg.String()) {
	case "y":
		m.confirm = confirmNone
		now := m.opts.Clock()
		var next session.State
		var err error
		if kind == confirmSkip {
			next, err = m.state.Skip(true, now)
		} else {
			next, err = m.state.Exit(now)
		}
		if err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		return m.apply(next)
	case "n", "esc":
		m.confirm = confirmNone
	}
	return m, nil
}

// apply installs a new state and schedules the I/O the change calls for.
func (m Model) apply(next session.State) (tea.Model, tea.Cmd) {
	prev := m.state
	m.state = next

	if next.Phase == session.PhaseDone && prev.Phase != session.PhaseDone {
		m.reason.Blur()
		m.busy = true
		return m, tea.Batch(m.submit(), m.spinner.Tick)
	}
	if next.Index != prev.Index {
		m.reason.Reset()
		return m, m.probeImage()
	}
	return m, nil
}

func (m Model) updateDone(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "t":
		return m.toggleTheme()
	case "q", "enter", "esc":
		if m.busy {
			return m, nil
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) toggleTheme() (tea.Model, tea.Cmd) {
	if m.opts.Prefs.Theme == ThemeLight {
		m.opts.Prefs.Theme = ThemeDark
	} else {
		m.opts.Prefs.Theme = ThemeLight
	}
	m.styles = NewStyles(ThemeByName(m.opts.Prefs.Theme))
	m.spinner.Style = m.styles.Muted

	if m.opts.PrefsPath == "" {
		return m, nil
	}
	prefs, path := m.opts.Prefs, m.opts.PrefsPath
	return m, func() tea.Msg {
		return prefsSavedMsg{err: prefs.Save(path)}
	}
}

func nextHelpful(current string) string {
	for i, v := range helpfulCycle {
		if v == current {
			return helpfulCycle[(i+1)%len(helpfulCycle)]
		}
	}
	return helpfulCycle[0]
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetchTrials() tea.Cmd {
	backend, p := m.backend, m.state.Participant
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		trials, err := backend.FetchTrials(ctx, p)
		return trialsLoadedMsg{trials: trials, err: err}
	}
}

func (m Model) probeImage() tea.Cmd {
	trial, ok := m.state.Current()
	if !ok {
		return nil
	}
	backend, index := m.backend, m.state.Index
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return imageProbedMsg{index: index, err: backend.ProbeImage(ctx, trial.ImgURL)}
	}
}

func (m Model) submit() tea.Cmd {
	backend := m.backend
	meta := m.opts.Meta
	if m.width > 0 && m.height > 0 {
		meta.Viewport = domain.Viewport{W: m.width, H: m.height}
	}
	sub := session.BuildSubmission(m.state, meta)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		code, err := backend.Submit(ctx, &sub)
		return submittedMsg{code: code, err: err}
	}
}

func (m Model) surveyLink() string {
	return session.SurveyLink(m.opts.SurveyURL, m.opts.Prefill, m.state.Participant.Uniqname, m.code)
}
