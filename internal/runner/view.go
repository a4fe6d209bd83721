package runner

import (
	"fmt"
	"strings"

	"github.com/ashureev/memelab/internal/domain"
	"github.com/ashureev/memelab/internal/session"
	"github.com/charmbracelet/lipgloss"
)

var sentimentKeys = []struct {
	key   string
	value domain.Sentiment
	label string
}{
	{"A", domain.SentimentNegative, "Negative"},
	{"B", domain.SentimentNeutral, "Neutral"},
	{"C", domain.SentimentPositive, "Positive"},
	{"D", domain.SentimentUnsure, "Unsure"},
}

// View implements tea.Model.
func (m Model) View() string {
	v := m.state.View(m.opts.Clock())

	var body string
	switch m.state.Phase {
	case session.PhaseIntro:
		body = m.viewIntro(v)
	case session.PhaseTask:
		body = m.viewTask(v)
	default:
		body = m.viewDone()
	}

	if m.errMsg != "" {
		body += "\n\n" + m.styles.Error.Render(m.errMsg)
	}
	return m.styles.Card.Render(body) + "\n"
}

func (m Model) viewIntro(v session.View) string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Meme Sentiment Study"))
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Body.Render(fmt.Sprintf(
		"You will label up to %d memes: pick a sentiment and how confident you are.", m.state.Participant.N)))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("Choose Unsure when you cannot tell, then explain why. Skip broken images."))
	if v.WithAI {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Muted.Render("An AI suggestion is available on each trial (press i). Using it is optional."))
	}
	sb.WriteString("\n\nUM uniqname\n")
	sb.WriteString(m.uniq.View())
	sb.WriteString("\n\n")
	if m.busy {
		sb.WriteString(m.spinner.View() + " Loading trials…")
	} else {
		sb.WriteString(m.styles.Help.Render("enter start • ctrl+c quit"))
	}
	return sb.String()
}

func (m Model) viewTask(v session.View) string {
	s := m.styles
	var sb strings.Builder

	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		s.Title.Render(v.Counter), "   ", s.Muted.Render(v.Elapsed)))
	sb.WriteString("\n\n")

	sb.WriteString(s.Muted.Render("Image: "))
	sb.WriteString(s.Body.Render(v.ImgURL))
	sb.WriteString("  ")
	switch {
	case v.ImageFailed:
		sb.WriteString(s.Error.Render("failed to load, press s to skip"))
	case m.state.Draft.Image == session.ImageLoaded:
		sb.WriteString(s.Selected.Render("loaded"))
	default:
		sb.WriteString(s.Muted.Render("loading…"))
	}
	sb.WriteString("\n")
	sb.WriteString(s.Muted.Render("Overlaid text: "))
	sb.WriteString(s.Body.Render(v.MemeText))
	sb.WriteString("\n\n")

	if v.WithAI {
		if v.AIVisible {
			sb.WriteString(m.viewAI(v))
		} else {
			sb.WriteString(s.Muted.Render("[i] Show AI suggestion"))
		}
		sb.WriteString("\n\n")
	}

	sb.WriteString("Sentiment  ")
	for _, opt := range sentimentKeys {
		label := fmt.Sprintf("[%s] %s", opt.key, opt.label)
		if string(opt.value) == v.Sentiment {
			sb.WriteString(s.Selected.Render(label))
		} else {
			sb.WriteString(s.Body.Render(label))
		}
		sb.WriteString("  ")
	}
	sb.WriteString("\n")

	sb.WriteString("Confidence ")
	for c := 1; c <= 5; c++ {
		label := fmt.Sprintf("[%d]", c)
		switch {
		case !v.ConfidenceEnabled:
			sb.WriteString(s.Disabled.Render(label))
		case c == v.Confidence:
			sb.WriteString(s.Selected.Render(label))
		default:
			sb.WriteString(s.Body.Render(label))
		}
		sb.WriteString(" ")
	}
	sb.WriteString("\n\n")

	sb.WriteString(s.Muted.Render("Reasoning [r]"))
	sb.WriteString("\n")
	sb.WriteString(m.reason.View())
	sb.WriteString("\n\n")

	switch m.confirm {
	case confirmSkip:
		sb.WriteString(s.Error.Render("The image appears to have loaded. Skip anyway? (y/n)"))
	case confirmExit:
		sb.WriteString(s.Error.Render("Exit & submit now? Your progress so far will be saved. (y/n)"))
	default:
		next := "enter next"
		if !v.NextEnabled {
			next = s.Disabled.Render(next)
		}
		help := []string{"a-d sentiment", "1-5 confidence", next, "s skip", "x exit", "t theme"}
		if v.WithAI {
			help = append(help, "i AI", "h helpful")
		}
		if m.reason.Focused() {
			help = []string{"esc leave reasoning"}
		}
		sb.WriteString(s.Help.Render(strings.Join(help, " • ")))
	}
	return sb.String()
}

func (m Model) viewAI(v session.View) string {
	s := m.styles
	var sb strings.Builder
	sb.WriteString(s.Title.Render("AI suggestion"))
	sb.WriteString("\n")
	if len(v.TopK) == 0 {
		sb.WriteString(s.Muted.Render(v.TopKPlaceholder))
		sb.WriteString("\n")
	}
	for _, row := range v.TopK {
		sb.WriteString(fmt.Sprintf("%-10s %s\n", row.Label, row.Percent))
	}
	sb.WriteString(s.Muted.Render("Rationale: " + v.Rationale))
	sb.WriteString("\n")
	helpful := v.AIHelpful
	if helpful == "" {
		helpful = "—"
	}
	sb.WriteString(s.Muted.Render("Helpful [h]: ") + s.Body.Render(helpful))
	return s.AIPanel.Render(sb.String())
}

func (m Model) viewDone() string {
	s := m.styles
	var sb strings.Builder
	sb.WriteString(s.Title.Render("Thank you!"))
	sb.WriteString("\n\n")
	if m.busy {
		sb.WriteString(m.spinner.View() + " Submitting…")
		return sb.String()
	}
	sb.WriteString("Your survey code: ")
	sb.WriteString(s.Code.Render(m.code))
	sb.WriteString("\n\n")
	if link := m.surveyLink(); link != "" {
		sb.WriteString("Survey: " + link)
		sb.WriteString("\n\n")
	}
	sb.WriteString(s.Help.Render("q quit • t theme"))
	return sb.String()
}
