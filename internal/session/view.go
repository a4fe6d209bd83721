package session

import (
	"fmt"
	"time"

	"github.com/ashureev/memelab/internal/domain"
)

const (
	noMemeText  = "(no overlaid text)"
	noAIScores  = "(no AI scores available)"
	noRationale = "—"
)

// ScoreRow is one rendered line of the suggestion panel.
type ScoreRow struct {
	Label   string `json:"label"`
	Percent string `json:"percent"`
}

// View is a render-ready snapshot of a session. Front-ends draw it as-is.
type View struct {
	Phase             string     `json:"phase"`
	Condition         string     `json:"condition"`
	TrialCount        int        `json:"trial_count"`
	Counter           string     `json:"counter,omitempty"`
	ImgURL            string     `json:"img_url,omitempty"`
	MemeText          string     `json:"meme_text,omitempty"`
	WithAI            bool       `json:"with_ai"`
	AIVisible         bool       `json:"ai_visible"`
	TopK              []ScoreRow `json:"topk,omitempty"`
	TopKPlaceholder   string     `json:"topk_placeholder,omitempty"`
	Rationale         string     `json:"rationale,omitempty"`
	AIHelpful         string     `json:"ai_helpful,omitempty"`
	Sentiment         string     `json:"sentiment,omitempty"`
	Confidence        int        `json:"confidence,omitempty"`
	ConfidenceEnabled bool       `json:"confidence_enabled"`
	Reason            string     `json:"reason"`
	ImageFailed       bool       `json:"image_failed"`
	NextEnabled       bool       `json:"next_enabled"`
	SkipEnabled       bool       `json:"skip_enabled"`
	Responses         int        `json:"responses"`
	Elapsed           string     `json:"elapsed"`
	ExitEarly         bool       `json:"exit_early"`
	Uniqname          string     `json:"uniqname,omitempty"`
	SurveyCode        string     `json:"survey_code,omitempty"`
	SurveyURL         string     `json:"survey_url,omitempty"`
}

// View renders the state at now.
func (s State) View(now time.Time) View {
	v := View{
		Phase:             s.Phase.String(),
		Condition:         string(s.Participant.Condition),
		TrialCount:        s.Participant.N,
		WithAI:            s.Participant.Condition.WithAI(),
		ConfidenceEnabled: true,
		Responses:         len(s.Log),
		Elapsed:           FormatElapsed(s.Elapsed(now)),
		ExitEarly:         s.ExitEarly,
		Uniqname:          s.Participant.Uniqname,
	}
	if s.Phase != PhaseIntro {
		v.TrialCount = len(s.Trials)
	}

	t, ok := s.Current()
	if !ok {
		return v
	}
	d := s.Draft
	v.Counter = fmt.Sprintf("Trial %d of %d", s.Index+1, len(s.Trials))
	v.ImgURL = t.ImgURL
	v.MemeText = t.MemeText
	if v.MemeText == "" {
		v.MemeText = noMemeText
	}
	v.Sentiment = string(d.Sentiment)
	v.Confidence = d.Confidence
	v.ConfidenceEnabled = d.ConfidenceEnabled()
	v.Reason = d.Reason
	v.ImageFailed = d.Image == ImageFailed
	v.NextEnabled = CanAdvance(d)
	v.SkipEnabled = d.Image == ImageFailed

	if v.WithAI {
		v.AIVisible = d.AIVisible
		v.AIHelpful = d.AIHelpful
		v.TopK = scoreRows(t.TopK())
		if len(v.TopK) == 0 {
			v.TopKPlaceholder = noAIScores
		}
		v.Rationale = t.Rationale()
		if v.Rationale == "" {
			v.Rationale = noRationale
		}
	}
	return v
}

func scoreRows(scores []domain.Score) []ScoreRow {
	if len(scores) == 0 {
		return nil
	}
	rows := make([]ScoreRow, 0, len(scores))
	for _, sc := range scores {
		rows = append(rows, ScoreRow{Label: sc.Label, Percent: sc.Percent()})
	}
	return rows
}

// BuildSubmission packages the session for POST /submit.
func BuildSubmission(s State, meta domain.ClientMeta) domain.Submission {
	sub := domain.Submission{
		SessionID:    s.Participant.SessionID,
		WorkerID:     s.Participant.WorkerID,
		AssignmentID: s.Participant.AssignmentID,
		Condition:    s.Participant.Condition,
		ExitEarly:    s.ExitEarly,
		ClientMeta:   meta,
		Trials:       make([]domain.Response, len(s.Log)),
	}
	copy(sub.Trials, s.Log)
	if !s.EndedAt.IsZero() {
		sub.EndedAt = s.EndedAt.UnixMilli()
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt.UnixMilli()
		sub.StartedAt = &started
		if sub.EndedAt != 0 {
			total := sub.EndedAt - started
			sub.TotalMs = &total
		}
	}
	if s.Participant.Uniqname != "" {
		uniq := s.Participant.Uniqname
		sub.Uniqname = &uniq
	}
	return sub
}
