package domain

import "time"

// Response is the log record for one visited trial. The ai_* fields are
// null under the baseline arm.
type Response struct {
	TrialID       TrialID   `json:"trial_id"`
	Order         int       `json:"order"`
	ImgURL        *string   `json:"img_url"`
	MemeText      *string   `json:"meme_text"`
	Chosen        *string   `json:"chosen"`
	Confidence    *int      `json:"confidence"`
	Reasoning     *string   `json:"reasoning"`
	RTMs          int64     `json:"rt_ms"`
	Skipped       bool      `json:"skipped"`
	LoadError     bool      `json:"load_error"`
	Condition     Condition `json:"condition"`
	AIOpened      *bool     `json:"ai_opened"`
	AIOpenCount   *int      `json:"ai_open_count"`
	AIFirstOpenMs *int64    `json:"ai_first_open_ms"`
	AISeenTopK    *string   `json:"ai_seen_topk"`
	AIHelpful     *string   `json:"ai_helpful"`
	Timestamp     string    `json:"timestamp"`
}

// Viewport is the participant's window size.
type Viewport struct {
	W int `json:"w"`
	H int `json:"h"`
}

// ClientMeta describes the participant's environment.
type ClientMeta struct {
	UserAgent string   `json:"userAgent"`
	TZ        *string  `json:"tz"`
	Lang      *string  `json:"lang"`
	Viewport  Viewport `json:"viewport"`
}

// Submission is the POST /submit body.
type Submission struct {
	SessionID    string     `json:"sessionId,omitempty"`
	WorkerID     string     `json:"workerId"`
	AssignmentID string     `json:"assignmentId"`
	Condition    Condition  `json:"condition"`
	StartedAt    *int64     `json:"startedAt"`
	EndedAt      int64      `json:"endedAt"`
	TotalMs      *int64     `json:"total_ms"`
	ExitEarly    bool       `json:"exit_early"`
	Uniqname     *string    `json:"uniqname"`
	ClientMeta   ClientMeta `json:"clientMeta"`
	Trials       []Response `json:"trials"`
}

// DurationMs prefers the client's total_ms and falls back to endedAt-startedAt.
func (s *Submission) DurationMs() *int64 {
	if s.TotalMs != nil {
		v := *s.TotalMs
		return &v
	}
	if s.StartedAt != nil && s.EndedAt != 0 {
		v := s.EndedAt - *s.StartedAt
		return &v
	}
	return nil
}

// SubmissionRecord is a stored submission as the server saw it.
type SubmissionRecord struct {
	ID         int64
	ReceivedAt time.Time
	SurveyCode string
	DurationMs *int64
	Submission Submission
}
