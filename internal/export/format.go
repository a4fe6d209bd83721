// Package export renders stored submissions in the study's data formats:
// a JSON line per submission, a flat submissions CSV and a survey code CSV.
package export

import (
	"strconv"
	"time"

	"github.com/ashureev/memelab/internal/domain"
)

// File names shared by the download archive and the on-disk journal.
const (
	SubmissionsJSONL = "submissions.jsonl"
	SubmissionsCSV   = "submissions.csv"
	CodesCSV         = "codes.csv"
)

const timeLayout = "2006-01-02T15:04:05.000000"

var (
	SubmissionsHeader = []string{
		"timestamp", "workerId", "assignmentId", "condition",
		"startedAt", "endedAt", "duration_ms", "exit_early", "num_trials", "uniqname",
	}
	CodesHeader = []string{"timestamp", "survey_code", "uniqname", "workerId", "assignmentId", "startedAt"}
)

// Line is one submissions.jsonl record: the submission body plus what the
// server added on receipt.
type Line struct {
	Timestamp  string `json:"timestamp"`
	SurveyCode string `json:"survey_code"`
	DurationMs *int64 `json:"duration_ms,omitempty"`
	domain.Submission
}

// NewLine builds the JSON line for rec.
func NewLine(rec *domain.SubmissionRecord) Line {
	return Line{
		Timestamp:  stamp(rec.ReceivedAt),
		SurveyCode: rec.SurveyCode,
		DurationMs: rec.DurationMs,
		Submission: rec.Submission,
	}
}

// SubmissionRow is rec's row in submissions.csv.
func SubmissionRow(rec *domain.SubmissionRecord) []string {
	s := rec.Submission
	return []string{
		stamp(rec.ReceivedAt),
		s.WorkerID,
		s.AssignmentID,
		string(s.Condition),
		optInt(s.StartedAt),
		strconv.FormatInt(s.EndedAt, 10),
		optInt(rec.DurationMs),
		strconv.FormatBool(s.ExitEarly),
		strconv.Itoa(len(s.Trials)),
		optString(s.Uniqname),
	}
}

// CodeRow is rec's row in codes.csv.
func CodeRow(rec *domain.SubmissionRecord) []string {
	s := rec.Submission
	return []string{
		stamp(rec.ReceivedAt),
		rec.SurveyCode,
		optString(s.Uniqname),
		s.WorkerID,
		s.AssignmentID,
		optInt(s.StartedAt),
	}
}

func stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
