package domain

import "strings"

const (
	DefaultWorkerID     = "local-worker"
	DefaultAssignmentID = "local-assignment"
	DefaultTrialCount   = 12
)

// Participant identifies who is taking the session and under which arm.
type Participant struct {
	WorkerID     string    `json:"workerId"`
	AssignmentID string    `json:"assignmentId"`
	Condition    Condition `json:"condition"`
	N            int       `json:"n"`
	Uniqname     string    `json:"uniqname,omitempty"`
	SessionID    string    `json:"sessionId,omitempty"`
}

// WithDefaults fills unset identity fields the same way the query-string
// defaults do.
func (p Participant) WithDefaults() Participant {
	if strings.TrimSpace(p.WorkerID) == "" {
		p.WorkerID = DefaultWorkerID
	}
	if strings.TrimSpace(p.AssignmentID) == "" {
		p.AssignmentID = DefaultAssignmentID
	}
	if p.Condition != ConditionWithAI {
		p.Condition = ConditionBaseline
	}
	if p.N <= 0 {
		p.N = DefaultTrialCount
	}
	p.Uniqname = strings.TrimSpace(p.Uniqname)
	return p
}
