package exports

import (
	"time"
)

// RunStatus is the outcome of one execution.
type RunStatus string

const (
	RunSucceeded          RunStatus = "succeeded"
	RunPartiallySucceeded RunStatus = "partially_succeeded"
	RunFailed             RunStatus = "failed"
)

// Issue kinds recorded in run history.
const (
	IssueResolution = "resolution"
	IssueFetch      = "fetch"
	IssueRender     = "render"
	IssueDelivery   = "delivery"
	IssueBilling    = "billing"
	IssueArchive    = "archive"
	IssueInternal   = "internal"
)

// Issue is one recorded problem of a run.
type Issue struct {
	Kind    string `json:"kind"`
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message"`
}

// ChannelOutcome summarizes delivery on one channel.
type ChannelOutcome struct {
	Channel   string `json:"channel"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// RunRecord is the history entry of one execution.
type RunRecord struct {
	ID               string
	ScheduleID       string
	StartedAt        time.Time
	FinishedAt       time.Time
	Status           RunStatus
	ArtifactFilename string
	ArtifactLink     string
	Deliveries       []ChannelOutcome
	Issues           []Issue
}

// AddIssue appends an issue.
func (r *RunRecord) AddIssue(kind, ref, message string) {
	r.Issues = append(r.Issues, Issue{Kind: kind, Ref: ref, Message: message})
}

// DeliveryStatus derives the run status from channel outcomes: succeeded when
// every attempted send went through, partially succeeded when some did,
// failed when none did.
func DeliveryStatus(outcomes []ChannelOutcome) RunStatus {
	var succeeded, failed int
	for _, outcome := range outcomes {
		succeeded += outcome.Succeeded
		failed += outcome.Failed
		if outcome.Error != "" {
			failed++
		}
	}
	switch {
	case succeeded == 0:
		return RunFailed
	case failed > 0:
		return RunPartiallySucceeded
	default:
		return RunSucceeded
	}
}
