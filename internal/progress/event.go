package progress

import "time"

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type AgentStatus string

const (
	AgentRunning AgentStatus = "running"
	AgentDone    AgentStatus = "done"
	AgentBlocked AgentStatus = "blocked"
)

const EventTypeAgentStatus = "agent_status"

type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Stage   string `json:"stage,omitempty"`
	Percent int    `json:"percent,omitempty"`
}

// Event is one line of the NDJSON progress stream. Consumers must ignore unknown fields.
type Event struct {
	StepID      int         `json:"step_id"`
	Message     string      `json:"message"`
	Status      Status      `json:"status"`
	Progress    *Progress   `json:"progress,omitempty"`
	EventType   string      `json:"event_type,omitempty"`
	AgentID     string      `json:"agent_id,omitempty"`
	AgentStatus AgentStatus `json:"agent_status,omitempty"`
	RunID       string      `json:"run_id,omitempty"`
	Data        any         `json:"data,omitempty"`
	Seq         int         `json:"seq"`
	At          time.Time   `json:"at"`
}

func (e Event) IsAgent() bool { return e.EventType == EventTypeAgentStatus }

// Terminal reports whether the event ends a run.
func (e Event) Terminal() bool {
	if e.IsAgent() {
		return false
	}
	return (e.StepID == FinalStep && e.Status == StatusCompleted) || e.StepID == FailedStep
}

const (
	FinalStep = 7
	// FailedStep marks the run-level failure event emitted when a run aborts.
	FailedStep = -1
)
