package models

import (
	"fmt"
	"time"
)

// DecisionAction is the action the decision oracle asks the loop to take.
type DecisionAction string

const (
	ActionExecute  DecisionAction = "execute"
	ActionComplete DecisionAction = "complete"
)

// Task is one unit of work handed to a capability during one orchestration
// iteration. Never mutated after creation.
type Task struct {
	ID              string                 `json:"id"`
	Capability      string                 `json:"capability"`
	Input           map[string]interface{} `json:"input"`
	EntitySelection map[string][]string    `json:"entitySelection,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
}

// TaskResult is the outcome of executing a Task. Owned by the session state;
// later tasks reference it through placeholders, never copy it.
type TaskResult struct {
	TaskID     string                 `json:"taskId"`
	Capability string                 `json:"capability"`
	Success    bool                   `json:"success"`
	Output     map[string]interface{} `json:"output,omitempty"`
	Error      string                 `json:"error,omitempty"`
	ErrorCode  string                 `json:"errorCode,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Decision is the oracle's answer for one iteration: exactly one of
// "execute a capability" or "complete with a response".
type Decision struct {
	Action          DecisionAction         `json:"action"`
	Capability      string                 `json:"capability,omitempty"`
	Input           map[string]interface{} `json:"input,omitempty"`
	EntitySelection map[string][]string    `json:"entitySelection,omitempty"`
	ResponseText    string                 `json:"responseText,omitempty"`
	Assumptions     []string               `json:"assumptions,omitempty"`
}

// Validate enforces the decision shape for each action.
func (d Decision) Validate() error {
	switch d.Action {
	case ActionExecute:
		if d.Capability == "" {
			return fmt.Errorf("execute decision missing capability name")
		}
	case ActionComplete:
		if d.ResponseText == "" {
			return fmt.Errorf("complete decision missing response text")
		}
	default:
		return fmt.Errorf("unknown decision action %q", d.Action)
	}
	return nil
}

// FinalResponse is the state snapshot exposed to callers when a session
// halts. Partial marks ceiling breaches and cancellations; Err is set only
// for unrecoverable infrastructure faults.
type FinalResponse struct {
	ResponseText   string       `json:"responseText"`
	Assumptions    []string     `json:"assumptions"`
	Partial        bool         `json:"partial"`
	CompletedTasks []TaskResult `json:"completedTasks"`
	Err            string       `json:"error,omitempty"`
}
