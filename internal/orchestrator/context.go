package orchestrator

import (
	"analytics-orchestrator/internal/capability"
	"analytics-orchestrator/internal/models"
)

// DecisionContext is everything the oracle sees for one iteration: the query,
// the current entity resolutions with their ambiguity intact, the capability
// catalogue, and the results accumulated so far.
type DecisionContext struct {
	SessionID string `json:"sessionId"`
	TenantID  string `json:"tenantId"`
	Query     string `json:"query"`

	Entities []EntitySummary `json:"entities"`
	Concepts []string        `json:"concepts,omitempty"`

	Capabilities []capability.Descriptor `json:"capabilities"`

	CompletedTasks []TaskSummary `json:"completedTasks"`

	LoopCount int `json:"loopCount"`
	MaxLoops  int `json:"maxLoops"`
}

// EntitySummary presents one resolved entity to the oracle. Every surviving
// candidate is listed so the oracle can pick, hedge, or ask.
type EntitySummary struct {
	RefID      string             `json:"refId"`
	Text       string             `json:"text"`
	Type       string             `json:"type"`
	Status     string             `json:"status"`
	Candidates []CandidateSummary `json:"candidates,omitempty"`
}

type CandidateSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Confidence     float64 `json:"confidence"`
	Disambiguation string  `json:"disambiguation"`
}

// TaskSummary presents one prior task result to the oracle. Output payloads
// are passed through whole; the oracle references them by task id rather than
// inlining them into later inputs.
type TaskSummary struct {
	TaskID     string                 `json:"taskId"`
	Capability string                 `json:"capability"`
	Success    bool                   `json:"success"`
	ErrorCode  string                 `json:"errorCode,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Output     map[string]interface{} `json:"output,omitempty"`
}

// BuildDecisionContext assembles the oracle's view from the session state and
// the registry catalogue.
func BuildDecisionContext(state *models.SessionState, descriptors []capability.Descriptor, maxLoops int) DecisionContext {
	dc := DecisionContext{
		SessionID:    state.SessionID,
		TenantID:     state.TenantID,
		Query:        state.Frame.Query,
		Concepts:     state.Frame.Concepts,
		Capabilities: descriptors,
		LoopCount:    state.LoopCount,
		MaxLoops:     maxLoops,
	}

	dc.Entities = make([]EntitySummary, 0, len(state.Resolved))
	for _, resolved := range state.Resolved {
		summary := EntitySummary{
			RefID:  resolved.Ref.ID,
			Text:   resolved.Ref.Text,
			Type:   resolved.Ref.Type,
			Status: string(resolved.Status),
		}
		for _, c := range resolved.Candidates {
			summary.Candidates = append(summary.Candidates, CandidateSummary{
				ID:             c.ID,
				Name:           c.Name,
				Type:           c.Type,
				Confidence:     c.Confidence,
				Disambiguation: c.Disambiguation,
			})
		}
		dc.Entities = append(dc.Entities, summary)
	}

	results := state.Results()
	dc.CompletedTasks = make([]TaskSummary, 0, len(results))
	for _, r := range results {
		dc.CompletedTasks = append(dc.CompletedTasks, TaskSummary{
			TaskID:     r.TaskID,
			Capability: r.Capability,
			Success:    r.Success,
			ErrorCode:  r.ErrorCode,
			Error:      r.Error,
			Output:     r.Output,
		})
	}

	return dc
}
