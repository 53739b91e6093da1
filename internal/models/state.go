package models

import "fmt"

// SessionState is the complete mutable state of one orchestration run.
// Exactly one orchestration loop may hold and mutate a given SessionState at
// a time; it is never shared across concurrent loops.
type SessionState struct {
	SessionID string
	TenantID  string

	Frame    Frame
	Resolved []ResolvedEntity

	results     []TaskResult
	resultIndex map[string]int

	LoopCount int
	Final     *FinalResponse
}

// NewSessionState creates the state for one run over an extracted frame.
func NewSessionState(sessionID, tenantID string, frame Frame) *SessionState {
	return &SessionState{
		SessionID:   sessionID,
		TenantID:    tenantID,
		Frame:       frame,
		resultIndex: make(map[string]int),
	}
}

// AddResult appends a task result in dispatch order.
func (s *SessionState) AddResult(result TaskResult) {
	if s.resultIndex == nil {
		s.resultIndex = make(map[string]int)
	}
	s.resultIndex[result.TaskID] = len(s.results)
	s.results = append(s.results, result)
}

// ResultByID returns the result recorded for a task id.
func (s *SessionState) ResultByID(taskID string) (TaskResult, bool) {
	idx, ok := s.resultIndex[taskID]
	if !ok {
		return TaskResult{}, false
	}
	return s.results[idx], true
}

// Results returns all recorded task results in dispatch order. The returned
// slice is a copy; the state retains ownership of the underlying results.
func (s *SessionState) Results() []TaskResult {
	out := make([]TaskResult, len(s.results))
	copy(out, s.results)
	return out
}

// ResultCount returns the number of recorded task results.
func (s *SessionState) ResultCount() int {
	return len(s.results)
}

// NextTaskID mints the sequential id for the next dispatched task.
func (s *SessionState) NextTaskID() string {
	return fmt.Sprintf("t%d", len(s.results)+1)
}

// ResolvedEntity returns the resolution recorded for an entity reference id.
func (s *SessionState) ResolvedEntity(refID string) (ResolvedEntity, bool) {
	for _, r := range s.Resolved {
		if r.Ref.ID == refID {
			return r, true
		}
	}
	return ResolvedEntity{}, false
}

// SetResolvedEntity records or replaces the resolution for an entity
// reference.
func (s *SessionState) SetResolvedEntity(resolved ResolvedEntity) {
	for i, r := range s.Resolved {
		if r.Ref.ID == resolved.Ref.ID {
			s.Resolved[i] = resolved
			return
		}
	}
	s.Resolved = append(s.Resolved, resolved)
}

// IsComplete reports whether a final response has been set.
func (s *SessionState) IsComplete() bool {
	return s.Final != nil
}
