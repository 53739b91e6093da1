// Package capability defines the contract every dispatchable capability
// implements and the registry the orchestrator looks them up in.
package capability

import "context"

// Descriptor is a capability's self-description. Purpose and Examples feed
// the decision prompt; InputSchema is a JSON Schema validated against task
// input before dispatch.
type Descriptor struct {
	Name        string                 `json:"name"`
	Category    string                 `json:"category"`
	Purpose     string                 `json:"purpose"`
	InputSchema map[string]interface{} `json:"inputSchema"`
	OutputShape map[string]interface{} `json:"outputShape"`
	Examples    []string               `json:"examples,omitempty"`
}

// Capability is a unit of work the orchestrator can dispatch. Execute
// receives the task input with all task references already substituted and
// returns the output payload stored on the task result.
type Capability interface {
	Describe() Descriptor
	Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}
