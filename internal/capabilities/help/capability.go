// Package help answers "what can you do" by rendering the live registry.
package help

import (
	"context"

	"analytics-orchestrator/internal/capability"
)

const Name = "help"

type Capability struct {
	registry *capability.Registry
}

func New(registry *capability.Registry) *Capability {
	return &Capability{registry: registry}
}

func (c *Capability) Describe() capability.Descriptor {
	return capability.Descriptor{
		Name:     Name,
		Category: "conversation",
		Purpose:  "List the assistant's capabilities grouped by category",
		InputSchema: map[string]interface{}{
			"type": "object",
		},
		OutputShape: map[string]interface{}{
			"text": "string",
		},
		Examples: []string{
			"what can you do",
			"help",
		},
	}
}

func (c *Capability) Execute(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{
		"text": c.registry.HelpText(),
	}, nil
}
