// Package catalogue serializes the capability registry to a versioned JSON
// document so external tools can inspect what a deployment offers.
package catalogue

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"analytics-orchestrator/internal/capability"
)

type Catalogue struct {
	Version      string                  `json:"version"`
	LastUpdated  string                  `json:"lastUpdated"`
	Capabilities []capability.Descriptor `json:"capabilities"`
}

// FromRegistry snapshots the registry into a catalogue document.
func FromRegistry(reg *capability.Registry, version string) Catalogue {
	return Catalogue{
		Version:      version,
		LastUpdated:  time.Now().UTC().Format(time.RFC3339),
		Capabilities: reg.DescribeAll(),
	}
}

// Load reads a catalogue document from disk.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat Catalogue
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	return &cat, nil
}

// Save writes a catalogue document to disk.
func Save(path string, cat Catalogue) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Find returns the descriptor registered under name.
func (c *Catalogue) Find(name string) (capability.Descriptor, bool) {
	for _, d := range c.Capabilities {
		if d.Name == name {
			return d, true
		}
	}
	return capability.Descriptor{}, false
}
