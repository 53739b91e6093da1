package capability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the capabilities available to a deployment. Registration
// happens once at startup; lookups run on every orchestration iteration.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{capabilities: make(map[string]Capability)}
}

// Register adds a capability under its descriptor name. Names are unique;
// registering the same name twice is a wiring bug and fails loudly.
func (r *Registry) Register(c Capability) error {
	desc := c.Describe()
	if desc.Name == "" {
		return fmt.Errorf("capability has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.capabilities[desc.Name]; exists {
		return fmt.Errorf("capability %q already registered", desc.Name)
	}
	r.capabilities[desc.Name] = c
	return nil
}

// Get returns the capability registered under name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[name]
	return c, ok
}

// Names returns all registered capability names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DescribeAll returns every registered descriptor sorted by name, so the
// decision prompt is stable across runs.
func (r *Registry) DescribeAll() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		descriptors = append(descriptors, c.Describe())
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// HelpText renders a human-readable summary of the registry grouped by
// category, with categories and capabilities each in sorted order.
func (r *Registry) HelpText() string {
	descriptors := r.DescribeAll()
	if len(descriptors) == 0 {
		return "No capabilities are currently available."
	}

	byCategory := make(map[string][]Descriptor)
	for _, d := range descriptors {
		byCategory[d.Category] = append(byCategory[d.Category], d)
	}
	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("Available capabilities:\n")
	for _, cat := range categories {
		fmt.Fprintf(&b, "\n%s:\n", cat)
		for _, d := range byCategory[cat] {
			fmt.Fprintf(&b, "  - %s: %s\n", d.Name, d.Purpose)
			for _, example := range d.Examples {
				fmt.Fprintf(&b, "      e.g. %q\n", example)
			}
		}
	}
	return b.String()
}
