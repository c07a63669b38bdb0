package agent

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownAgent is returned when an agent id is not in the registry
var ErrUnknownAgent = errors.New("unknown agent")

// Descriptor describes one agent backend
type Descriptor struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	Description             string `json:"description,omitempty"`
	Endpoint                string `json:"endpoint"`
	RequiresConnectedWallet bool   `json:"requires_connected_wallet"`
}

// Registry is the static set of agents the client can talk to
type Registry struct {
	agents    map[string]Descriptor
	order     []string
	defaultID string
}

// NewRegistry validates the descriptors and builds a registry. defaultID may be
// empty, in which case the first agent by id is the default.
func NewRegistry(defaultID string, descriptors ...Descriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("at least one agent must be configured")
	}

	r := &Registry{agents: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		d.ID = strings.TrimSpace(d.ID)
		d.Endpoint = strings.TrimRight(strings.TrimSpace(d.Endpoint), "/")
		if d.ID == "" {
			return nil, fmt.Errorf("agent id is required")
		}
		if d.Endpoint == "" {
			return nil, fmt.Errorf("agent %s: endpoint is required", d.ID)
		}
		if _, exists := r.agents[d.ID]; exists {
			return nil, fmt.Errorf("agent %s is configured twice", d.ID)
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		r.agents[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	sort.Strings(r.order)

	if defaultID == "" {
		defaultID = r.order[0]
	}
	if _, ok := r.agents[defaultID]; !ok {
		return nil, fmt.Errorf("default agent %s: %w", defaultID, ErrUnknownAgent)
	}
	r.defaultID = defaultID

	return r, nil
}

// Get returns the descriptor for id
func (r *Registry) Get(id string) (Descriptor, error) {
	d, ok := r.agents[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return d, nil
}

// Default returns the default agent
func (r *Registry) Default() Descriptor {
	return r.agents[r.defaultID]
}

// List returns all agents ordered by id
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// Next returns the agent following id in registry order, wrapping around
func (r *Registry) Next(id string) Descriptor {
	for i, candidate := range r.order {
		if candidate == id {
			return r.agents[r.order[(i+1)%len(r.order)]]
		}
	}
	return r.Default()
}
