package agent

import (
	"encoding/json"
)

// Service describes a service announced to the agent. ID must be unique per
// local agent; at least one of ID/Name must be set for the service to carry
// a health check.
type Service struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Check   *Check
}

// serviceWire is the agent's JSON shape for a Service. The check is emitted
// under the lowercase "check" key: the agent accepts it and existing
// deployments rely on it, so the casing is part of the wire contract.
type serviceWire struct {
	ID      string   `json:"ID,omitempty"`
	Name    string   `json:"Name,omitempty"`
	Tags    []string `json:"Tags"`
	Port    int      `json:"Port,omitempty"`
	Address string   `json:"Address,omitempty"`
	Check   *Check   `json:"check,omitempty"`
}

// MarshalJSON encodes the service for the agent, dropping empty optional
// fields and defaulting Tags to an empty list.
func (s Service) MarshalJSON() ([]byte, error) {
	w := serviceWire{
		ID:      s.ID,
		Name:    s.Name,
		Tags:    s.Tags,
		Port:    s.Port,
		Address: s.Address,
		Check:   s.Check,
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a service from the agent's reply shape.
func (s *Service) UnmarshalJSON(data []byte) error {
	var w serviceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.ID = w.ID
	s.Name = w.Name
	s.Address = w.Address
	s.Port = w.Port
	s.Tags = w.Tags
	s.Check = w.Check
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return nil
}

// DecodeService decodes a service, falling back to the given name when the
// reply carries none.
func DecodeService(name string, data []byte) (Service, error) {
	var s Service
	if err := json.Unmarshal(data, &s); err != nil {
		return Service{}, err
	}
	if s.Name == "" {
		s.Name = name
	}
	return s, nil
}

// CheckID returns the check id the agent exposes for this service,
// "service:" + (ID or Name). The second return is false when the service has
// neither an ID nor a Name.
func (s Service) CheckID() (string, bool) {
	switch {
	case s.ID != "":
		return "service:" + s.ID, true
	case s.Name != "":
		return "service:" + s.Name, true
	}
	return "", false
}

// Check is a TTL-based health check. The agent parses both durations; the
// announcer only parses TTL locally to derive its tick interval.
type Check struct {
	TTL                            string `json:"TTL,omitempty"`
	DeregisterCriticalServiceAfter string `json:"DeregisterCriticalServiceAfter,omitempty"`
}

// Default check durations.
const (
	DefaultCheckTTL              = "10s"
	DefaultDeregisterCriticalTTL = "10m"
)

// DefaultCheck returns a check with default durations.
func DefaultCheck() *Check {
	return &Check{
		TTL:                            DefaultCheckTTL,
		DeregisterCriticalServiceAfter: DefaultDeregisterCriticalTTL,
	}
}

// ApplyDefaults fills empty durations with their defaults.
func (c *Check) ApplyDefaults() {
	if c.TTL == "" {
		c.TTL = DefaultCheckTTL
	}
	if c.DeregisterCriticalServiceAfter == "" {
		c.DeregisterCriticalServiceAfter = DefaultDeregisterCriticalTTL
	}
}

// Health is a check status variant.
type Health string

const (
	HealthPassing  Health = "passing"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// Status is a check status with an optional opaque output.
type Status struct {
	Status Health  `json:"Status"`
	Output *string `json:"Output"`
}

// Passing returns a passing status.
func Passing() Status { return Status{Status: HealthPassing} }

// Warning returns a warning status.
func Warning() Status { return Status{Status: HealthWarning} }

// Critical returns a critical status.
func Critical() Status { return Status{Status: HealthCritical} }

// WithOutput returns a copy of the status carrying the given output.
func (s Status) WithOutput(output string) Status {
	s.Output = &output
	return s
}

// Node is an agent-reported peer.
type Node struct {
	ID              string            `json:"ID"`
	Node            string            `json:"Node"`
	Address         string            `json:"Address"`
	TaggedAddresses map[string]string `json:"TaggedAddresses"`
}

// ServiceHealth is one element of a discovery reply: the node a service runs
// on, the service itself, and the status of its TTL check when it has one.
// Service.Address is always routable: when the agent reply leaves it empty it
// is replaced by the node address.
type ServiceHealth struct {
	Node    Node
	Service Service
	Status  *Status
}
