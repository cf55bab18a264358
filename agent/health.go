package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Xerpa/gorpo/transport"
)

// Filters narrows a Services query.
type Filters struct {
	// Near sorts results by round-trip time from the local agent.
	Near bool
	// Tag keeps only services carrying the tag.
	Tag string
	// DC queries the given datacenter.
	DC string
	// Passing keeps only services whose checks pass. When set it replaces
	// every other filter; that has always been the encoding this announcer
	// ships and peers depend on it.
	Passing bool
}

func (f Filters) encode() []transport.Param {
	var params []transport.Param
	if f.Near {
		params = append(params, transport.Param{Key: "near", Value: "_agent"})
	}
	if f.Tag != "" {
		params = append(params, transport.Param{Key: "tag", Value: f.Tag})
	}
	if f.DC != "" {
		params = append(params, transport.Param{Key: "dc", Value: f.DC})
	}
	if f.Passing {
		return []transport.Param{{Key: "passing"}}
	}
	return params
}

// healthEntry is one element of the agent's health reply.
type healthEntry struct {
	Node    json.RawMessage `json:"Node"`
	Service json.RawMessage `json:"Service"`
	Checks  []healthCheck   `json:"Checks"`
}

type healthCheck struct {
	CheckID string `json:"CheckID"`
	Status  string `json:"Status"`
}

// Services queries the agent for instances of the named service. Each
// returned entry carries the node, the service (with its address defaulted to
// the node address when empty), and the status of the service's own check
// when the reply contains one.
func (c *Client) Services(ctx context.Context, name string, filters Filters) ([]ServiceHealth, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/v1/health/service/" + url.PathEscape(name),
		params: filters.encode(),
	})
	if err != nil {
		return nil, err
	}

	var entries []healthEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, fmt.Errorf("decode health reply: %w", err)
	}

	results := make([]ServiceHealth, 0, len(entries))
	for _, entry := range entries {
		var node Node
		if err := json.Unmarshal(entry.Node, &node); err != nil {
			return nil, fmt.Errorf("decode node: %w", err)
		}

		svc, err := DecodeService(name, entry.Service)
		if err != nil {
			return nil, fmt.Errorf("decode service: %w", err)
		}
		if svc.Address == "" {
			svc.Address = node.Address
		}

		results = append(results, ServiceHealth{
			Node:    node,
			Service: svc,
			Status:  matchStatus(svc, entry.Checks),
		})
	}
	return results, nil
}

// matchStatus finds the check belonging to the service itself. The agent
// reports node-level checks alongside; only the entry whose CheckID equals
// the service's computed check id counts.
func matchStatus(svc Service, checks []healthCheck) *Status {
	checkID, ok := svc.CheckID()
	if !ok {
		return nil
	}
	for _, chk := range checks {
		if chk.CheckID == checkID {
			return &Status{Status: Health(chk.Status)}
		}
	}
	return nil
}
