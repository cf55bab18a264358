// Package agent implements a typed client for a Consul-style discovery
// agent's HTTP API, plus the domain values it speaks: Service, Check, Status,
// Node, and the ServiceHealth discovery tuple.
//
// The client is a pure translator. Every operation builds one HTTP request
// against the configured endpoint, sends it through the transport seam, and
// classifies the outcome as a driver, http, or not_found error. Retrying and
// scheduling live one layer up, in package announce.
package agent
