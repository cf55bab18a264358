// Package announce keeps services alive at a Consul-style agent.
//
// Each registered service gets a Unit: a goroutine that registers the
// service, then refreshes its TTL check every base tick (a fifth of the
// check TTL, floor 50ms). When the agent is unreachable the unit clears its
// status, doubles its wait up to five minutes, and re-registers once the
// agent answers again. The Announcer owns the registry of units keyed by
// (service ID, service name) and serializes register/unregister/whereis
// against it.
package announce
