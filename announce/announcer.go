package announce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Xerpa/gorpo/agent"
	"github.com/Xerpa/gorpo/logger"
)

// Common announcer errors.
var (
	// ErrNotFound is returned when no unit exists for the announce key.
	ErrNotFound = errors.New("announce: unit not found")
	// ErrClosed is returned when registering against a closed announcer.
	ErrClosed = errors.New("announce: announcer closed")
)

// shutdownGrace bounds how long a unit gets to deregister on termination.
const shutdownGrace = 5 * time.Second

// Key identifies a unit: two services with the same (ID, Name) collide even
// when their tags differ.
type Key struct {
	ID   string
	Name string
}

// KeyOf returns the announce key of a service.
func KeyOf(svc agent.Service) Key {
	return Key{ID: svc.ID, Name: svc.Name}
}

// Announcer supervises one Unit per announced service. Register, Unregister,
// Whereis, and Killall are serialized against the registry; units tick
// independently and never block each other.
type Announcer struct {
	client *agent.Client
	log    *logger.Logger

	mu     sync.Mutex
	units  map[Key]*Unit
	closed bool
}

// Option customizes an Announcer.
type Option func(*Announcer)

// WithLogger sets the announcer logger.
func WithLogger(log *logger.Logger) Option {
	return func(a *Announcer) { a.log = log }
}

// New creates an announcer driving the given agent client.
func New(client *agent.Client, opts ...Option) *Announcer {
	a := &Announcer{
		client: client,
		units:  make(map[Key]*Unit),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.WithComponent("announce")
	}
	return a
}

// Register creates and starts a unit for the service. Registering a service
// whose announce key already has a unit is a no-op. The unit's first tick
// runs synchronously before Register returns; its failure does not fail the
// registration.
func (a *Announcer) Register(ctx context.Context, svc agent.Service) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	key := KeyOf(svc)
	if _, exists := a.units[key]; exists {
		return nil
	}

	unit, err := newUnit(svc, a.client, a.log)
	if err != nil {
		return fmt.Errorf("announce: start unit: %w", err)
	}
	unit.start()
	a.units[key] = unit

	a.log.Info("service registered", map[string]interface{}{
		logger.FieldService: svc.ID, "name": svc.Name,
	})
	return nil
}

// Unregister terminates the service's unit, which deregisters it at the
// agent. Returns ErrNotFound when no unit exists for the announce key.
func (a *Announcer) Unregister(ctx context.Context, svc agent.Service) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := KeyOf(svc)
	unit, exists := a.units[key]
	if !exists {
		return ErrNotFound
	}

	stopCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	unit.stop(stopCtx)
	delete(a.units, key)

	a.log.Info("service unregistered", map[string]interface{}{
		logger.FieldService: svc.ID, "name": svc.Name,
	})
	return nil
}

// Whereis returns the live unit for the service's announce key, or nil when
// none exists.
func (a *Announcer) Whereis(svc agent.Service) *Unit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.units[KeyOf(svc)]
}

// Len returns the number of live units.
func (a *Announcer) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.units)
}

// Killall terminates every unit and clears the registry.
func (a *Announcer) Killall(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopAll(ctx)
	return nil
}

// Close terminates every unit and refuses further registrations.
func (a *Announcer) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.stopAll(ctx)
	a.log.Info("announcer closed")
	return nil
}

// stopAll terminates every unit concurrently, bounded by the shutdown grace.
// Caller holds the lock.
func (a *Announcer) stopAll(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	var wg sync.WaitGroup
	for _, unit := range a.units {
		wg.Add(1)
		go func(u *Unit) {
			defer wg.Done()
			u.stop(stopCtx)
		}(unit)
	}
	wg.Wait()
	a.units = make(map[Key]*Unit)
}
