package announce

import (
	"context"
	"sync"
	"time"

	"github.com/Xerpa/gorpo/agent"
	"github.com/Xerpa/gorpo/logger"
)

// StatValue is the externally visible health of one concern of a unit.
type StatValue string

const (
	StatOK    StatValue = "ok"
	StatError StatValue = "error"
)

// Stat reports the current registration and heartbeat health of a unit.
// A concern that never succeeded reports StatError.
type Stat struct {
	Service   StatValue
	Heartbeat StatValue
}

// Unit is the per-service worker. It owns the tick loop that keeps one
// service registered and its TTL check passing, backing off exponentially
// while the agent is unreachable. All mutation happens on the unit's own
// goroutine; external callers only read via Stat.
type Unit struct {
	svc      agent.Service
	client   *agent.Client
	log      *logger.Logger
	hasCheck bool

	base time.Duration
	// wait is the current tick interval: base on success, doubled (capped
	// at maxWait) per consecutive failure. Owned by the tick goroutine.
	wait    time.Duration
	failing bool

	mu          sync.RWMutex
	serviceOK   bool
	heartbeatOK bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newUnit(svc agent.Service, client *agent.Client, log *logger.Logger) (*Unit, error) {
	base, err := baseTick(svc)
	if err != nil {
		return nil, err
	}

	return &Unit{
		svc:      svc,
		client:   client,
		log:      log.WithFields(map[string]interface{}{logger.FieldService: svc.ID, "name": svc.Name}),
		hasCheck: svc.Check != nil,
		base:     base,
		wait:     base,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// start performs the first tick synchronously, then hands the loop to its
// own goroutine. A failing first tick does not prevent startup; the unit
// comes up in a failing state and keeps retrying.
func (u *Unit) start() {
	u.tick(context.Background())
	go u.run()
}

// Service returns the service this unit announces.
func (u *Unit) Service() agent.Service {
	return u.svc
}

// Stat returns the current registration and heartbeat health. It never
// blocks on the tick loop.
func (u *Unit) Stat() Stat {
	u.mu.RLock()
	defer u.mu.RUnlock()

	st := Stat{Service: StatError, Heartbeat: StatError}
	if u.serviceOK {
		st.Service = StatOK
	}
	if u.heartbeatOK {
		st.Heartbeat = StatOK
	}
	return st
}

// stop terminates the unit: the pending timer is cancelled before the final
// deregister goes out. Blocks until the loop has exited or ctx expires.
func (u *Unit) stop(ctx context.Context) {
	u.stopOnce.Do(func() { close(u.stopCh) })
	select {
	case <-u.doneCh:
	case <-ctx.Done():
	}
}

// run keeps the tick loop alive. A crashed loop is restarted in place
// (transient supervision); a planned stop is final.
func (u *Unit) run() {
	defer close(u.doneCh)
	for {
		if done := u.loop(); done {
			return
		}
		u.log.Error("tick loop crashed, restarting")
	}
}

// loop is one life of the tick loop. Returns true on planned stop, false
// when it recovered from a panic and should be restarted.
func (u *Unit) loop() (done bool) {
	defer func() {
		if r := recover(); r != nil {
			u.log.Error("tick panic", map[string]interface{}{"panic": r})
			done = false
		}
	}()

	timer := time.NewTimer(u.wait)
	for {
		select {
		case <-u.stopCh:
			if !timer.Stop() {
				<-timer.C
			}
			u.deregister()
			return true
		case <-timer.C:
			u.tick(context.Background())
			timer.Reset(u.wait)
		}
	}
}

// tick runs one cycle of the state machine: re-register when the agent may
// have forgotten us, then refresh the TTL check. Registration strictly
// precedes the heartbeat; a heartbeat is never attempted in a cycle whose
// registration has not been confirmed.
func (u *Unit) tick(ctx context.Context) {
	if !u.registered() {
		if err := u.client.ServiceRegister(ctx, u.svc); err != nil {
			u.fail("register", err)
			return
		}
		u.mu.Lock()
		u.serviceOK = true
		u.mu.Unlock()
	}

	if !u.hasCheck {
		u.succeed()
		return
	}

	if err := u.client.CheckUpdate(ctx, u.svc, agent.Passing()); err != nil {
		u.fail("heartbeat", err)
		return
	}
	u.mu.Lock()
	u.heartbeatOK = true
	u.mu.Unlock()
	u.succeed()
}

func (u *Unit) registered() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.serviceOK
}

// fail moves the unit into the failing state: status cleared, wait doubled
// up to maxWait.
func (u *Unit) fail(op string, err error) {
	u.mu.Lock()
	u.serviceOK = false
	u.heartbeatOK = false
	u.mu.Unlock()

	u.wait = 2 * u.wait
	if u.wait > maxWait {
		u.wait = maxWait
	}
	u.failing = true

	u.log.Warn("announce failed", map[string]interface{}{
		logger.FieldOperation: op,
		logger.FieldError:     err.Error(),
		logger.FieldWait:      u.wait.Milliseconds(),
	})
}

// succeed resets the backoff to the base tick.
func (u *Unit) succeed() {
	u.wait = u.base
	if u.failing {
		u.failing = false
		u.log.Debug("ok")
	}
}

// deregister is the unit's last act. The outcome only matters to the log:
// the agent will reap a critical service on its own eventually.
func (u *Unit) deregister() {
	id := u.svc.ID
	if id == "" {
		id = u.svc.Name
	}
	if err := u.client.ServiceDeregister(context.Background(), id); err != nil {
		u.log.Warn("deregister failed", map[string]interface{}{logger.FieldError: err.Error()})
		return
	}
	u.log.Info("deregistered")
}
