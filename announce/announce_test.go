package announce

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Xerpa/gorpo/agent"
	"github.com/Xerpa/gorpo/logger"
	"github.com/Xerpa/gorpo/transport"
)

// stubAgent is a deterministic transport double recording every request.
type stubAgent struct {
	mu     sync.Mutex
	status int
	paths  []string
}

func (s *stubAgent) send(ctx context.Context, req transport.Request) (*transport.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, req.URL)
	return &transport.Response{
		StatusCode: s.status,
		Headers:    map[string]string{},
		Body:       []byte{},
	}, nil
}

func (s *stubAgent) setStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *stubAgent) count(fragment string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.paths {
		if strings.Contains(p, fragment) {
			n++
		}
	}
	return n
}

func newTestClient(stub *stubAgent) *agent.Client {
	return agent.New("http://a", stub.send)
}

func testLogger() *logger.Logger {
	return logger.NewDefault("test")
}

func checkedService(id string) agent.Service {
	return agent.Service{ID: id, Name: id, Check: &agent.Check{TTL: "1s"}}
}

func TestUnitFirstTickSuccess(t *testing.T) {
	stub := &stubAgent{status: 200}
	u, err := newUnit(checkedService("foobar"), newTestClient(stub), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u.tick(context.Background())

	st := u.Stat()
	if st.Service != StatOK || st.Heartbeat != StatOK {
		t.Errorf("expected ok/ok, got %+v", st)
	}
	if u.base != 200*time.Millisecond {
		t.Errorf("expected base 200ms, got %v", u.base)
	}
	if u.wait != u.base {
		t.Errorf("expected wait == base, got %v", u.wait)
	}
	if stub.count("service/register") != 1 || stub.count("check/update") != 1 {
		t.Errorf("unexpected calls %v", stub.paths)
	}
}

func TestUnitFirstTickFailure(t *testing.T) {
	stub := &stubAgent{status: 500}
	u, err := newUnit(checkedService("foobar"), newTestClient(stub), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u.tick(context.Background())

	st := u.Stat()
	if st.Service != StatError || st.Heartbeat != StatError {
		t.Errorf("expected error/error, got %+v", st)
	}
	if u.wait <= u.base {
		t.Errorf("expected wait > base after failure, got %v", u.wait)
	}
}

func TestUnitNoCheck(t *testing.T) {
	stub := &stubAgent{status: 200}
	u, err := newUnit(agent.Service{ID: "x", Name: "x"}, newTestClient(stub), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u.tick(context.Background())

	if u.base != noCheckTick {
		t.Errorf("expected base %v, got %v", noCheckTick, u.base)
	}

	st := u.Stat()
	if st.Service != StatOK {
		t.Errorf("expected service ok, got %+v", st)
	}
	// heartbeat was never attempted, so it reports error
	if st.Heartbeat != StatError {
		t.Errorf("expected heartbeat error, got %+v", st)
	}
	if stub.count("check/update") != 0 {
		t.Error("heartbeat must be disabled without a check")
	}
}

func TestBackoffDiscipline(t *testing.T) {
	stub := &stubAgent{status: 500}
	u, err := newUnit(checkedService("foobar"), newTestClient(stub), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := u.base
	for k := 1; k <= 15; k++ {
		u.tick(context.Background())

		want := base << k
		if want > maxWait {
			want = maxWait
		}
		if u.wait != want {
			t.Fatalf("after %d failures expected wait %v, got %v", k, want, u.wait)
		}
	}
}

func TestUnitRecoveryResetsBackoff(t *testing.T) {
	stub := &stubAgent{status: 500}
	u, err := newUnit(checkedService("foobar"), newTestClient(stub), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u.tick(context.Background())
	u.tick(context.Background())
	if u.wait == u.base {
		t.Fatal("expected backoff to have grown")
	}

	stub.setStatus(200)
	u.tick(context.Background())

	if u.wait != u.base {
		t.Errorf("expected wait reset to base, got %v", u.wait)
	}
	st := u.Stat()
	if st.Service != StatOK || st.Heartbeat != StatOK {
		t.Errorf("expected ok/ok after recovery, got %+v", st)
	}
}

func TestUnitReRegistersAfterFailure(t *testing.T) {
	stub := &stubAgent{status: 200}
	u, err := newUnit(checkedService("foobar"), newTestClient(stub), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u.tick(context.Background())
	if n := stub.count("service/register"); n != 1 {
		t.Fatalf("expected 1 register, got %d", n)
	}

	// a steady tick heartbeats without re-registering
	u.tick(context.Background())
	if n := stub.count("service/register"); n != 1 {
		t.Fatalf("registered while healthy: %d", n)
	}

	// the failing tick only heartbeats (the service was still ok); the
	// failure clears the status, so the next tick re-registers
	stub.setStatus(500)
	u.tick(context.Background())
	stub.setStatus(200)
	u.tick(context.Background())
	if n := stub.count("service/register"); n != 2 {
		t.Errorf("expected re-registration after failure, got %d registers", n)
	}
}

func TestUnitStopDeregisters(t *testing.T) {
	stub := &stubAgent{status: 200}
	u, err := newUnit(checkedService("foobar"), newTestClient(stub), testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u.start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u.stop(ctx)

	if n := stub.count("service/deregister/foobar"); n != 1 {
		t.Errorf("expected 1 deregister, got %d (%v)", n, stub.paths)
	}
}

func TestAnnouncerLifecycle(t *testing.T) {
	stub := &stubAgent{status: 200}
	a := New(newTestClient(stub), WithLogger(testLogger()))
	defer a.Close(context.Background())

	svc := agent.Service{ID: "foo", Name: "bar"}
	ctx := context.Background()

	if err := a.Register(ctx, svc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Register(ctx, svc); err != nil {
		t.Fatalf("register must be idempotent: %v", err)
	}
	if a.Len() != 1 {
		t.Errorf("expected 1 unit, got %d", a.Len())
	}

	if a.Whereis(svc) == nil {
		t.Error("expected a live unit handle")
	}

	if err := a.Unregister(ctx, svc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Unregister(ctx, svc); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if a.Whereis(svc) != nil {
		t.Error("expected no unit after unregister")
	}
}

func TestAnnouncerCollidingKeys(t *testing.T) {
	stub := &stubAgent{status: 200}
	a := New(newTestClient(stub), WithLogger(testLogger()))
	defer a.Close(context.Background())

	ctx := context.Background()
	svc := agent.Service{ID: "foo", Name: "bar", Tags: []string{"a"}}
	other := agent.Service{ID: "foo", Name: "bar", Tags: []string{"b"}}

	if err := a.Register(ctx, svc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// same announce key, different tags: same unit
	if err := a.Register(ctx, other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Len() != 1 {
		t.Errorf("expected 1 unit, got %d", a.Len())
	}
}

func TestAnnouncerKillall(t *testing.T) {
	stub := &stubAgent{status: 200}
	a := New(newTestClient(stub), WithLogger(testLogger()))

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := a.Register(ctx, agent.Service{ID: id, Name: id}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if a.Len() != 3 {
		t.Fatalf("expected 3 units, got %d", a.Len())
	}

	if err := a.Killall(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Len() != 0 {
		t.Errorf("expected empty registry, got %d", a.Len())
	}

	// killall does not close the announcer
	if err := a.Register(ctx, agent.Service{ID: "d", Name: "d"}); err != nil {
		t.Errorf("register after killall should work: %v", err)
	}
	a.Close(ctx)
}

func TestAnnouncerClosed(t *testing.T) {
	stub := &stubAgent{status: 200}
	a := New(newTestClient(stub), WithLogger(testLogger()))

	ctx := context.Background()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Register(ctx, agent.Service{ID: "x", Name: "x"}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestAnnouncerStatThroughHandle(t *testing.T) {
	stub := &stubAgent{status: 200}
	a := New(newTestClient(stub), WithLogger(testLogger()))
	defer a.Close(context.Background())

	svc := checkedService("foobar")
	if err := a.Register(context.Background(), svc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := a.Whereis(svc).Stat()
	if st.Service != StatOK || st.Heartbeat != StatOK {
		t.Errorf("expected ok/ok, got %+v", st)
	}
}
