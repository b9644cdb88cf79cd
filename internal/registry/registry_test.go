package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jstrand/tradelink/internal/conn"
	"github.com/jstrand/tradelink/internal/model"
)

// fakeTransport fails a scripted number of opens.
type fakeTransport struct {
	mu       sync.Mutex
	failNext int
	opens    int
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.failNext > 0 {
		f.failNext--
		return errors.New("dial refused")
	}
	return nil
}

func (f *fakeTransport) Close() error                  { return nil }
func (f *fakeTransport) Probe(ctx context.Context) error { return nil }

func fastOptions() conn.Options {
	return conn.Options{
		MaxAttempts:    2,
		BaseDelay:      time.Millisecond,
		Exponential:    false,
		HealthInterval: time.Hour,
		ProbeTimeout:   time.Second,
	}
}

func factoryFor(name model.ConnName, tr conn.Transport) Factory {
	return func() *conn.Conn {
		return conn.New(name, tr, fastOptions(), nil)
	}
}

func TestInitializeAllDegraded(t *testing.T) {
	r := New(DefaultConfig(), nil)

	// 3 of 4 upstreams permanently failing still boots the system.
	r.Register(model.ConnBroker, factoryFor(model.ConnBroker, &fakeTransport{failNext: 100}))
	r.Register(model.ConnMarketData, factoryFor(model.ConnMarketData, &fakeTransport{failNext: 100}))
	r.Register(model.ConnDatabase, factoryFor(model.ConnDatabase, &fakeTransport{}))
	r.Register(model.ConnCache, factoryFor(model.ConnCache, &fakeTransport{failNext: 100}))

	if err := r.InitializeAll(context.Background()); err != nil {
		t.Fatalf("InitializeAll = %v, want nil (degraded mode)", err)
	}
	defer r.Shutdown(context.Background())

	wantStates := map[model.ConnName]conn.State{
		model.ConnBroker:     conn.StateFailed,
		model.ConnMarketData: conn.StateFailed,
		model.ConnDatabase:   conn.StateConnected,
		model.ConnCache:      conn.StateFailed,
	}
	for name, want := range wantStates {
		s, ok := r.Status(name)
		if !ok {
			t.Fatalf("Status(%s) missing", name)
		}
		if s.Health.State != want {
			t.Errorf("Status(%s).State = %v, want %v", name, s.Health.State, want)
		}
	}
}

func TestInitializeAllNoHealthy(t *testing.T) {
	r := New(DefaultConfig(), nil)
	r.Register(model.ConnBroker, factoryFor(model.ConnBroker, &fakeTransport{failNext: 100}))
	r.Register(model.ConnDatabase, factoryFor(model.ConnDatabase, &fakeTransport{failNext: 100}))

	err := r.InitializeAll(context.Background())
	if !errors.Is(err, ErrNoHealthyUpstream) {
		t.Errorf("InitializeAll = %v, want ErrNoHealthyUpstream", err)
	}
}

func TestGetAndStatusLookups(t *testing.T) {
	r := New(DefaultConfig(), nil)
	r.Register(model.ConnDatabase, factoryFor(model.ConnDatabase, &fakeTransport{}))

	if err := r.InitializeAll(context.Background()); err != nil {
		t.Fatalf("InitializeAll failed: %v", err)
	}
	defer r.Shutdown(context.Background())

	if _, ok := r.Get(model.ConnDatabase); !ok {
		t.Error("Get(database) missing")
	}
	if _, ok := r.Get(model.ConnCache); ok {
		t.Error("Get(cache) should be missing")
	}
	if _, ok := r.Status(model.ConnCache); ok {
		t.Error("Status(cache) should be missing")
	}

	if got := len(r.Statuses()); got != 1 {
		t.Errorf("Statuses() len = %d, want 1", got)
	}
}

func TestRefreshRebuildsConnection(t *testing.T) {
	r := New(DefaultConfig(), nil)

	var mu sync.Mutex
	built := 0
	tr := &fakeTransport{}
	r.Register(model.ConnBroker, func() *conn.Conn {
		mu.Lock()
		built++
		mu.Unlock()
		return conn.New(model.ConnBroker, tr, fastOptions(), nil)
	})

	if err := r.InitializeAll(context.Background()); err != nil {
		t.Fatalf("InitializeAll failed: %v", err)
	}
	defer r.Shutdown(context.Background())

	first, _ := r.Get(model.ConnBroker)

	// Plain refresh reconnects the same instance.
	if err := r.Refresh(context.Background(), model.ConnBroker, false); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	same, _ := r.Get(model.ConnBroker)
	if same != first {
		t.Error("non-forced refresh replaced the instance")
	}

	// Forced refresh rebuilds from the factory.
	if err := r.Refresh(context.Background(), model.ConnBroker, true); err != nil {
		t.Fatalf("forced Refresh failed: %v", err)
	}
	rebuilt, _ := r.Get(model.ConnBroker)
	if rebuilt == first {
		t.Error("forced refresh kept the old instance")
	}

	mu.Lock()
	defer mu.Unlock()
	if built != 2 {
		t.Errorf("factory ran %d times, want 2", built)
	}
}

func TestRefreshUnknownConnection(t *testing.T) {
	r := New(DefaultConfig(), nil)
	err := r.Refresh(context.Background(), model.ConnCache, false)
	if !errors.Is(err, ErrUnknownConnection) {
		t.Errorf("Refresh = %v, want ErrUnknownConnection", err)
	}
}

func TestMonitorRefreshesFailedConnection(t *testing.T) {
	cfg := Config{
		MaxConcurrentInits:       4,
		MonitorInterval:          10 * time.Millisecond,
		FailedPollsBeforeRefresh: 2,
	}
	r := New(cfg, nil)

	// First instance exhausts its budget; the rebuilt one connects cleanly.
	var mu sync.Mutex
	built := 0
	r.Register(model.ConnBroker, func() *conn.Conn {
		mu.Lock()
		built++
		n := built
		mu.Unlock()
		tr := &fakeTransport{}
		if n == 1 {
			tr.failNext = 100
		}
		return conn.New(model.ConnBroker, tr, fastOptions(), nil)
	})

	// Sole upstream fails: boot is refused, but the connection table is
	// populated and the monitor can still recover it.
	if err := r.InitializeAll(context.Background()); !errors.Is(err, ErrNoHealthyUpstream) {
		t.Fatalf("InitializeAll = %v, want ErrNoHealthyUpstream", err)
	}

	r.StartMonitor(context.Background())
	defer r.Shutdown(context.Background())

	deadline := time.After(2 * time.Second)
	for {
		if s, ok := r.Status(model.ConnBroker); ok && s.Health.State == conn.StateConnected {
			break
		}
		select {
		case <-deadline:
			s, _ := r.Status(model.ConnBroker)
			t.Fatalf("monitor never recovered the connection, state=%v", s.Health.State)
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if built < 2 {
		t.Errorf("factory ran %d times, want >= 2 (forced rebuild)", built)
	}
}
