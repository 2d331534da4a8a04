package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubPinger struct {
	err error
}

func (s *stubPinger) Health(ctx context.Context) error { return s.err }

type stubCircuit struct {
	disabled bool
}

func (s *stubCircuit) Disabled() bool { return s.disabled }

type stubHeartbeat struct {
	at  time.Time
	gen int64
}

func (s *stubHeartbeat) LastReport(ctx context.Context, nodeUUID string) (time.Time, error) {
	return s.at, nil
}

func (s *stubHeartbeat) LastGeneration(ctx context.Context, nodeUUID string) (int64, error) {
	return s.gen, nil
}

func TestCheckHealth_AllHealthy(t *testing.T) {
	m := NewMonitor("node-1", time.Hour,
		&stubPinger{}, &stubPinger{},
		&stubHeartbeat{at: time.Now(), gen: 3},
		&stubCircuit{})

	report := m.CheckHealth(context.Background())
	if report.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.Status)
	}
	if report.LastGeneration != 3 {
		t.Errorf("expected generation 3, got %d", report.LastGeneration)
	}
}

func TestCheckHealth_DatabaseDown(t *testing.T) {
	m := NewMonitor("node-1", time.Hour,
		&stubPinger{err: errors.New("conn refused")}, &stubPinger{},
		nil, &stubCircuit{})

	report := m.CheckHealth(context.Background())
	if report.Status != StatusCritical {
		t.Errorf("expected critical, got %s", report.Status)
	}
	if report.Database != "unreachable" {
		t.Errorf("expected database unreachable, got %s", report.Database)
	}
}

type slowPinger struct {
	pings   atomic.Int64
	release chan struct{}
}

func (s *slowPinger) Health(ctx context.Context) error {
	s.pings.Add(1)
	<-s.release
	return nil
}

func TestCheckHealth_ConcurrentCallersShareOneProbe(t *testing.T) {
	db := &slowPinger{release: make(chan struct{})}
	m := NewMonitor("node-1", time.Hour, db, &stubPinger{}, nil, &stubCircuit{})

	const callers = 8
	reports := make([]Report, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i] = m.CheckHealth(context.Background())
		}(i)
	}

	// Wait until the probe is in flight, then let it finish.
	for db.pings.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	close(db.release)
	wg.Wait()

	if got := db.pings.Load(); got != 1 {
		t.Errorf("expected a single backend ping across concurrent callers, got %d", got)
	}
	for i, report := range reports {
		if report.Status != StatusHealthy {
			t.Errorf("caller %d: expected healthy, got %s", i, report.Status)
		}
	}
}

func TestCheckHealth_CircuitOpen(t *testing.T) {
	m := NewMonitor("node-1", time.Hour,
		&stubPinger{}, &stubPinger{},
		nil, &stubCircuit{disabled: true})

	report := m.CheckHealth(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	if !report.ReportingDisabled {
		t.Error("expected reporting_disabled to be set")
	}
}
