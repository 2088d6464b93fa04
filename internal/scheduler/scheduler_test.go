package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/compasscal/compass/internal/reconcile"
)

type countingMaintainer struct {
	runs atomic.Int32
	err  error
}

func (m *countingMaintainer) Maintain(ctx context.Context) (reconcile.MaintenanceReport, error) {
	m.runs.Add(1)
	return reconcile.MaintenanceReport{Refreshed: 1}, m.err
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("every tuesday", &countingMaintainer{}, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRunNow(t *testing.T) {
	m := &countingMaintainer{}
	s, err := New("0 */6 * * *", m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := s.RunNow(context.Background())
	if err != nil || report.Refreshed != 1 || m.runs.Load() != 1 {
		t.Fatalf("RunNow = %+v, %v (runs %d)", report, err, m.runs.Load())
	}

	m.err = errors.New("store down")
	if _, err := s.RunNow(context.Background()); !errors.Is(err, m.err) {
		t.Fatalf("err = %v", err)
	}
}

func TestScheduleTicks(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the cron clock")
	}
	m := &countingMaintainer{}
	s, err := New("@every 1s", m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for m.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if m.runs.Load() == 0 {
		t.Fatal("maintenance never ran")
	}
}
