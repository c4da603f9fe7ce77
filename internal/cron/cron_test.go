package cron

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/clawlite/internal/clawerr"
	"github.com/nextlevelbuilder/clawlite/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cron.db")
	svc, err := NewService(dbPath, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestParseExpressionEveryZeroRejected(t *testing.T) {
	if _, err := parseExpression("every 0", time.Now()); !clawerr.Is(err, clawerr.CronExpressionInvalid) {
		t.Fatalf("expected cron_expression_invalid for 'every 0', got %v", err)
	}
}

func TestParseExpressionAtPastRejected(t *testing.T) {
	past := "at " + time.Now().Add(-time.Hour).Format(time.RFC3339)
	if _, err := parseExpression(past, time.Now()); !clawerr.Is(err, clawerr.CronExpressionInvalid) {
		t.Fatalf("expected cron_expression_invalid for past 'at' timestamp, got %v", err)
	}
}

// TestOneShotFiresOnceAndIsRemoved exercises scenario S2.
func TestOneShotFiresOnceAndIsRemoved(t *testing.T) {
	svc := newTestService(t)

	var fired int32
	svc.SetOnJob(func(job *store.CronJob) (*store.CronJobResult, error) {
		atomic.AddInt32(&fired, 1)
		return &store.CronJobResult{Content: "noop"}, nil
	})

	future := time.Now().Add(50 * time.Millisecond)
	id, err := svc.Add(store.CronJob{SessionID: "cli:ops", Expression: "at " + future.Format(time.RFC3339Nano), Prompt: "noop", Name: "o"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	svc.tick(future.Add(10 * time.Millisecond).UTC())
	time.Sleep(50 * time.Millisecond)

	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("expected job to fire exactly once, fired=%d", got)
	}
	for _, j := range svc.List("cli:ops") {
		if j.ID == id {
			t.Fatalf("expected one-shot job to be removed after firing")
		}
	}
}

// TestRecurringOverlapSuppression exercises scenario S3: a slow handler
// must not be invoked concurrently with itself across ticks.
func TestRecurringOverlapSuppression(t *testing.T) {
	svc := newTestService(t)

	var started int32
	release := make(chan struct{})
	svc.SetOnJob(func(job *store.CronJob) (*store.CronJobResult, error) {
		atomic.AddInt32(&started, 1)
		<-release
		return &store.CronJobResult{}, nil
	})

	now := time.Now().UTC()
	_, err := svc.Add(store.CronJob{SessionID: "cli:ops", Expression: "every 1", Prompt: "sleep"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	for i := 0; i < 5; i++ {
		svc.tick(now.Add(time.Duration(i) * time.Second))
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	time.Sleep(50 * time.Millisecond)

	if got := atomic.LoadInt32(&started); got > 2 {
		t.Fatalf("expected at most 2 starts across 5 overlapping ticks, got %d", got)
	}
}
