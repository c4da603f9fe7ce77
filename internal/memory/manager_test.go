package memory

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestAddAndGet(t *testing.T) {
	m := newTestManager(t)

	entry, err := m.Add("the operator prefers terse status updates", "user")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("expected a generated id")
	}

	got, ok := m.Get(entry.ID)
	if !ok {
		t.Fatalf("expected to find entry %s", entry.ID)
	}
	if got.Text != entry.Text {
		t.Fatalf("unexpected text: %q", got.Text)
	}
}

func TestTopKRanksByOverlapThenRecency(t *testing.T) {
	m := newTestManager(t)

	m.Add("the deploy pipeline runs nightly at 2am", "session:a")
	time.Sleep(time.Millisecond)
	m.Add("the deploy pipeline was moved to run hourly", "session:b")
	time.Sleep(time.Millisecond)
	m.Add("the cafeteria menu changes on fridays", "session:c")

	results := m.TopK("deploy pipeline schedule", 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(results), results)
	}
	if results[0].SourceTag != "session:b" {
		t.Fatalf("expected most recent overlapping entry first, got %q", results[0].SourceTag)
	}
}

func TestTopKWithEmptyQueryReturnsMostRecent(t *testing.T) {
	m := newTestManager(t)

	m.Add("first fact", "user")
	time.Sleep(time.Millisecond)
	m.Add("second fact", "user")

	results := m.TopK("", 1)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Text != "second fact" {
		t.Fatalf("expected most recent entry, got %q", results[0].Text)
	}
}

func TestNewManagerReloadsExistingEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")

	m1, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	entry, err := m1.Add("remember this across restarts", "user")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager (reload): %v", err)
	}
	defer m2.Close()

	got, ok := m2.Get(entry.ID)
	if !ok {
		t.Fatalf("expected reloaded entry %s to be found", entry.ID)
	}
	if got.Text != entry.Text {
		t.Fatalf("unexpected reloaded text: %q", got.Text)
	}
}

func TestShouldConsolidateDebounces(t *testing.T) {
	m := newTestManager(t)

	if !m.ShouldConsolidate("session:a", time.Minute) {
		t.Fatalf("expected first consolidation attempt to proceed")
	}
	if m.ShouldConsolidate("session:a", time.Minute) {
		t.Fatalf("expected second immediate attempt to be debounced")
	}
	if !m.ShouldConsolidate("session:b", time.Minute) {
		t.Fatalf("expected a different session key to proceed independently")
	}
}
