package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// indexSnapshot is the read-only structure TopK/Get search against. Manager
// swaps this pointer atomically after every write so readers never observe
// a half-updated index and never block on the append-only file growing.
type indexSnapshot struct {
	entries []Entry
	tokens  []map[string]struct{} // tokens[i] corresponds to entries[i]
}

// Manager is the append-only, lexically-searchable long-term memory store.
// One Manager per agent; safe for concurrent use.
type Manager struct {
	path string

	mu   sync.Mutex // serializes writers (Add)
	file *os.File

	snapshot atomic.Pointer[indexSnapshot]

	debounceMu sync.Mutex
	lastFlush  map[string]time.Time // sourceTag → last consolidation time, for the 60s debounce
}

// NewManager opens (creating if necessary) the JSONL file at path and loads
// its existing entries into memory.
func NewManager(path string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		path:      path,
		file:      f,
		lastFlush: make(map[string]time.Time),
	}

	entries, err := loadEntries(path)
	if err != nil {
		f.Close()
		return nil, err
	}
	m.snapshot.Store(buildSnapshot(entries))

	return m, nil
}

func loadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue // skip a corrupt line rather than fail the whole load
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

func buildSnapshot(entries []Entry) *indexSnapshot {
	snap := &indexSnapshot{entries: entries, tokens: make([]map[string]struct{}, len(entries))}
	for i, e := range entries {
		snap.tokens[i] = tokenSet(tokenize(e.Text))
	}
	return snap
}

// Add appends a new entry, persists it, and rebuilds the read snapshot.
func (m *Manager) Add(text, sourceTag string) (Entry, error) {
	entry := Entry{
		ID:        uuid.NewString(),
		Text:      text,
		SourceTag: sourceTag,
		CreatedAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.file.Write(append(raw, '\n')); err != nil {
		return Entry{}, err
	}
	if err := m.file.Sync(); err != nil {
		return Entry{}, fmt.Errorf("memory: fsync failed: %w", err)
	}

	cur := m.snapshot.Load()
	entries := append(append([]Entry{}, cur.entries...), entry)
	m.snapshot.Store(buildSnapshot(entries))

	return entry, nil
}

// Get resolves an entry by id.
func (m *Manager) Get(id string) (Entry, bool) {
	snap := m.snapshot.Load()
	for _, e := range snap.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// TopK returns up to k entries ranked by token overlap against query, ties
// broken by recency (newest first). Entries with zero overlap are excluded
// unless query tokenizes to nothing, in which case the k most recent
// entries are returned.
func (m *Manager) TopK(query string, k int) []Entry {
	if k <= 0 {
		k = 5
	}
	snap := m.snapshot.Load()
	queryTokens := tokenize(query)

	type scored struct {
		entry Entry
		score int
	}

	scoredEntries := make([]scored, 0, len(snap.entries))
	for i, e := range snap.entries {
		score := 0
		if len(queryTokens) > 0 {
			score = overlapScore(queryTokens, snap.tokens[i])
			if score == 0 {
				continue
			}
		}
		scoredEntries = append(scoredEntries, scored{entry: e, score: score})
	}

	sort.SliceStable(scoredEntries, func(i, j int) bool {
		if scoredEntries[i].score != scoredEntries[j].score {
			return scoredEntries[i].score > scoredEntries[j].score
		}
		return scoredEntries[i].entry.CreatedAt.After(scoredEntries[j].entry.CreatedAt)
	})

	if len(scoredEntries) > k {
		scoredEntries = scoredEntries[:k]
	}

	out := make([]Entry, len(scoredEntries))
	for i, s := range scoredEntries {
		out[i] = s.entry
	}
	return out
}

// ShouldConsolidate reports whether a consolidation for sourceTag is due,
// given the 60s idempotency debounce, and records the attempt if so. Callers
// (the agent loop's session-end trigger) must call this immediately before
// running the summarization turn, not after, so two near-simultaneous
// triggers for the same session don't both pass.
func (m *Manager) ShouldConsolidate(sourceTag string, debounce time.Duration) bool {
	if debounce <= 0 {
		debounce = 60 * time.Second
	}

	m.debounceMu.Lock()
	defer m.debounceMu.Unlock()

	if last, ok := m.lastFlush[sourceTag]; ok && time.Since(last) < debounce {
		return false
	}
	m.lastFlush[sourceTag] = time.Now()
	return true
}

// Close flushes and releases the underlying file handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}
