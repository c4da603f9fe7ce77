// Package cron implements the CronJob table and fire loop of spec §4.4:
// expression grammar `every <N>` | `at <RFC3339>` | 5-field cron, 1s tick
// granularity, per-job overlap suppression, and one-shot deletion. No
// source for this package exists in the retrieval pack — only its call
// sites (cmd/gateway_cron.go, cmd/gateway.go) — so it is built from those
// signatures: `cron.NewService(path, retryCfg)`,
// `cron.RetryConfig{MaxRetries,BaseDelay,MaxDelay}`.
package cron

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/clawlite/internal/store"
)

// Service is the embedded, SQLite-backed CronStore implementation.
// state/cron.db matches spec §6's filesystem layout; "any small embedded
// store is acceptable" per spec, and modernc.org/sqlite (pure Go, no cgo)
// is the teacher's own embedded-store dependency.
type Service struct {
	db  *sql.DB
	loc *time.Location

	retry RetryConfig

	mu      sync.Mutex
	jobs    map[string]*store.CronJob
	locks   map[string]*sync.Mutex // per-job overlap-suppression locks

	onJob store.CronJobHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService opens (creating if absent) the SQLite-backed cron table at
// path. A nil retry uses DefaultRetryConfig().
func NewService(path string, retry *RetryConfig) (*Service, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cron db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cron db: %w", err)
	}

	rc := DefaultRetryConfig()
	if retry != nil {
		rc = *retry
	}

	s := &Service{
		db:    db,
		loc:   time.Local,
		retry: rc,
		jobs:  make(map[string]*store.CronJob),
		locks: make(map[string]*sync.Mutex),
	}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cron_jobs (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL
);`

// SetTimezone configures the location 5-field cron expressions are
// evaluated in. Defaults to time.Local.
func (s *Service) SetTimezone(loc *time.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loc = loc
}

// SetOnJob registers the handler invoked when a job fires.
func (s *Service) SetOnJob(handler store.CronJobHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJob = handler
}

// SetRetryConfig overrides the retry policy after construction. Matches
// the teacher's `cronStore.(interface{ SetRetryConfig(cron.RetryConfig) })`
// optional-configuration call site.
func (s *Service) SetRetryConfig(cfg RetryConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retry = cfg
}

// Add validates job.Expression, computes its first NextFireAt, assigns an
// id if absent, persists it, and returns the id.
func (s *Service) Add(job store.CronJob) (string, error) {
	now := time.Now().UTC()
	parsed, err := parseExpression(job.Expression, now)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	loc := s.loc
	s.mu.Unlock()

	next, err := parsed.nextFireAfter(now, loc)
	if err != nil {
		return "", err
	}

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Enabled = true
	job.CreatedAt = now
	job.NextFireAt = next

	if err := s.persist(&job); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.jobs[job.ID] = &job
	s.locks[job.ID] = &sync.Mutex{}
	s.mu.Unlock()

	return job.ID, nil
}

// List returns jobs for sessionID, or all jobs if sessionID is empty.
func (s *Service) List(sessionID string) []store.CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.CronJob
	for _, j := range s.jobs {
		if sessionID == "" || j.SessionID == sessionID {
			out = append(out, *j)
		}
	}
	return out
}

// Remove deletes a job by id. An unknown id returns a plain "not found"
// error.
func (s *Service) Remove(jobID string) error {
	s.mu.Lock()
	_, ok := s.jobs[jobID]
	if ok {
		delete(s.jobs, jobID)
		delete(s.locks, jobID)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("cron job %s not found", jobID)
	}
	_, err := s.db.Exec(`DELETE FROM cron_jobs WHERE id = ?`, jobID)
	return err
}

// Start begins the 1s-granularity tick loop.
func (s *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.tick(now.UTC())
			}
		}
	}()
	return nil
}

// Stop halts the tick loop and waits for any in-flight tick to finish.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// tick selects every enabled, due job and fires it concurrently, each
// guarded by its own per-job lock (overlap suppression: a still-firing job
// is skipped this tick, matching spec §4.4 step 1).
func (s *Service) tick(now time.Time) {
	s.mu.Lock()
	var due []*store.CronJob
	for _, j := range s.jobs {
		if j.Enabled && !j.NextFireAt.After(now) {
			due = append(due, j)
		}
	}
	handler := s.onJob
	s.mu.Unlock()

	if handler == nil {
		return
	}

	for _, job := range due {
		s.mu.Lock()
		lock := s.locks[job.ID]
		s.mu.Unlock()
		if lock == nil {
			continue
		}
		if !lock.TryLock() {
			// Overlap suppression: previous firing still in progress.
			s.advance(job, now)
			continue
		}
		go func(j *store.CronJob, l *sync.Mutex) {
			defer l.Unlock()
			s.fire(j, now)
		}(job, lock)
	}
}

func (s *Service) fire(job *store.CronJob, now time.Time) {
	slog.Info("cron.fire.started", "job_id", job.ID, "name", job.Name)

	s.mu.Lock()
	handler := s.onJob
	retry := s.retry
	s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retry.delayFor(attempt - 1))
		}
		_, err := handler(job)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
	}
	if lastErr != nil {
		slog.Error("cron.fire.failed", "job_id", job.ID, "error", lastErr)
	}

	s.mu.Lock()
	job.LastFireAt = now
	s.mu.Unlock()

	s.advance(job, now)
}

// advance computes the job's next fire time (deleting it if one-shot) and
// persists the change.
func (s *Service) advance(job *store.CronJob, now time.Time) {
	// Validate against the creation time: a fired 'at' job's timestamp is no
	// longer in the future relative to now.
	parsed, err := parseExpression(job.Expression, job.CreatedAt)
	if err != nil {
		slog.Error("cron.advance.invalid_expression", "job_id", job.ID, "error", err)
		return
	}

	if parsed.isOneShot() {
		_ = s.Remove(job.ID)
		return
	}

	s.mu.Lock()
	loc := s.loc
	s.mu.Unlock()

	next, err := parsed.nextFireAfter(now, loc)
	if err != nil {
		slog.Error("cron.advance.failed", "job_id", job.ID, "error", err)
		return
	}

	s.mu.Lock()
	job.NextFireAt = next
	cp := *job
	s.mu.Unlock()

	if err := s.persist(&cp); err != nil {
		slog.Error("cron.persist.failed", "job_id", job.ID, "error", err)
	}
}

func (s *Service) persist(job *store.CronJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO cron_jobs(id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		job.ID, string(data),
	)
	return err
}

func (s *Service) loadAll() error {
	rows, err := s.db.Query(`SELECT data FROM cron_jobs`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		var job store.CronJob
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			slog.Warn("cron.load.skip_corrupt_row", "error", err)
			continue
		}
		s.jobs[job.ID] = &job
		s.locks[job.ID] = &sync.Mutex{}
	}
	return rows.Err()
}

var _ store.CronStore = (*Service)(nil)
