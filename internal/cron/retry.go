package cron

import "time"

// RetryConfig bounds retries of a fired job's engine invocation. Per spec
// §7, a provider failure inside a scheduled run logs and continues rather
// than removing the job — RetryConfig governs how many immediate retries
// are attempted before that failure is logged and the tick moves on.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig is used when a CronStore is constructed with a nil
// RetryConfig (matching the teacher's `cron.NewService(path, nil)` call
// site, where nil selects sane defaults).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

func (r RetryConfig) delayFor(attempt int) time.Duration {
	d := r.BaseDelay << attempt
	if d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}
