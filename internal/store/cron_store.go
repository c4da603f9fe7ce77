package store

import "time"

// CronJob is a scheduled prompt invocation (spec §3's CronJob data model).
type CronJob struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	AgentID    string    `json:"agent_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Prompt     string     `json:"prompt"`
	Enabled    bool      `json:"enabled"`
	NextFireAt time.Time `json:"next_fire_at"`
	LastFireAt time.Time `json:"last_fire_at,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	Payload CronJobPayload `json:"payload,omitempty"`
}

// CronJobPayload carries delivery instructions for a fired job's result.
type CronJobPayload struct {
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
	Deliver bool   `json:"deliver,omitempty"`
	Message string `json:"message,omitempty"`
}

// CronJobResult is what a fired job's engine invocation produced.
type CronJobResult struct {
	Content      string `json:"content"`
	InputTokens  int64  `json:"input_tokens,omitempty"`
	OutputTokens int64  `json:"output_tokens,omitempty"`
}

// CronJobHandler runs a fired job and returns its result. Implemented by
// the scheduler-backed handler in cmd/gateway_cron.go.
type CronJobHandler func(job *CronJob) (*CronJobResult, error)

// CronStore manages the persistent cron job table and drives the fire loop.
type CronStore interface {
	Add(job CronJob) (string, error)
	List(sessionID string) []CronJob
	Remove(jobID string) error
	SetOnJob(handler CronJobHandler)
	Start() error
	Stop()
}
