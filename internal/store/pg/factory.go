package pg

import (
	"fmt"

	"github.com/nextlevelbuilder/clawlite/internal/store"
)

// NewPGSessionStoreFromDSN opens a Postgres connection and wraps it as a
// store.SessionStore. This is the alternative to the default JSONL session
// store for operators who want sessions durable across a disk wipe.
func NewPGSessionStoreFromDSN(dsn string) (store.SessionStore, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPGSessionStore(db), nil
}
