package store

import "github.com/google/uuid"

// GenNewID returns a fresh random identifier, used to mint span and job ids.
func GenNewID() uuid.UUID {
	return uuid.New()
}
