package domain

import "errors"

var (
	// ErrNoIdentity is returned when a session is started without an
	// authenticated identity.
	ErrNoIdentity = errors.New("no authenticated identity")
	// ErrRecordNotFound indicates a store lookup found no matching record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrPlayerNotFound indicates the eligibility record could not be loaded.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrSessionInProgress is returned when a player already has a running session.
	ErrSessionInProgress = errors.New("session already in progress")
)
