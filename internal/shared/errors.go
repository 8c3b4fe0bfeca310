package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrActorRequired indicates a mutating call without an actor identity.
	ErrActorRequired = errors.New("actor identity required")
)
