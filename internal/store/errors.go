package store

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistenceUnavailable marks a failed read or write of the durable medium.
	// The in-memory document is still current; only durability was lost.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrInvalidDocument is returned when a document or change breaks a data model invariant
	ErrInvalidDocument = errors.New("invalid document")
)

// PersistenceError describes a degraded, non-fatal storage failure
type PersistenceError struct {
	Op  string // "load" or "save"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %q: %v: %v", e.Op, e.Key, ErrPersistenceUnavailable, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistenceUnavailable
}

// IsDegraded reports whether err only signals lost durability
func IsDegraded(err error) bool {
	return errors.Is(err, ErrPersistenceUnavailable)
}
