package repository

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("actor does not hold this claim")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNotLocked        = errors.New("seat is not locked")
	ErrNotLockedByActor = errors.New("seat is not locked by actor")
)
