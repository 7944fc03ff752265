package seatlock

import "errors"

var (
	ErrSeatNotFound  = errors.New("seat not found")
	ErrSeatConflict  = errors.New("seat is held by another actor")
	ErrNotLocked     = errors.New("seat is not locked")
	ErrNotLockHolder = errors.New("actor did not lock this seat")
	ErrRateLimited   = errors.New("rate limited")
)
