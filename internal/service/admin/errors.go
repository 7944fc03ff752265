package admin

import "errors"

var (
	ErrEventNotFound = errors.New("event not found")
	ErrEventConflict = errors.New("event already exists")
	ErrInvalidLayout = errors.New("invalid seat layout")
)
