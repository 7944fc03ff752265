package reservation

import (
	"errors"
	"fmt"
)

var (
	ErrNoSeatsSelected     = errors.New("no seats selected")
	ErrSeatsNotFound       = errors.New("some seats not found in event")
	ErrSeatsNotLocked      = errors.New("some seats are not locked by actor")
	ErrEventNotFound       = errors.New("event not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrNotOwner            = errors.New("actor does not own this reservation")
)

type SeatsNotLockedError struct {
	SeatIDs []int64
}

func (e SeatsNotLockedError) Error() string {
	return fmt.Sprintf("seats not locked by actor: %v", e.SeatIDs)
}

func (e SeatsNotLockedError) Unwrap() error {
	return ErrSeatsNotLocked
}
