package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatLocked    SeatStatus = "locked"
	SeatReserved  SeatStatus = "reserved"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

type Event struct {
	ID          int64
	Name        string
	Description string
	Location    string
	StartsAt    time.Time
	TotalSeats  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Seat is the shared resource concurrent actors race for. Exactly one of
// {no holder}, {lock holder + lock deadline}, {reservation holder + optional
// reservation deadline} is populated, consistent with Status. Only the gated
// transitions in internal/repository may mutate these fields.
type Seat struct {
	ID                  int64
	EventID             int64
	Number              string
	Status              SeatStatus
	LockHolder          *int64
	LockDeadline        *time.Time
	ReservationID       *uuid.UUID
	ReservationHolder   *int64
	ReservationDeadline *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SeatView is a seat as surfaced to callers: the stored status plus the
// computed live-lock flag. Deadlines are absolute timestamps, never remaining
// durations.
type SeatView struct {
	Seat
	Locked bool
}

type EventCounts struct {
	Available int64
	Locked    int64
	Reserved  int64
	Total     int64
}

type EventSummary struct {
	Event
	Counts EventCounts
}

type Reservation struct {
	ID         uuid.UUID
	EventID    int64
	Actor      int64
	Status     ReservationStatus
	TotalCents int
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ReservationWithSeats struct {
	Reservation
	EventName   string
	SeatNumbers []string
}
