package queue

import "time"

// ReservationEvent is published to the broker when a reservation is
// confirmed or cancelled, so downstream consumers (ticket issuance,
// analytics) can react without being in the request path.
type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	EventID       int64     `json:"event_id"`
	Actor         int64     `json:"actor"`
	SeatNumbers   []string  `json:"seat_numbers"`
	TotalCents    int       `json:"total_cents"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const (
	TypeReservationConfirmed = "reservation.confirmed"
	TypeReservationCancelled = "reservation.cancelled"
)
