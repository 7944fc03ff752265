package httpgin

import (
	"time"

	"github.com/ivankosh/seatwise/internal/domain"
)

type ReserveRequest struct {
	SeatIDs []int64 `json:"seat_ids" binding:"required,min=1,dive,required"`
}

type CreateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartsAt    string `json:"starts_at" binding:"required"`
	Rows        int    `json:"rows" binding:"required,gt=0"`
	SeatsPerRow int    `json:"seats_per_row" binding:"required,gt=0"`
}

type UpdateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// ErrorResponse carries a machine-readable kind next to the human message
// so clients can branch without parsing text.
type ErrorResponse struct {
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

type EventResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartsAt    string `json:"starts_at"`
	TotalSeats  int    `json:"total_seats"`
}

type CountsResponse struct {
	Available int64 `json:"available"`
	Locked    int64 `json:"locked"`
	Reserved  int64 `json:"reserved"`
	Total     int64 `json:"total"`
}

type EventSummaryResponse struct {
	EventResponse
	Counts CountsResponse `json:"counts"`
}

// SeatResponse exposes deadlines as absolute RFC3339 timestamps, never as
// remaining durations; clients compare against their own clock.
type SeatResponse struct {
	ID                  int64   `json:"id"`
	EventID             int64   `json:"event_id"`
	Number              string  `json:"number"`
	Status              string  `json:"status"`
	Locked              bool    `json:"locked"`
	LockHolder          *int64  `json:"lock_holder,omitempty"`
	LockDeadline        *string `json:"lock_deadline,omitempty"`
	ReservationID       *string `json:"reservation_id,omitempty"`
	ReservationDeadline *string `json:"reservation_deadline,omitempty"`
}

type ReservationResponse struct {
	ID          string   `json:"id"`
	EventID     int64    `json:"event_id"`
	EventName   string   `json:"event_name,omitempty"`
	Status      string   `json:"status"`
	SeatNumbers []string `json:"seat_numbers"`
	TotalCents  int      `json:"total_cents"`
	ExpiresAt   *string  `json:"expires_at,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

type CreateEventResponse struct {
	EventID int64 `json:"event_id"`
}

func toEventResponse(e *domain.Event) EventResponse {
	return EventResponse{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Location:    e.Location,
		StartsAt:    e.StartsAt.Format(time.RFC3339),
		TotalSeats:  e.TotalSeats,
	}
}

func toCountsResponse(c domain.EventCounts) CountsResponse {
	return CountsResponse{
		Available: c.Available,
		Locked:    c.Locked,
		Reserved:  c.Reserved,
		Total:     c.Total,
	}
}

func toSummaryResponses(in []domain.EventSummary) []EventSummaryResponse {
	out := make([]EventSummaryResponse, 0, len(in))
	for i := range in {
		out = append(out, EventSummaryResponse{
			EventResponse: toEventResponse(&in[i].Event),
			Counts:        toCountsResponse(in[i].Counts),
		})
	}
	return out
}

func toSeatResponse(s *domain.Seat, locked bool) SeatResponse {
	resp := SeatResponse{
		ID:      s.ID,
		EventID: s.EventID,
		Number:  s.Number,
		Status:  string(s.Status),
		Locked:  locked,
	}
	if locked {
		resp.LockHolder = s.LockHolder
		resp.LockDeadline = rfc3339Ptr(s.LockDeadline)
	}
	if s.ReservationID != nil {
		id := s.ReservationID.String()
		resp.ReservationID = &id
		resp.ReservationDeadline = rfc3339Ptr(s.ReservationDeadline)
	}
	return resp
}

func toSeatResponses(in []domain.SeatView) []SeatResponse {
	out := make([]SeatResponse, 0, len(in))
	for i := range in {
		out = append(out, toSeatResponse(&in[i].Seat, in[i].Locked))
	}
	return out
}

func toReservationResponse(r *domain.ReservationWithSeats) ReservationResponse {
	return ReservationResponse{
		ID:          r.ID.String(),
		EventID:     r.EventID,
		EventName:   r.EventName,
		Status:      string(r.Status),
		SeatNumbers: r.SeatNumbers,
		TotalCents:  r.TotalCents,
		ExpiresAt:   rfc3339Ptr(r.ExpiresAt),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

func toReservationResponses(in []domain.ReservationWithSeats) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(in))
	for i := range in {
		out = append(out, toReservationResponse(&in[i]))
	}
	return out
}

func rfc3339Ptr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
