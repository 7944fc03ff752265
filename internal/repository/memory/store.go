// Package memory implements the seat, reservation and event stores on plain
// process memory. Each seat lives behind its own mutex (a sharded lock table
// keyed by seat id), so the "lock a seat for five minutes" business concept
// and the momentary exclusive section that writes the deadline stay cleanly
// separated, the same split the postgres store gets from row locks.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivankosh/seatwise/internal/domain"
	"github.com/ivankosh/seatwise/internal/repository"
)

type seatEntry struct {
	mu   sync.Mutex
	seat domain.Seat
}

type reservationEntry struct {
	res         domain.Reservation
	seatIDs     []int64
	seatNumbers []string
}

// Store implements repository.SeatStore, repository.ReservationStore and
// repository.EventStore. The store-level mutex guards only the maps; it is
// never held while waiting on a seat mutex, and a seat mutex is held only
// for the duration of one check-then-set.
type Store struct {
	mu           sync.RWMutex
	events       map[int64]*domain.Event
	seats        map[int64]*seatEntry
	seatsByEvent map[int64][]int64
	reservations map[uuid.UUID]*reservationEntry
	nextEventID  int64
	nextSeatID   int64
}

func NewStore() *Store {
	return &Store{
		events:       make(map[int64]*domain.Event),
		seats:        make(map[int64]*seatEntry),
		seatsByEvent: make(map[int64][]int64),
		reservations: make(map[uuid.UUID]*reservationEntry),
	}
}

func (s *Store) seatEntry(eventID, seatID int64) (*seatEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.seats[seatID]
	if !ok || e.seat.EventID != eventID {
		return nil, repository.ErrNotFound
	}

	return e, nil
}

// AcquireLock claims a seat for actor until the given deadline. The gate and
// the write run under the seat's mutex, so two racing callers cannot both
// observe the seat as available.
func (s *Store) AcquireLock(
	ctx context.Context,
	eventID, seatID, actor int64,
	until time.Time,
) (*domain.Seat, error) {
	e, err := s.seatEntry(eventID, seatID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := repository.AcquireSeatLock(&e.seat, actor, until, time.Now()); err != nil {
		return nil, err
	}

	snapshot := e.seat

	return &snapshot, nil
}

// ReleaseLock returns a seat locked by actor to available.
func (s *Store) ReleaseLock(ctx context.Context, eventID, seatID, actor int64) error {
	e, err := s.seatEntry(eventID, seatID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return repository.ReleaseSeatLock(&e.seat, actor, time.Now())
}

// ExpireLocks reclaims every seat with a lapsed lock. Each seat transition
// is individually atomic under that seat's mutex; a seat reclaimed by a
// concurrent sweep is simply skipped.
func (s *Store) ExpireLocks(ctx context.Context) (int64, error) {
	var released int64

	for _, e := range s.snapshotSeats() {
		now := time.Now()

		e.mu.Lock()
		if e.seat.Status == domain.SeatLocked && domain.DeadlineExpired(e.seat.LockDeadline, now) {
			repository.ReleaseSeatReservation(&e.seat, now)
			released++
		}
		e.mu.Unlock()
	}

	return released, nil
}

// ExpireReservations cancels provisional reservations past their deadline
// and reclaims their seats.
func (s *Store) ExpireReservations(ctx context.Context) (int64, error) {
	now := time.Now()

	s.mu.Lock()
	var expired []*reservationEntry
	for _, re := range s.reservations {
		if re.res.Status == domain.ReservationConfirmed && domain.DeadlineExpired(re.res.ExpiresAt, now) {
			re.res.Status = domain.ReservationCancelled
			re.res.UpdatedAt = now
			expired = append(expired, re)
		}
	}
	s.mu.Unlock()

	var released int64
	for _, re := range expired {
		released += s.releaseReservationSeats(re.res.ID, re.seatIDs)
	}

	return released, nil
}

// releaseReservationSeats resets every seat still reserved under the given
// reservation. Seats already reclaimed or re-claimed by another actor are
// left alone.
func (s *Store) releaseReservationSeats(id uuid.UUID, seatIDs []int64) int64 {
	var released int64

	for _, seatID := range seatIDs {
		s.mu.RLock()
		e, ok := s.seats[seatID]
		s.mu.RUnlock()
		if !ok {
			continue
		}

		e.mu.Lock()
		if e.seat.Status == domain.SeatReserved && e.seat.ReservationID != nil && *e.seat.ReservationID == id {
			repository.ReleaseSeatReservation(&e.seat, time.Now())
			released++
		}
		e.mu.Unlock()
	}

	return released
}

// CreateReservation locks every target seat's mutex in ascending seat-id
// order, validates all of them, and only then mutates any. A validation
// failure releases the mutexes with no state change: all or nothing.
func (s *Store) CreateReservation(
	ctx context.Context,
	eventID, actor int64,
	seatIDs []int64,
	totalCents int,
	deadline *time.Time,
) (*domain.ReservationWithSeats, error) {
	if len(seatIDs) == 0 {
		return nil, repository.ErrInvalidRequest
	}

	ids := slices.Clone(seatIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	s.mu.RLock()
	ev, ok := s.events[eventID]
	var eventName string
	if ok {
		eventName = ev.Name
	}
	entries := make([]*seatEntry, 0, len(ids))
	for _, id := range ids {
		e, found := s.seats[id]
		if !found || e.seat.EventID != eventID {
			s.mu.RUnlock()
			return nil, repository.ErrNotFound
		}
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	if !ok {
		return nil, repository.ErrNotFound
	}

	for _, e := range entries {
		e.mu.Lock()
	}
	defer func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
	}()

	now := time.Now()
	for _, e := range entries {
		if !e.seat.LockLive(now) || e.seat.LockHolder == nil || *e.seat.LockHolder != actor {
			return nil, repository.ErrNotLockedByActor
		}
	}

	res := domain.Reservation{
		ID:         uuid.New(),
		EventID:    eventID,
		Actor:      actor,
		Status:     domain.ReservationConfirmed,
		TotalCents: totalCents,
		ExpiresAt:  deadline,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	numbers := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := repository.FinalizeSeatReservation(&e.seat, actor, res.ID, deadline, now); err != nil {
			return nil, err
		}
		numbers = append(numbers, e.seat.Number)
	}

	s.mu.Lock()
	s.reservations[res.ID] = &reservationEntry{
		res:         res,
		seatIDs:     ids,
		seatNumbers: numbers,
	}
	s.mu.Unlock()

	return &domain.ReservationWithSeats{
		Reservation: res,
		EventName:   eventName,
		SeatNumbers: numbers,
	}, nil
}

// CancelReservation marks a reservation cancelled and releases exactly the
// seats still reserved under it.
func (s *Store) CancelReservation(ctx context.Context, id uuid.UUID, actor int64) (int64, error) {
	s.mu.Lock()
	re, ok := s.reservations[id]
	if !ok {
		s.mu.Unlock()
		return 0, repository.ErrNotFound
	}

	if re.res.Actor != actor {
		s.mu.Unlock()
		return 0, repository.ErrUnauthorized
	}

	if re.res.Status == domain.ReservationCancelled {
		s.mu.Unlock()
		return 0, repository.ErrNotFound
	}

	re.res.Status = domain.ReservationCancelled
	re.res.UpdatedAt = time.Now()
	eventID := re.res.EventID
	seatIDs := slices.Clone(re.seatIDs)
	s.mu.Unlock()

	s.releaseReservationSeats(id, seatIDs)

	return eventID, nil
}

func (s *Store) ListByActor(ctx context.Context, actor int64) ([]domain.ReservationWithSeats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ReservationWithSeats
	for _, re := range s.reservations {
		if re.res.Actor != actor {
			continue
		}
		out = append(out, s.reservationViewLocked(re))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *Store) GetWithSeats(ctx context.Context, id uuid.UUID) (*domain.ReservationWithSeats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	re, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	rw := s.reservationViewLocked(re)

	return &rw, nil
}

func (s *Store) reservationViewLocked(re *reservationEntry) domain.ReservationWithSeats {
	var eventName string
	if ev, ok := s.events[re.res.EventID]; ok {
		eventName = ev.Name
	}

	return domain.ReservationWithSeats{
		Reservation: re.res,
		EventName:   eventName,
		SeatNumbers: slices.Clone(re.seatNumbers),
	}
}

func (s *Store) CreateEvent(ctx context.Context, ev domain.Event, seatNumbers []string) (int64, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	ev.ID = s.nextEventID
	ev.TotalSeats = len(seatNumbers)
	ev.CreatedAt = now
	ev.UpdatedAt = now
	s.events[ev.ID] = &ev

	for _, num := range seatNumbers {
		s.nextSeatID++
		s.seats[s.nextSeatID] = &seatEntry{seat: domain.Seat{
			ID:        s.nextSeatID,
			EventID:   ev.ID,
			Number:    num,
			Status:    domain.SeatAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		}}
		s.seatsByEvent[ev.ID] = append(s.seatsByEvent[ev.ID], s.nextSeatID)
	}

	return ev.ID, nil
}

func (s *Store) UpdateEventInfo(ctx context.Context, id int64, name, description, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return repository.ErrNotFound
	}

	ev.Name = name
	ev.Description = description
	ev.Location = location
	ev.UpdatedAt = time.Now()

	return nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	cp := *ev

	return &cp, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]domain.EventSummary, error) {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	slices.Sort(ids)

	var out []domain.EventSummary
	for _, id := range ids {
		ev, err := s.GetEvent(ctx, id)
		if err != nil {
			continue
		}
		counts, err := s.CountsByStatus(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, domain.EventSummary{Event: *ev, Counts: *counts})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})

	return out, nil
}

func (s *Store) CountsByStatus(ctx context.Context, eventID int64) (*domain.EventCounts, error) {
	views, err := s.ListEventSeats(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	var ec domain.EventCounts
	for _, sv := range views {
		switch {
		case sv.Seat.EffectivelyAvailable(now):
			ec.Available++
		case sv.Status == domain.SeatLocked:
			ec.Locked++
		case sv.Status == domain.SeatReserved:
			ec.Reserved++
		}
	}

	ec.Total = ec.Available + ec.Locked + ec.Reserved

	return &ec, nil
}

func (s *Store) ListEventSeats(ctx context.Context, eventID int64) ([]domain.SeatView, error) {
	s.mu.RLock()
	if _, ok := s.events[eventID]; !ok {
		s.mu.RUnlock()
		return nil, repository.ErrNotFound
	}

	entries := make([]*seatEntry, 0, len(s.seatsByEvent[eventID]))
	for _, id := range s.seatsByEvent[eventID] {
		entries = append(entries, s.seats[id])
	}
	s.mu.RUnlock()

	now := time.Now()

	out := make([]domain.SeatView, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		sv := domain.SeatView{Seat: e.seat, Locked: e.seat.LockLive(now)}
		e.mu.Unlock()
		out = append(out, sv)
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].Number, out[j].Number) < 0
	})

	return out, nil
}

func (s *Store) snapshotSeats() []*seatEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*seatEntry, 0, len(s.seats))
	for _, e := range s.seats {
		out = append(out, e)
	}

	return out
}
