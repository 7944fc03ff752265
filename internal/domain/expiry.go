package domain

import "time"

// DeadlineExpired is the single expiry test shared by the inline gating
// checks, the read paths and the periodic reclaim sweep. Keeping it in one
// place is what guarantees the lazy and eager expiry paths can never
// disagree. A nil deadline never expires.
func DeadlineExpired(deadline *time.Time, now time.Time) bool {
	return deadline != nil && deadline.Before(now)
}

// LockLive reports whether s carries a lock that is still in force at now.
func (s *Seat) LockLive(now time.Time) bool {
	return s.Status == SeatLocked && !DeadlineExpired(s.LockDeadline, now)
}

// EffectivelyAvailable reports whether s can be claimed at now: either it is
// available, or it carries a lapsed lock or a lapsed provisional reservation
// that the sweep has not reclaimed yet.
func (s *Seat) EffectivelyAvailable(now time.Time) bool {
	switch s.Status {
	case SeatAvailable:
		return true
	case SeatLocked:
		return DeadlineExpired(s.LockDeadline, now)
	case SeatReserved:
		return DeadlineExpired(s.ReservationDeadline, now)
	default:
		return false
	}
}
