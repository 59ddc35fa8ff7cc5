package settlement

import (
	"time"

	"github.com/iliyamo/hostel-booking/internal/model"
)

// CheckCapacity returns ErrRoomFull when another booking would push the
// room past its capacity.  active counts Pending and Confirmed bookings.
func CheckCapacity(active int, capacity uint32) error {
	if active < 0 || uint64(active) >= uint64(capacity) {
		return ErrRoomFull
	}
	return nil
}

// IsActive reports whether a booking still blocks its student from booking
// again.  Pending bookings are always active.  Confirmed bookings are active
// until their allocation's vacate date has arrived; a confirmed booking
// without an allocation is treated as active.
func IsActive(b model.Booking, alloc *model.Allocation, today time.Time) bool {
	switch b.Status {
	case model.BookingPending:
		return true
	case model.BookingConfirmed:
		return alloc == nil || Day(alloc.VacateDate).After(Day(today))
	}
	return false
}

// CanDebit returns ErrInsufficientBalance when debiting amount would make
// the balance negative.
func CanDebit(balance, amount int64) error {
	if amount < 0 || balance < amount {
		return ErrInsufficientBalance
	}
	return nil
}

// bookingTransitions lists the status changes an administrator may request.
var bookingTransitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingPending:   {model.BookingConfirmed, model.BookingCancelled},
	model.BookingConfirmed: {model.BookingCancelled, model.BookingCompleted},
}

// CanTransition returns ErrInvalidTransition unless from -> to is allowed.
func CanTransition(from, to model.BookingStatus) error {
	for _, s := range bookingTransitions[from] {
		if s == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
