package model

import "time"

// BookingStatus enumerates bookings.status.
type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCancelled BookingStatus = "Cancelled"
	BookingCompleted BookingStatus = "Completed"
)

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// HoldsRoom reports whether a booking in this status counts against the
// room's capacity.
func (s BookingStatus) HoldsRoom() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Booking links a student to a room.  PaymentReference points at the
// reference number of the payment that settled it, if any.
//
// Fields:
//
//	ID               – primary key identifier.
//	ReferenceNumber  – human facing reference, "BK" followed by 8 hex chars.
//	UserID           – student who owns the booking.
//	RoomID           – booked room.
//	Status           – Pending, Confirmed, Cancelled or Completed.
//	PaymentReference – settling payment's reference number (nullable).
//	BookedAt         – creation timestamp.
type Booking struct {
	ID               uint64        `db:"id" json:"id"`
	ReferenceNumber  string        `db:"reference_number" json:"reference_number"`
	UserID           uint64        `db:"user_id" json:"user_id"`
	RoomID           uint64        `db:"room_id" json:"room_id"`
	Status           BookingStatus `db:"status" json:"status"`
	PaymentReference *string       `db:"payment_reference" json:"payment_reference,omitempty"`
	BookedAt         time.Time     `db:"booked_at" json:"booked_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// Allocation is the occupancy window realised by a confirmed, paid
// booking.  Dates are calendar days in UTC; the student may stay until the
// day before VacateDate.
type Allocation struct {
	ID         uint64    `db:"id" json:"id"`
	BookingID  uint64    `db:"booking_id" json:"booking_id"`
	PaymentID  *uint64   `db:"payment_id" json:"payment_id,omitempty"`
	StartDate  time.Time `db:"start_date" json:"start_date"`
	VacateDate time.Time `db:"vacate_date" json:"vacate_date"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
