// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// BookingEventsQueue is the durable queue every booking lifecycle event is
// routed to through the default exchange.
const BookingEventsQueue = "booking.events"

// Event types carried in BookingEvent.Type.
const (
	EventBookingPending   = "booking.pending"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
	EventPaymentTopUp     = "payment.topup"
)

// BookingEvent is published after a settlement transaction commits.  It
// carries enough information for downstream consumers to log, notify or
// feed analytics without querying the primary database.
type BookingEvent struct {
	Type             string `json:"type"`
	BookingID        uint64 `json:"booking_id,omitempty"`
	BookingRef       string `json:"booking_ref,omitempty"`
	UserID           uint64 `json:"user_id"`
	RoomID           uint64 `json:"room_id,omitempty"`
	PaymentRef       string `json:"payment_ref,omitempty"`
	AmountCents      int64  `json:"amount_cents,omitempty"`
	BalanceCents     int64  `json:"balance_cents"`
	AllocationStart  string `json:"allocation_start,omitempty"`
	AllocationVacate string `json:"allocation_vacate,omitempty"`
	OccurredAt       string `json:"occurred_at"`
}
