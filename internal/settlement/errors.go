package settlement

import "errors"

// Sentinel errors returned by Service.  Handlers translate them into HTTP
// status codes; anything else is an infrastructure failure.
var (
	ErrRoomNotFound            = errors.New("room not found")
	ErrRoomFull                = errors.New("room is not available")
	ErrProfileNotFound         = errors.New("student profile not found")
	ErrActiveBooking           = errors.New("student already has an active booking")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrBookingNotPending       = errors.New("booking is not pending")
	ErrNotCancellable          = errors.New("booking cannot be cancelled")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrInvalidMethod           = errors.New("unsupported payment method")
	ErrInvalidDates            = errors.New("vacate date must be after start date")
	ErrInvalidTransition       = errors.New("status transition not allowed")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrForbidden               = errors.New("forbidden")
	ErrStudentHasActiveBooking = errors.New("student has active bookings")
	ErrStudentHasBalance       = errors.New("student has a positive balance")
)
