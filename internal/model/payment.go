package model

import "time"

// PaymentStatus enumerates payments.status.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentSuccess  PaymentStatus = "Success"
	PaymentFailed   PaymentStatus = "Failed"
	PaymentRefunded PaymentStatus = "Refunded"
)

// PaymentKind distinguishes what a payment row records.
type PaymentKind string

const (
	PaymentSettlement PaymentKind = "Settlement" // balance debited to settle a booking
	PaymentTopUp      PaymentKind = "TopUp"      // money credited to the balance
	PaymentRefund     PaymentKind = "Refund"     // settlement returned to the balance
)

// PaymentMethod enumerates payments.method.
type PaymentMethod string

const (
	MethodBalance PaymentMethod = "Balance"
	MethodMpesa   PaymentMethod = "Mpesa"
	MethodBank    PaymentMethod = "Bank"
	MethodCash    PaymentMethod = "Cash"
)

// Manual reports whether a method needs an administrator to confirm that
// the money arrived before the balance is credited.
func (m PaymentMethod) Manual() bool { return m == MethodBank || m == MethodCash }

// Payment is a single money movement on a student's account.
type Payment struct {
	ID              uint64        `db:"id" json:"id"`
	ReferenceNumber string        `db:"reference_number" json:"reference_number"`
	UserID          uint64        `db:"user_id" json:"user_id"`
	BookingID       *uint64       `db:"booking_id" json:"booking_id,omitempty"`
	Kind            PaymentKind   `db:"kind" json:"kind"`
	AmountCents     int64         `db:"amount_cents" json:"amount_cents"`
	Method          PaymentMethod `db:"method" json:"method"`
	Status          PaymentStatus `db:"status" json:"status"`
	TransactionRef  *string       `db:"transaction_ref" json:"transaction_ref,omitempty"`
	PaidAt          *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}
