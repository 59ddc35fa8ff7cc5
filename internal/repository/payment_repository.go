package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/hostel-booking/internal/model"
)

// PaymentRepo serves payment listings.
type PaymentRepo struct {
	db *sqlx.DB
}

// NewPaymentRepo returns a PaymentRepo bound to db.
func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// PaymentView is a payment with its booking reference and payer.
type PaymentView struct {
	model.Payment
	BookingRef   *string `db:"booking_ref" json:"booking_ref,omitempty"`
	StudentEmail string  `db:"student_email" json:"student_email"`
}

const paymentViewQuery = `SELECT p.id, p.reference_number, p.user_id, p.booking_id, p.kind, p.amount_cents, p.method, p.status,
       p.transaction_ref, p.paid_at, p.created_at,
       b.reference_number AS booking_ref, u.email AS student_email
FROM payments p
JOIN users u ON u.id = p.user_id
LEFT JOIN bookings b ON b.id = p.booking_id`

// ListByUser returns a student's payments, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]PaymentView, error) {
	out := []PaymentView{}
	err := r.db.SelectContext(ctx, &out, paymentViewQuery+` WHERE p.user_id = ? ORDER BY p.created_at DESC, p.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every payment, optionally filtered by status, newest first.
func (r *PaymentRepo) List(ctx context.Context, status string) ([]PaymentView, error) {
	q := paymentViewQuery
	var args []any
	if status != "" {
		s := model.PaymentStatus(strings.ToUpper(status[:1]) + strings.ToLower(status[1:]))
		q += ` WHERE p.status = ?`
		args = append(args, s)
	}
	q += ` ORDER BY p.created_at DESC, p.id DESC`
	out := []PaymentView{}
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}
