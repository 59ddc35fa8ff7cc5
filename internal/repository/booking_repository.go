package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/hostel-booking/internal/model"
)

// BookingRepo serves booking listings.  Writes go through the settlement
// store.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// BookingView joins a booking with its room, hostel, student and allocation.
type BookingView struct {
	model.Booking
	RoomNumber   string         `db:"room_number" json:"room_number"`
	RoomType     model.RoomType `db:"room_type" json:"room_type"`
	PriceCents   int64          `db:"price_cents" json:"price_cents"`
	HostelName   string         `db:"hostel_name" json:"hostel_name"`
	StudentName  string         `db:"student_name" json:"student_name"`
	StudentEmail string         `db:"student_email" json:"student_email"`
	StartDate    *time.Time     `db:"start_date" json:"start_date,omitempty"`
	VacateDate   *time.Time     `db:"vacate_date" json:"vacate_date,omitempty"`
}

const bookingViewQuery = `SELECT b.id, b.reference_number, b.user_id, b.room_id, b.status, b.payment_reference, b.booked_at, b.updated_at,
       r.room_number, r.room_type, r.price_cents, h.name AS hostel_name,
       CONCAT(u.first_name, ' ', u.last_name) AS student_name, u.email AS student_email,
       a.start_date, a.vacate_date
FROM bookings b
JOIN rooms r ON r.id = b.room_id
JOIN hostels h ON h.id = r.hostel_id
JOIN users u ON u.id = b.user_id
LEFT JOIN allocations a ON a.booking_id = b.id`

// statusFilter renders a booking status filter.  "completed" also matches
// confirmed bookings whose allocation has already ended.
func statusFilter(status string, today time.Time) (string, []any, bool) {
	switch strings.ToLower(status) {
	case "":
		return "", nil, true
	case "completed":
		return "(b.status = 'Completed' OR (b.status = 'Confirmed' AND a.vacate_date <= ?))", []any{today}, true
	}
	s := model.BookingStatus(strings.ToUpper(status[:1]) + strings.ToLower(status[1:]))
	if !s.Valid() {
		return "", nil, false
	}
	return "b.status = ?", []any{s}, true
}

// ListByUser returns a student's bookings, newest first.  An unknown status
// yields an empty list.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64, status string, today time.Time) ([]BookingView, error) {
	cond, args, ok := statusFilter(status, today)
	out := []BookingView{}
	if !ok {
		return out, nil
	}
	q := bookingViewQuery + ` WHERE b.user_id = ?`
	args = append([]any{userID}, args...)
	if cond != "" {
		q += " AND " + cond
	}
	q += ` ORDER BY b.booked_at DESC, b.id DESC`
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every booking for administrators, newest first.
func (r *BookingRepo) List(ctx context.Context, status string, today time.Time) ([]BookingView, error) {
	cond, args, ok := statusFilter(status, today)
	out := []BookingView{}
	if !ok {
		return out, nil
	}
	q := bookingViewQuery
	if cond != "" {
		q += " WHERE " + cond
	}
	q += ` ORDER BY b.booked_at DESC, b.id DESC`
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a booking or ErrNotFound.  When ownerID is non-zero a booking
// of another user yields ErrForbidden.
func (r *BookingRepo) Get(ctx context.Context, id, ownerID uint64) (BookingView, error) {
	var v BookingView
	err := r.db.GetContext(ctx, &v, bookingViewQuery+` WHERE b.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return BookingView{}, ErrNotFound
	}
	if err != nil {
		return BookingView{}, err
	}
	if ownerID != 0 && v.UserID != ownerID {
		return BookingView{}, ErrForbidden
	}
	return v, nil
}
