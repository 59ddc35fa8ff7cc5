package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/hostel-booking/internal/model"
	"github.com/iliyamo/hostel-booking/internal/settlement"
)

// SettlementStore runs settlement transactions on MySQL.  Rows read through
// the Lock* methods are selected FOR UPDATE, so InnoDB holds an exclusive
// lock on them until the transaction ends.
type SettlementStore struct {
	db *sql.DB
}

// NewSettlementStore returns a store bound to db.
func NewSettlementStore(db *sql.DB) *SettlementStore { return &SettlementStore{db: db} }

// settlementTxOptions runs settlement at READ COMMITTED.  InnoDB's default
// REPEATABLE READ would answer plain reads made after a lock wait from the
// snapshot taken before it, hiding rows committed by the lock holder.
var settlementTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// WithinTx begins a transaction, runs fn and commits when fn succeeds.
// Any error, including a failed commit, leaves the transaction rolled back.
func (s *SettlementStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx settlement.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, settlementTxOptions)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &settlementTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type settlementTx struct{ tx *sql.Tx }

type rowScanner interface {
	Scan(dest ...any) error
}

const bookingColumns = `b.id, b.reference_number, b.user_id, b.room_id, b.status, b.payment_reference, b.booked_at, b.updated_at`

func scanBooking(row rowScanner) (model.Booking, error) {
	var (
		b   model.Booking
		ref sql.NullString
	)
	err := row.Scan(&b.ID, &b.ReferenceNumber, &b.UserID, &b.RoomID, &b.Status, &ref, &b.BookedAt, &b.UpdatedAt)
	if ref.Valid {
		b.PaymentReference = &ref.String
	}
	return b, err
}

const paymentColumns = `id, reference_number, user_id, booking_id, kind, amount_cents, method, status, transaction_ref, paid_at, created_at`

func scanPayment(row rowScanner) (model.Payment, error) {
	var (
		p         model.Payment
		bookingID sql.NullInt64
		txRef     sql.NullString
		paidAt    sql.NullTime
	)
	err := row.Scan(&p.ID, &p.ReferenceNumber, &p.UserID, &bookingID, &p.Kind, &p.AmountCents,
		&p.Method, &p.Status, &txRef, &paidAt, &p.CreatedAt)
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		p.BookingID = &id
	}
	if txRef.Valid {
		p.TransactionRef = &txRef.String
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return p, err
}

func (t *settlementTx) LockRoom(ctx context.Context, roomID uint64) (model.Room, error) {
	const q = `SELECT id, hostel_id, room_number, room_type, capacity, price_cents, created_at, updated_at
FROM rooms WHERE id = ? FOR UPDATE`
	var r model.Room
	err := t.tx.QueryRowContext(ctx, q, roomID).Scan(&r.ID, &r.HostelID, &r.RoomNumber, &r.RoomType,
		&r.Capacity, &r.PriceCents, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Room{}, settlement.ErrRoomNotFound
	}
	return r, err
}

func (t *settlementTx) CountRoomHolds(ctx context.Context, roomID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings WHERE room_id = ? AND status IN ('Pending','Confirmed') LOCK IN SHARE MODE`
	var n int
	err := t.tx.QueryRowContext(ctx, q, roomID).Scan(&n)
	return n, err
}

func (t *settlementTx) LockProfile(ctx context.Context, userID uint64) (model.Profile, error) {
	const q = `SELECT user_id, student_number, emergency_contact, balance_cents, updated_at
FROM user_profiles WHERE user_id = ? FOR UPDATE`
	var p model.Profile
	err := t.tx.QueryRowContext(ctx, q, userID).Scan(&p.UserID, &p.StudentNumber, &p.EmergencyContact,
		&p.BalanceCents, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, settlement.ErrProfileNotFound
	}
	return p, err
}

// activeBookingCount counts bookings that still block a student from
// booking again: Pending ones, and Confirmed ones whose allocation is
// missing or has not reached its vacate date.  It is a locking read so it
// always sees the latest committed bookings.
const activeBookingCount = `SELECT COUNT(*)
FROM bookings b
LEFT JOIN allocations a ON a.booking_id = b.id
WHERE b.user_id = ?
  AND (b.status = 'Pending'
       OR (b.status = 'Confirmed' AND (a.id IS NULL OR a.vacate_date > ?)))
LOCK IN SHARE MODE`

func (t *settlementTx) HasActiveBooking(ctx context.Context, userID uint64, today time.Time) (bool, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, activeBookingCount, userID, settlement.Day(today)).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *settlementTx) AdjustBalance(ctx context.Context, userID uint64, deltaCents int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE user_profiles SET balance_cents = balance_cents + ? WHERE user_id = ?`, deltaCents, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return settlement.ErrProfileNotFound
	}
	return nil
}

func (t *settlementTx) DeleteStudent(ctx context.Context, userID uint64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE id = ? AND role = 'STUDENT'`, userID)
	return err
}

func (t *settlementTx) LockBooking(ctx context.Context, bookingID uint64) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ? FOR UPDATE`, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, settlement.ErrBookingNotFound
	}
	return b, err
}

func (t *settlementTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (reference_number, user_id, room_id, status, payment_reference, booked_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, b.ReferenceNumber, b.UserID, b.RoomID, b.Status,
		b.PaymentReference, b.BookedAt, b.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

func (t *settlementTx) UpdateBooking(ctx context.Context, bookingID uint64, status model.BookingStatus, paymentRef *string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_reference = ? WHERE id = ?`, status, paymentRef, bookingID)
	return err
}

func (t *settlementTx) LockExpiredConfirmed(ctx context.Context, today time.Time) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
FROM bookings b
JOIN allocations a ON a.booking_id = b.id
WHERE b.status = 'Confirmed' AND a.vacate_date <= ?
ORDER BY b.id
FOR UPDATE`
	rows, err := t.tx.QueryContext(ctx, q, settlement.Day(today))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *settlementTx) LockPayment(ctx context.Context, paymentID uint64) (model.Payment, error) {
	p, err := scanPayment(t.tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ? FOR UPDATE`, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, settlement.ErrPaymentNotFound
	}
	return p, err
}

func (t *settlementTx) PaymentByReference(ctx context.Context, ref string) (model.Payment, error) {
	p, err := scanPayment(t.tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE reference_number = ? FOR UPDATE`, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, settlement.ErrPaymentNotFound
	}
	return p, err
}

func (t *settlementTx) InsertPayment(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (reference_number, user_id, booking_id, kind, amount_cents, method, status, transaction_ref, paid_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, p.ReferenceNumber, p.UserID, p.BookingID, p.Kind, p.AmountCents,
		p.Method, p.Status, p.TransactionRef, p.PaidAt, p.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

func (t *settlementTx) UpdatePaymentStatus(ctx context.Context, paymentID uint64, status model.PaymentStatus, paidAt *time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, paid_at = ? WHERE id = ?`, status, paidAt, paymentID)
	return err
}

func (t *settlementTx) AllocationByBooking(ctx context.Context, bookingID uint64) (*model.Allocation, error) {
	const q = `SELECT id, booking_id, payment_id, start_date, vacate_date, created_at FROM allocations WHERE booking_id = ?`
	var (
		a         model.Allocation
		paymentID sql.NullInt64
	)
	err := t.tx.QueryRowContext(ctx, q, bookingID).Scan(&a.ID, &a.BookingID, &paymentID, &a.StartDate, &a.VacateDate, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		id := uint64(paymentID.Int64)
		a.PaymentID = &id
	}
	return &a, nil
}

func (t *settlementTx) InsertAllocation(ctx context.Context, a *model.Allocation) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO allocations (booking_id, payment_id, start_date, vacate_date) VALUES (?, ?, ?, ?)`,
		a.BookingID, a.PaymentID, settlement.Day(a.StartDate), settlement.Day(a.VacateDate))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// EndAllocation brings the vacate date of a booking's allocation back to
// day, never earlier than its start date.  Allocations already ended are left
// untouched.
func (t *settlementTx) EndAllocation(ctx context.Context, bookingID uint64, day time.Time) error {
	d := settlement.Day(day)
	_, err := t.tx.ExecContext(ctx,
		`UPDATE allocations SET vacate_date = GREATEST(start_date, ?) WHERE booking_id = ? AND vacate_date > ?`,
		d, bookingID, d)
	return err
}
