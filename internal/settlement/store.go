package settlement

import (
	"context"
	"time"

	"github.com/iliyamo/hostel-booking/internal/model"
)

// Store runs settlement work inside a single database transaction.  fn's
// error rolls the transaction back; a nil error commits it.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of row operations one settlement transaction needs.  The
// Lock* methods take an exclusive row lock held until commit or rollback.
// Implementations return the package's sentinel errors for missing rows.
type Tx interface {
	LockRoom(ctx context.Context, roomID uint64) (model.Room, error)
	CountRoomHolds(ctx context.Context, roomID uint64) (int, error)

	LockProfile(ctx context.Context, userID uint64) (model.Profile, error)
	HasActiveBooking(ctx context.Context, userID uint64, today time.Time) (bool, error)
	AdjustBalance(ctx context.Context, userID uint64, deltaCents int64) error
	DeleteStudent(ctx context.Context, userID uint64) error

	LockBooking(ctx context.Context, bookingID uint64) (model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	UpdateBooking(ctx context.Context, bookingID uint64, status model.BookingStatus, paymentRef *string) error
	LockExpiredConfirmed(ctx context.Context, today time.Time) ([]model.Booking, error)

	LockPayment(ctx context.Context, paymentID uint64) (model.Payment, error)
	PaymentByReference(ctx context.Context, ref string) (model.Payment, error)
	InsertPayment(ctx context.Context, p *model.Payment) error
	UpdatePaymentStatus(ctx context.Context, paymentID uint64, status model.PaymentStatus, paidAt *time.Time) error

	AllocationByBooking(ctx context.Context, bookingID uint64) (*model.Allocation, error)
	InsertAllocation(ctx context.Context, a *model.Allocation) error
	EndAllocation(ctx context.Context, bookingID uint64, day time.Time) error
}
