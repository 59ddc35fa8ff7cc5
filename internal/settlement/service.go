// Package settlement implements the booking and payment settlement flow:
// reserving a room, checking and debiting a student's balance, recording
// the payment and allocating occupancy dates.  Each operation runs in one
// Store transaction; row locks taken in the order booking, room, profile
// keep concurrent requests for the same room or account consistent.
package settlement

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hostel-booking/internal/model"
	"github.com/iliyamo/hostel-booking/internal/queue"
	"github.com/iliyamo/hostel-booking/internal/utils"
)

// DefaultAllocationDays is the length of a self-service allocation.
const DefaultAllocationDays = 120

// Publisher delivers booking events after a transaction commits.
type Publisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Actor identifies who is asking for an operation.
type Actor struct {
	UserID uint64
	Admin  bool
}

// Result describes the rows written by a booking operation.  Payment and
// Allocation are nil when the booking was left Pending.  Balance is the
// student's balance after the operation.
type Result struct {
	Booking    model.Booking     `json:"booking"`
	Payment    *model.Payment    `json:"payment,omitempty"`
	Allocation *model.Allocation `json:"allocation,omitempty"`
	Balance    int64             `json:"balance_cents"`
	Settled    bool              `json:"settled"`
}

// TopUpRequest is the input of TopUp.  BookingID optionally names a Pending
// booking to settle once the credit lands.
type TopUpRequest struct {
	AmountCents    int64
	Method         model.PaymentMethod
	TransactionRef string
	BookingID      *uint64
}

// TopUpResult reports the top-up payment and, when a booking was settled in
// the same transaction, the settlement.
type TopUpResult struct {
	Payment model.Payment `json:"payment"`
	Balance int64         `json:"balance_cents"`
	Settled *Result       `json:"settled,omitempty"`
}

// AssignRequest is the input of Assign.
type AssignRequest struct {
	StudentID  uint64
	RoomID     uint64
	StartDate  time.Time
	VacateDate time.Time
}

// Service runs settlement operations against a Store.
type Service struct {
	store          Store
	pub            Publisher
	log            *zap.Logger
	allocationDays int
	now            func() time.Time
	ref            func(prefix string) string
}

// Option customises a Service.
type Option func(*Service)

// WithAllocationDays overrides DefaultAllocationDays.
func WithAllocationDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.allocationDays = days
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a Service.  pub and log may be nil.
func NewService(store Store, pub Publisher, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:          store,
		pub:            pub,
		log:            log,
		allocationDays: DefaultAllocationDays,
		now:            time.Now,
		ref:            utils.NewReference,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Book reserves roomID for userID.  When the balance covers the room price
// the booking is settled immediately and an allocation starting today is
// created; otherwise the booking is left Pending.
func (s *Service) Book(ctx context.Context, userID, roomID uint64) (Result, error) {
	var res Result
	today := Day(s.now())
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		res = Result{}
		room, err := s.lockAvailableRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		prof, err := s.lockEligibleProfile(ctx, tx, userID, today)
		if err != nil {
			return err
		}
		b, err := s.insertPending(ctx, tx, userID, roomID)
		if err != nil {
			return err
		}
		if CanDebit(prof.BalanceCents, room.PriceCents) != nil {
			res = Result{Booking: b, Balance: prof.BalanceCents}
			return nil
		}
		res, err = s.settle(ctx, tx, b, room.PriceCents, prof.BalanceCents, today, today.AddDate(0, 0, s.allocationDays))
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.publishResult(ctx, res)
	return res, nil
}

// Pay settles a Pending booking owned by userID from the balance.
func (s *Service) Pay(ctx context.Context, userID, bookingID uint64) (Result, error) {
	var res Result
	today := Day(s.now())
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return ErrForbidden
		}
		res, err = s.payLocked(ctx, tx, b, today)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.publishResult(ctx, res)
	return res, nil
}

// payLocked settles b, which the caller has locked, for a self-service
// allocation starting today.
func (s *Service) payLocked(ctx context.Context, tx Tx, b model.Booking, today time.Time) (Result, error) {
	if b.Status != model.BookingPending {
		return Result{}, ErrBookingNotPending
	}
	room, err := tx.LockRoom(ctx, b.RoomID)
	if err != nil {
		return Result{}, err
	}
	prof, err := tx.LockProfile(ctx, b.UserID)
	if err != nil {
		return Result{}, err
	}
	return s.settle(ctx, tx, b, room.PriceCents, prof.BalanceCents, today, today.AddDate(0, 0, s.allocationDays))
}

// TopUp credits the balance of userID.  Mpesa payments are confirmed
// immediately; Bank and Cash payments stay Pending until an administrator
// approves them.  When req.BookingID names a Pending booking and the credit
// was applied, the booking is settled in the same transaction if the new
// balance covers it.
func (s *Service) TopUp(ctx context.Context, userID uint64, req TopUpRequest) (TopUpResult, error) {
	if req.AmountCents <= 0 {
		return TopUpResult{}, ErrInvalidAmount
	}
	switch req.Method {
	case model.MethodMpesa, model.MethodBank, model.MethodCash:
	default:
		return TopUpResult{}, ErrInvalidMethod
	}
	var res TopUpResult
	today := Day(s.now())
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		res = TopUpResult{}
		var (
			booking *model.Booking
			room    model.Room
		)
		if req.BookingID != nil {
			b, err := tx.LockBooking(ctx, *req.BookingID)
			if err != nil {
				return err
			}
			if b.UserID != userID {
				return ErrForbidden
			}
			if b.Status == model.BookingPending {
				if room, err = tx.LockRoom(ctx, b.RoomID); err != nil {
					return err
				}
				booking = &b
			}
		}
		prof, err := tx.LockProfile(ctx, userID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		p := model.Payment{
			ReferenceNumber: s.ref(utils.RefTopUp),
			UserID:          userID,
			Kind:            model.PaymentTopUp,
			AmountCents:     req.AmountCents,
			Method:          req.Method,
			Status:          model.PaymentPending,
			CreatedAt:       now,
		}
		if booking != nil {
			bookingID := booking.ID
			p.BookingID = &bookingID
		}
		if req.TransactionRef != "" {
			ref := req.TransactionRef
			p.TransactionRef = &ref
		}
		if !req.Method.Manual() {
			p.Status = model.PaymentSuccess
			p.PaidAt = &now
		}
		if err := tx.InsertPayment(ctx, &p); err != nil {
			return err
		}
		res.Payment = p
		res.Balance = prof.BalanceCents
		if p.Status != model.PaymentSuccess {
			return nil
		}
		if err := tx.AdjustBalance(ctx, userID, req.AmountCents); err != nil {
			return err
		}
		res.Balance += req.AmountCents

		if booking == nil || CanDebit(res.Balance, room.PriceCents) != nil {
			return nil
		}
		settled, err := s.settle(ctx, tx, *booking, room.PriceCents, res.Balance, today, today.AddDate(0, 0, s.allocationDays))
		if err != nil {
			return err
		}
		res.Settled = &settled
		res.Balance = settled.Balance
		return nil
	})
	if err != nil {
		return TopUpResult{}, err
	}
	if res.Payment.Status == model.PaymentSuccess {
		s.publish(ctx, topUpEvent(res.Payment, res.Balance, s.now()))
	}
	if res.Settled != nil {
		s.publishResult(ctx, *res.Settled)
	}
	return res, nil
}

// Cancel cancels a Pending or Confirmed booking.  Students may only cancel
// their own bookings.  A settled booking's payment is refunded to the
// balance and its allocation ends today.  A Confirmed booking whose
// allocation has already ended cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, actor Actor, bookingID uint64) (Result, error) {
	var res Result
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !actor.Admin && b.UserID != actor.UserID {
			return ErrForbidden
		}
		res, err = s.cancelLocked(ctx, tx, b)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.publishResult(ctx, res)
	return res, nil
}

func (s *Service) cancelLocked(ctx context.Context, tx Tx, b model.Booking) (Result, error) {
	if !b.Status.HoldsRoom() {
		return Result{}, ErrNotCancellable
	}
	today := Day(s.now())
	if b.Status == model.BookingConfirmed {
		alloc, err := tx.AllocationByBooking(ctx, b.ID)
		if err != nil {
			return Result{}, err
		}
		// A stay that has run its term is completed, not refunded.
		if !IsActive(b, alloc, today) {
			return Result{}, ErrNotCancellable
		}
	}
	prof, err := tx.LockProfile(ctx, b.UserID)
	if err != nil {
		return Result{}, err
	}
	res := Result{Balance: prof.BalanceCents}

	if b.Status == model.BookingConfirmed {
		if b.PaymentReference != nil {
			paid, err := tx.PaymentByReference(ctx, *b.PaymentReference)
			if err != nil && !errors.Is(err, ErrPaymentNotFound) {
				return Result{}, err
			}
			if err == nil && paid.Kind == model.PaymentSettlement && paid.Status == model.PaymentSuccess {
				refund, err := s.refund(ctx, tx, b, paid)
				if err != nil {
					return Result{}, err
				}
				res.Payment = &refund
				res.Balance += refund.AmountCents
			}
		}
		if err := tx.EndAllocation(ctx, b.ID, today); err != nil {
			return Result{}, err
		}
	}
	if err := tx.UpdateBooking(ctx, b.ID, model.BookingCancelled, b.PaymentReference); err != nil {
		return Result{}, err
	}
	b.Status = model.BookingCancelled
	res.Booking = b
	return res, nil
}

// refund credits paid back to the balance, marks it Refunded and records
// the refund as its own payment row.
func (s *Service) refund(ctx context.Context, tx Tx, b model.Booking, paid model.Payment) (model.Payment, error) {
	if err := tx.AdjustBalance(ctx, b.UserID, paid.AmountCents); err != nil {
		return model.Payment{}, err
	}
	if err := tx.UpdatePaymentStatus(ctx, paid.ID, model.PaymentRefunded, paid.PaidAt); err != nil {
		return model.Payment{}, err
	}
	now := s.now().UTC()
	bookingID := b.ID
	ref := paid.ReferenceNumber
	p := model.Payment{
		ReferenceNumber: s.ref(utils.RefRefund),
		UserID:          b.UserID,
		BookingID:       &bookingID,
		Kind:            model.PaymentRefund,
		AmountCents:     paid.AmountCents,
		Method:          model.MethodBalance,
		Status:          model.PaymentSuccess,
		TransactionRef:  &ref,
		PaidAt:          &now,
		CreatedAt:       now,
	}
	if err := tx.InsertPayment(ctx, &p); err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

// Assign books a room for a student on administrator-chosen dates.  Unlike
// Book it never leaves a Pending booking behind: the balance must cover the
// room price.
func (s *Service) Assign(ctx context.Context, adminID uint64, req AssignRequest) (Result, error) {
	start, vacate := Day(req.StartDate), Day(req.VacateDate)
	if !vacate.After(start) {
		return Result{}, ErrInvalidDates
	}
	var res Result
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		room, err := s.lockAvailableRoom(ctx, tx, req.RoomID)
		if err != nil {
			return err
		}
		prof, err := s.lockEligibleProfile(ctx, tx, req.StudentID, Day(s.now()))
		if err != nil {
			return err
		}
		if err := CanDebit(prof.BalanceCents, room.PriceCents); err != nil {
			return err
		}
		b, err := s.insertPending(ctx, tx, req.StudentID, req.RoomID)
		if err != nil {
			return err
		}
		res, err = s.settle(ctx, tx, b, room.PriceCents, prof.BalanceCents, start, vacate)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.log.Info("room assigned",
		zap.Uint64("admin_id", adminID),
		zap.Uint64("student_id", req.StudentID),
		zap.Uint64("room_id", req.RoomID),
		zap.String("booking_ref", res.Booking.ReferenceNumber))
	s.publishResult(ctx, res)
	return res, nil
}

// SetBookingStatus applies an administrator's status change.  Confirming
// settles the booking from the balance, cancelling behaves like Cancel and
// completing ends the allocation today.
func (s *Service) SetBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) (Result, error) {
	var res Result
	today := Day(s.now())
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := CanTransition(b.Status, status); err != nil {
			return err
		}
		switch status {
		case model.BookingConfirmed:
			res, err = s.payLocked(ctx, tx, b, today)
		case model.BookingCancelled:
			res, err = s.cancelLocked(ctx, tx, b)
		case model.BookingCompleted:
			res, err = s.completeLocked(ctx, tx, b, today)
		}
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.publishResult(ctx, res)
	return res, nil
}

func (s *Service) completeLocked(ctx context.Context, tx Tx, b model.Booking, today time.Time) (Result, error) {
	if err := tx.EndAllocation(ctx, b.ID, today); err != nil {
		return Result{}, err
	}
	if err := tx.UpdateBooking(ctx, b.ID, model.BookingCompleted, b.PaymentReference); err != nil {
		return Result{}, err
	}
	b.Status = model.BookingCompleted
	alloc, err := tx.AllocationByBooking(ctx, b.ID)
	if err != nil {
		return Result{}, err
	}
	return Result{Booking: b, Allocation: alloc}, nil
}

// SetPaymentStatus approves or rejects a Pending top-up.  Approval credits
// the balance.
func (s *Service) SetPaymentStatus(ctx context.Context, paymentID uint64, status model.PaymentStatus) (model.Payment, error) {
	var (
		p       model.Payment
		balance int64
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		p, err = tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != model.PaymentPending || p.Kind != model.PaymentTopUp {
			return ErrInvalidTransition
		}
		switch status {
		case model.PaymentSuccess:
			prof, err := tx.LockProfile(ctx, p.UserID)
			if err != nil {
				return err
			}
			now := s.now().UTC()
			if err := tx.AdjustBalance(ctx, p.UserID, p.AmountCents); err != nil {
				return err
			}
			if err := tx.UpdatePaymentStatus(ctx, p.ID, model.PaymentSuccess, &now); err != nil {
				return err
			}
			p.Status, p.PaidAt = model.PaymentSuccess, &now
			balance = prof.BalanceCents + p.AmountCents
		case model.PaymentFailed:
			if err := tx.UpdatePaymentStatus(ctx, p.ID, model.PaymentFailed, nil); err != nil {
				return err
			}
			p.Status = model.PaymentFailed
		default:
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return model.Payment{}, err
	}
	if p.Status == model.PaymentSuccess {
		s.publish(ctx, topUpEvent(p, balance, s.now()))
	}
	return p, nil
}

// CompleteExpired marks Confirmed bookings whose allocation has ended on or
// before today as Completed and returns how many were updated.
func (s *Service) CompleteExpired(ctx context.Context, today time.Time) (int, error) {
	var done []model.Booking
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		done = nil
		expired, err := tx.LockExpiredConfirmed(ctx, Day(today))
		if err != nil {
			return err
		}
		for _, b := range expired {
			if err := tx.UpdateBooking(ctx, b.ID, model.BookingCompleted, b.PaymentReference); err != nil {
				return err
			}
			b.Status = model.BookingCompleted
			done = append(done, b)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, b := range done {
		s.publishResult(ctx, Result{Booking: b})
	}
	return len(done), nil
}

// DeleteStudent removes a student account.  Students holding an active
// booking or a positive balance are kept.
func (s *Service) DeleteStudent(ctx context.Context, studentID uint64) error {
	today := Day(s.now())
	return s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		prof, err := tx.LockProfile(ctx, studentID)
		if err != nil {
			return err
		}
		active, err := tx.HasActiveBooking(ctx, studentID, today)
		if err != nil {
			return err
		}
		if active {
			return ErrStudentHasActiveBooking
		}
		if prof.BalanceCents > 0 {
			return ErrStudentHasBalance
		}
		return tx.DeleteStudent(ctx, studentID)
	})
}

func (s *Service) lockAvailableRoom(ctx context.Context, tx Tx, roomID uint64) (model.Room, error) {
	room, err := tx.LockRoom(ctx, roomID)
	if err != nil {
		return model.Room{}, err
	}
	held, err := tx.CountRoomHolds(ctx, roomID)
	if err != nil {
		return model.Room{}, err
	}
	if err := CheckCapacity(held, room.Capacity); err != nil {
		return model.Room{}, err
	}
	return room, nil
}

// lockEligibleProfile locks the student's profile before checking for an
// active booking so that two bookings by the same student serialize here.
func (s *Service) lockEligibleProfile(ctx context.Context, tx Tx, userID uint64, today time.Time) (model.Profile, error) {
	prof, err := tx.LockProfile(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	active, err := tx.HasActiveBooking(ctx, userID, today)
	if err != nil {
		return model.Profile{}, err
	}
	if active {
		return model.Profile{}, ErrActiveBooking
	}
	return prof, nil
}

func (s *Service) insertPending(ctx context.Context, tx Tx, userID, roomID uint64) (model.Booking, error) {
	now := s.now().UTC()
	b := model.Booking{
		ReferenceNumber: s.ref(utils.RefBooking),
		UserID:          userID,
		RoomID:          roomID,
		Status:          model.BookingPending,
		BookedAt:        now,
		UpdatedAt:       now,
	}
	if err := tx.InsertBooking(ctx, &b); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// settle debits price from the balance, records the settlement payment,
// confirms b and allocates [start, vacate).  A free room confirms without a
// payment row.
func (s *Service) settle(ctx context.Context, tx Tx, b model.Booking, price, balance int64, start, vacate time.Time) (Result, error) {
	if err := CanDebit(balance, price); err != nil {
		return Result{}, err
	}
	res := Result{Balance: balance, Settled: true}
	alloc := model.Allocation{BookingID: b.ID, StartDate: start, VacateDate: vacate}

	if price > 0 {
		if err := tx.AdjustBalance(ctx, b.UserID, -price); err != nil {
			return Result{}, err
		}
		now := s.now().UTC()
		bookingID := b.ID
		p := model.Payment{
			ReferenceNumber: s.ref(utils.RefSettlement),
			UserID:          b.UserID,
			BookingID:       &bookingID,
			Kind:            model.PaymentSettlement,
			AmountCents:     price,
			Method:          model.MethodBalance,
			Status:          model.PaymentSuccess,
			PaidAt:          &now,
			CreatedAt:       now,
		}
		if err := tx.InsertPayment(ctx, &p); err != nil {
			return Result{}, err
		}
		ref := p.ReferenceNumber
		b.PaymentReference = &ref
		alloc.PaymentID = &p.ID
		res.Payment = &p
		res.Balance -= price
	}
	if err := tx.UpdateBooking(ctx, b.ID, model.BookingConfirmed, b.PaymentReference); err != nil {
		return Result{}, err
	}
	b.Status = model.BookingConfirmed
	if err := tx.InsertAllocation(ctx, &alloc); err != nil {
		return Result{}, err
	}
	res.Booking = b
	res.Allocation = &alloc
	return res, nil
}
