package settlement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hostel-booking/internal/model"
	"github.com/iliyamo/hostel-booking/internal/queue"
)

const dateLayout = "2006-01-02"

// publish hands ev to the publisher.  Delivery failures are logged and
// never surface to the caller: the transaction has already committed.
func (s *Service) publish(ctx context.Context, ev queue.BookingEvent) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Warn("publish booking event failed",
			zap.String("type", ev.Type),
			zap.Uint64("booking_id", ev.BookingID),
			zap.Error(err))
	}
}

func (s *Service) publishResult(ctx context.Context, res Result) {
	s.publish(ctx, bookingEvent(res, s.now()))
}

func bookingEvent(res Result, at time.Time) queue.BookingEvent {
	ev := queue.BookingEvent{
		BookingID:    res.Booking.ID,
		BookingRef:   res.Booking.ReferenceNumber,
		UserID:       res.Booking.UserID,
		RoomID:       res.Booking.RoomID,
		BalanceCents: res.Balance,
		OccurredAt:   at.UTC().Format(time.RFC3339),
	}
	switch res.Booking.Status {
	case model.BookingPending:
		ev.Type = queue.EventBookingPending
	case model.BookingConfirmed:
		ev.Type = queue.EventBookingConfirmed
	case model.BookingCancelled:
		ev.Type = queue.EventBookingCancelled
	case model.BookingCompleted:
		ev.Type = queue.EventBookingCompleted
	}
	if res.Payment != nil {
		ev.PaymentRef = res.Payment.ReferenceNumber
		ev.AmountCents = res.Payment.AmountCents
	}
	if res.Allocation != nil {
		ev.AllocationStart = res.Allocation.StartDate.Format(dateLayout)
		ev.AllocationVacate = res.Allocation.VacateDate.Format(dateLayout)
	}
	return ev
}

func topUpEvent(p model.Payment, balance int64, at time.Time) queue.BookingEvent {
	ev := queue.BookingEvent{
		Type:         queue.EventPaymentTopUp,
		UserID:       p.UserID,
		PaymentRef:   p.ReferenceNumber,
		AmountCents:  p.AmountCents,
		BalanceCents: balance,
		OccurredAt:   at.UTC().Format(time.RFC3339),
	}
	if p.BookingID != nil {
		ev.BookingID = *p.BookingID
	}
	return ev
}
