// Package settlementtest provides an in-memory settlement.Store for tests.
// Transactions are serialized by a single mutex, which stands in for the
// row locks the MySQL store takes, and are rolled back by restoring a
// snapshot when the transaction function fails.
package settlementtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/hostel-booking/internal/model"
	"github.com/iliyamo/hostel-booking/internal/queue"
	"github.com/iliyamo/hostel-booking/internal/settlement"
)

// ErrNegativeBalance mirrors the balance CHECK constraint of the schema.
var ErrNegativeBalance = errors.New("balance_cents check constraint violated")

type state struct {
	rooms       map[uint64]model.Room
	profiles    map[uint64]model.Profile
	bookings    map[uint64]model.Booking
	payments    map[uint64]model.Payment
	allocations map[uint64]model.Allocation // keyed by booking id
	nextID      uint64
}

func (s state) clone() state {
	c := state{
		rooms:       make(map[uint64]model.Room, len(s.rooms)),
		profiles:    make(map[uint64]model.Profile, len(s.profiles)),
		bookings:    make(map[uint64]model.Booking, len(s.bookings)),
		payments:    make(map[uint64]model.Payment, len(s.payments)),
		allocations: make(map[uint64]model.Allocation, len(s.allocations)),
		nextID:      s.nextID,
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.allocations {
		c.allocations[k] = v
	}
	return c
}

// MemStore is a settlement.Store backed by maps.
type MemStore struct {
	mu sync.Mutex
	st state
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{st: state{}.clone()}
}

// WithinTx implements settlement.Store.
func (m *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx settlement.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.st.clone()
	if err := fn(ctx, &memTx{st: &m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// AddRoom stores r and returns its id.
func (m *MemStore) AddRoom(r model.Room) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.nextID++
	r.ID = m.st.nextID
	m.st.rooms[r.ID] = r
	return r.ID
}

// AddStudent creates a profile for userID with the given balance.
func (m *MemStore) AddStudent(userID uint64, balanceCents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.profiles[userID] = model.Profile{UserID: userID, BalanceCents: balanceCents}
}

// Balance returns the balance of userID and whether the profile exists.
func (m *MemStore) Balance(userID uint64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.profiles[userID]
	return p.BalanceCents, ok
}

// Booking returns a booking by id.
func (m *MemStore) Booking(id uint64) (model.Booking, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.st.bookings[id]
	return b, ok
}

// Bookings returns every booking ordered by id.
func (m *MemStore) Bookings() []model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, 0, len(m.st.bookings))
	for _, b := range m.st.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Payments returns every payment ordered by id.
func (m *MemStore) Payments() []model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Payment, 0, len(m.st.payments))
	for _, p := range m.st.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Allocation returns the allocation of a booking.
func (m *MemStore) Allocation(bookingID uint64) (model.Allocation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.allocations[bookingID]
	return a, ok
}

// Holds counts Pending and Confirmed bookings of a room.
func (m *MemStore) Holds(roomID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return holds(&m.st, roomID)
}

func holds(st *state, roomID uint64) int {
	n := 0
	for _, b := range st.bookings {
		if b.RoomID == roomID && b.Status.HoldsRoom() {
			n++
		}
	}
	return n
}

type memTx struct{ st *state }

func (t *memTx) id() uint64 {
	t.st.nextID++
	return t.st.nextID
}

func (t *memTx) LockRoom(_ context.Context, roomID uint64) (model.Room, error) {
	r, ok := t.st.rooms[roomID]
	if !ok {
		return model.Room{}, settlement.ErrRoomNotFound
	}
	return r, nil
}

func (t *memTx) CountRoomHolds(_ context.Context, roomID uint64) (int, error) {
	return holds(t.st, roomID), nil
}

func (t *memTx) LockProfile(_ context.Context, userID uint64) (model.Profile, error) {
	p, ok := t.st.profiles[userID]
	if !ok {
		return model.Profile{}, settlement.ErrProfileNotFound
	}
	return p, nil
}

func (t *memTx) HasActiveBooking(_ context.Context, userID uint64, today time.Time) (bool, error) {
	for _, b := range t.st.bookings {
		if b.UserID != userID {
			continue
		}
		var alloc *model.Allocation
		if a, ok := t.st.allocations[b.ID]; ok {
			alloc = &a
		}
		if settlement.IsActive(b, alloc, today) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) AdjustBalance(_ context.Context, userID uint64, delta int64) error {
	p, ok := t.st.profiles[userID]
	if !ok {
		return settlement.ErrProfileNotFound
	}
	if p.BalanceCents+delta < 0 {
		return ErrNegativeBalance
	}
	p.BalanceCents += delta
	t.st.profiles[userID] = p
	return nil
}

func (t *memTx) DeleteStudent(_ context.Context, userID uint64) error {
	delete(t.st.profiles, userID)
	for id, b := range t.st.bookings {
		if b.UserID == userID {
			delete(t.st.allocations, id)
			delete(t.st.bookings, id)
		}
	}
	for id, p := range t.st.payments {
		if p.UserID == userID {
			delete(t.st.payments, id)
		}
	}
	return nil
}

func (t *memTx) LockBooking(_ context.Context, bookingID uint64) (model.Booking, error) {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return model.Booking{}, settlement.ErrBookingNotFound
	}
	return b, nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	b.ID = t.id()
	t.st.bookings[b.ID] = *b
	return nil
}

func (t *memTx) UpdateBooking(_ context.Context, bookingID uint64, status model.BookingStatus, paymentRef *string) error {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return settlement.ErrBookingNotFound
	}
	b.Status = status
	b.PaymentReference = paymentRef
	t.st.bookings[bookingID] = b
	return nil
}

func (t *memTx) LockExpiredConfirmed(_ context.Context, today time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range t.st.bookings {
		a, ok := t.st.allocations[b.ID]
		if b.Status == model.BookingConfirmed && ok && !a.VacateDate.After(today) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) LockPayment(_ context.Context, paymentID uint64) (model.Payment, error) {
	p, ok := t.st.payments[paymentID]
	if !ok {
		return model.Payment{}, settlement.ErrPaymentNotFound
	}
	return p, nil
}

func (t *memTx) PaymentByReference(_ context.Context, ref string) (model.Payment, error) {
	for _, p := range t.st.payments {
		if p.ReferenceNumber == ref {
			return p, nil
		}
	}
	return model.Payment{}, settlement.ErrPaymentNotFound
}

func (t *memTx) InsertPayment(_ context.Context, p *model.Payment) error {
	p.ID = t.id()
	t.st.payments[p.ID] = *p
	return nil
}

func (t *memTx) UpdatePaymentStatus(_ context.Context, paymentID uint64, status model.PaymentStatus, paidAt *time.Time) error {
	p, ok := t.st.payments[paymentID]
	if !ok {
		return settlement.ErrPaymentNotFound
	}
	p.Status = status
	p.PaidAt = paidAt
	t.st.payments[paymentID] = p
	return nil
}

func (t *memTx) AllocationByBooking(_ context.Context, bookingID uint64) (*model.Allocation, error) {
	a, ok := t.st.allocations[bookingID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (t *memTx) InsertAllocation(_ context.Context, a *model.Allocation) error {
	a.ID = t.id()
	t.st.allocations[a.BookingID] = *a
	return nil
}

func (t *memTx) EndAllocation(_ context.Context, bookingID uint64, day time.Time) error {
	a, ok := t.st.allocations[bookingID]
	if !ok || !a.VacateDate.After(day) {
		return nil
	}
	if day.Before(a.StartDate) {
		day = a.StartDate
	}
	a.VacateDate = day
	t.st.allocations[bookingID] = a
	return nil
}

// Recorder is a settlement.Publisher that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	Err    error
}

// Publish implements settlement.Publisher.
func (r *Recorder) Publish(_ context.Context, ev queue.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []queue.BookingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.BookingEvent(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
