package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-booking/internal/model"
	"github.com/iliyamo/hostel-booking/internal/settlement"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var roomCols = []string{"id", "hostel_id", "room_number", "room_type", "capacity", "price_cents", "created_at", "updated_at"}
var profileCols = []string{"user_id", "student_number", "emergency_contact", "balance_cents", "updated_at"}

func TestBookThroughSettlementStoreCommits(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := settlement.NewService(NewSettlementStore(db), nil, nil,
		settlement.WithClock(func() time.Time { return now }))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM rooms WHERE id = \? FOR UPDATE`).WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows(roomCols).AddRow(4, 1, "A4", "Double", 2, 7000, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings WHERE room_id = ?`)).WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(`FROM user_profiles WHERE user_id = \? FOR UPDATE`).WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(9, "S-9", "", 10000, now))
	mock.ExpectQuery(`LEFT JOIN allocations a`).WithArgs(uint64(9), settlement.Day(now)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectExec(`UPDATE user_profiles SET balance_cents = balance_cents \+ \?`).
		WithArgs(int64(-7000), uint64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payments`).WillReturnResult(sqlmock.NewResult(55, 1))
	mock.ExpectExec(`UPDATE bookings SET status = \?`).
		WithArgs(model.BookingConfirmed, sqlmock.AnyArg(), uint64(31)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO allocations`).
		WithArgs(uint64(31), uint64(55), settlement.Day(now), settlement.Day(now).AddDate(0, 0, settlement.DefaultAllocationDays)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	res, err := svc.Book(context.Background(), 9, 4)
	require.NoError(t, err)
	assert.True(t, res.Settled)
	assert.Equal(t, uint64(31), res.Booking.ID)
	assert.Equal(t, int64(3000), res.Balance)
	require.NotNil(t, res.Payment)
	assert.Equal(t, uint64(55), res.Payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The capacity and one-active-booking checks must be locking reads so that
// a transaction resumed after a lock wait counts rows committed meanwhile.
func TestInvariantReadsAreLocking(t *testing.T) {
	require.NotNil(t, settlementTxOptions)
	assert.Equal(t, sql.LevelReadCommitted, settlementTxOptions.Isolation)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(activeBookingCount), "LOCK IN SHARE MODE"))

	db, mock := newMock(t)
	today := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE room_id = \? AND status IN \('Pending','Confirmed'\) LOCK IN SHARE MODE$`).
		WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectQuery(`(?s)LEFT JOIN allocations a.*vacate_date > \?\)\)\)\s*LOCK IN SHARE MODE$`).
		WithArgs(uint64(9), settlement.Day(today)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectCommit()

	err := NewSettlementStore(db).WithinTx(context.Background(), func(ctx context.Context, tx settlement.Tx) error {
		held, err := tx.CountRoomHolds(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, 2, held)
		active, err := tx.HasActiveBooking(ctx, 9, today)
		require.NoError(t, err)
		assert.True(t, active)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementStoreRollsBackWhenRoomFull(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	svc := settlement.NewService(NewSettlementStore(db), nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM rooms WHERE id = \? FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(roomCols).AddRow(4, 1, "A4", "Single", 1, 7000, now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE room_id`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.Book(context.Background(), 9, 4)
	assert.ErrorIs(t, err, settlement.ErrRoomFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementStoreMapsMissingRows(t *testing.T) {
	db, mock := newMock(t)
	store := NewSettlementStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM rooms`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx settlement.Tx) error {
		_, err := tx.LockRoom(ctx, 1)
		return err
	})
	assert.ErrorIs(t, err, settlement.ErrRoomNotFound)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM allocations WHERE booking_id`).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`UPDATE user_profiles`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	err = store.WithinTx(context.Background(), func(ctx context.Context, tx settlement.Tx) error {
		alloc, err := tx.AllocationByBooking(ctx, 3)
		require.NoError(t, err)
		assert.Nil(t, alloc)
		return tx.AdjustBalance(ctx, 77, 100)
	})
	assert.ErrorIs(t, err, settlement.ErrProfileNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndAllocationClampsToStart(t *testing.T) {
	db, mock := newMock(t)
	day := time.Date(2025, 5, 6, 15, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE allocations SET vacate_date = GREATEST(start_date, ?) WHERE booking_id = ? AND vacate_date > ?`)).
		WithArgs(settlement.Day(day), uint64(8), settlement.Day(day)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewSettlementStore(db).WithinTx(context.Background(), func(ctx context.Context, tx settlement.Tx) error {
		return tx.EndAllocation(ctx, 8, day)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHostelDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewHostelRepo(sqlx.NewDb(db, "mysql"))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM hostels WHERE id = \? FOR UPDATE`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rooms`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM hostels WHERE id = \?`).WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Delete(context.Background(), 1))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM hostels`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHostelCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewHostelRepo(sqlx.NewDb(db, "mysql"))
	mock.ExpectExec(`INSERT INTO hostels`).
		WillReturnError(&mysql.MySQLError{Number: errDupEntry, Message: "Duplicate entry 'North' for key 'name'"})

	err := repo.Create(context.Background(), &model.Hostel{Name: "North", Location: "Campus"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLErrorClassification(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062}
	ref := &mysql.MySQLError{Number: 1451}
	assert.True(t, isDuplicate(dup))
	assert.True(t, isDuplicate(errors.Join(errors.New("insert"), dup)))
	assert.False(t, isDuplicate(ref))
	assert.True(t, isReferenced(ref))
	assert.False(t, isReferenced(errors.New("plain")))
	assert.False(t, isDuplicate(nil))
}

func TestStatusFilter(t *testing.T) {
	today := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	clause, args, ok := statusFilter("", today)
	assert.True(t, ok)
	assert.Empty(t, clause)
	assert.Empty(t, args)

	clause, args, ok = statusFilter("completed", today)
	require.True(t, ok)
	assert.Contains(t, clause, "vacate_date")
	assert.Contains(t, args, today)

	_, _, ok = statusFilter("lost", today)
	assert.False(t, ok)
}
