package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/hostel-booking/internal/model"
)

// BrowsePageSize is the number of rooms per browse page.
const BrowsePageSize = 12

// RoomRepo manages the rooms table and the student room browser.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo returns a RoomRepo bound to db.
func NewRoomRepo(db *sqlx.DB) *RoomRepo { return &RoomRepo{db: db} }

// RoomView is a room joined with its hostel and current availability.
type RoomView struct {
	model.Room
	HostelName string   `db:"hostel_name" json:"hostel_name"`
	Location   string   `db:"location" json:"location"`
	Held       int      `db:"held" json:"held"`
	SpotsLeft  int      `db:"spots_left" json:"spots_left"`
	Features   []string `db:"-" json:"features"`
}

// RoomFilter narrows Browse.  Zero values leave a criterion unset.
type RoomFilter struct {
	HostelID      uint64
	RoomType      model.RoomType
	MinPriceCents int64
	MaxPriceCents int64
	MinCapacity   uint32
	Search        string
	Page          int
}

const roomViewSelect = `SELECT r.id, r.hostel_id, r.room_number, r.room_type, r.capacity, r.price_cents, r.created_at, r.updated_at,
       h.name AS hostel_name, h.location AS location,
       CAST(COALESCE(hb.held, 0) AS SIGNED) AS held,
       CAST(r.capacity AS SIGNED) - CAST(COALESCE(hb.held, 0) AS SIGNED) AS spots_left`

const roomViewFrom = `
FROM rooms r
JOIN hostels h ON h.id = r.hostel_id
LEFT JOIN (
    SELECT room_id, COUNT(*) AS held FROM bookings
    WHERE status IN ('Pending','Confirmed') GROUP BY room_id
) hb ON hb.room_id = r.id`

func withFeatures(rooms []RoomView) []RoomView {
	for i := range rooms {
		rooms[i].Features = rooms[i].RoomType.Features()
	}
	return rooms
}

// Create inserts rm and sets its ID.  A room number already used in the
// same hostel yields ErrDuplicate.
func (r *RoomRepo) Create(ctx context.Context, rm *model.Room) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (hostel_id, room_number, room_type, capacity, price_cents) VALUES (?, ?, ?, ?, ?)`,
		rm.HostelID, rm.RoomNumber, rm.RoomType, rm.Capacity, rm.PriceCents)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rm.ID = uint64(id)
	return nil
}

// ListByHostel returns the rooms of a hostel ordered by room number.
func (r *RoomRepo) ListByHostel(ctx context.Context, hostelID uint64) ([]RoomView, error) {
	out := []RoomView{}
	q := roomViewSelect + roomViewFrom + ` WHERE r.hostel_id = ? ORDER BY r.room_number`
	if err := r.db.SelectContext(ctx, &out, q, hostelID); err != nil {
		return nil, err
	}
	return withFeatures(out), nil
}

// Get returns a room with availability or ErrNotFound.
func (r *RoomRepo) Get(ctx context.Context, id uint64) (RoomView, error) {
	var v RoomView
	err := r.db.GetContext(ctx, &v, roomViewSelect+roomViewFrom+` WHERE r.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return RoomView{}, ErrNotFound
	}
	if err != nil {
		return RoomView{}, err
	}
	v.Features = v.RoomType.Features()
	return v, nil
}

// Update overwrites the editable columns of rm.  The capacity may not drop
// below the number of bookings currently holding the room.
func (r *RoomRepo) Update(ctx context.Context, rm model.Room) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	held, err := lockRoomHolds(ctx, tx, rm.ID)
	if err != nil {
		return err
	}
	if uint64(rm.Capacity) < uint64(held) {
		return ErrConflict
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE rooms SET room_number = ?, room_type = ?, capacity = ?, price_cents = ? WHERE id = ?`,
		rm.RoomNumber, rm.RoomType, rm.Capacity, rm.PriceCents, rm.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Delete removes a room nobody holds.  Rooms referenced by past bookings
// are kept as history and yield ErrConflict too.
func (r *RoomRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	held, err := lockRoomHolds(ctx, tx, id)
	if err != nil {
		return err
	}
	if held > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id); err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// lockRoomHolds locks a room row and counts the bookings holding it.
func lockRoomHolds(ctx context.Context, tx *sqlx.Tx, roomID uint64) (int, error) {
	var locked uint64
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM rooms WHERE id = ? FOR UPDATE`, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	var held int
	err := tx.GetContext(ctx, &held,
		`SELECT COUNT(*) FROM bookings WHERE room_id = ? AND status IN ('Pending','Confirmed')`, roomID)
	return held, err
}

// Browse returns one page of rooms with free places matching f, cheapest
// first, and the total number of matches.
func (r *RoomRepo) Browse(ctx context.Context, f RoomFilter) ([]RoomView, int, error) {
	where := []string{"CAST(r.capacity AS SIGNED) > COALESCE(hb.held, 0)"}
	var args []any
	if f.HostelID > 0 {
		where = append(where, "r.hostel_id = ?")
		args = append(args, f.HostelID)
	}
	if f.RoomType != "" {
		where = append(where, "r.room_type = ?")
		args = append(args, f.RoomType)
	}
	if f.MinPriceCents > 0 {
		where = append(where, "r.price_cents >= ?")
		args = append(args, f.MinPriceCents)
	}
	if f.MaxPriceCents > 0 {
		where = append(where, "r.price_cents <= ?")
		args = append(args, f.MaxPriceCents)
	}
	if f.MinCapacity > 0 {
		where = append(where, "r.capacity >= ?")
		args = append(args, f.MinCapacity)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		where = append(where, "(r.room_number LIKE ? OR h.name LIKE ? OR h.location LIKE ?)")
		args = append(args, like, like, like)
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+roomViewFrom+cond, args...); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	q := roomViewSelect + roomViewFrom + cond + ` ORDER BY r.price_cents, h.name, r.room_number LIMIT ? OFFSET ?`
	out := []RoomView{}
	if err := r.db.SelectContext(ctx, &out, q, append(args, BrowsePageSize, (page-1)*BrowsePageSize)...); err != nil {
		return nil, 0, err
	}
	return withFeatures(out), total, nil
}
