package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/hostel-booking/internal/model"
)

// HostelRepo manages the hostels table.
type HostelRepo struct {
	db *sqlx.DB
}

// NewHostelRepo returns a HostelRepo bound to db.
func NewHostelRepo(db *sqlx.DB) *HostelRepo { return &HostelRepo{db: db} }

// HostelSummary is a hostel with aggregate room figures for admin listings.
type HostelSummary struct {
	model.Hostel
	RoomCount      int `db:"room_count" json:"room_count"`
	AvailableSpots int `db:"available_spots" json:"available_spots"`
}

// Create inserts h and sets its ID.  A taken name yields ErrDuplicate.
func (r *HostelRepo) Create(ctx context.Context, h *model.Hostel) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO hostels (name, location, total_rooms, description) VALUES (?, ?, ?, ?)`,
		h.Name, h.Location, h.TotalRooms, h.Description)
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
	h.ID = uint64(id)
	return nil
}

// List returns every hostel ordered by name with its room count and the
// number of free places across its rooms.
func (r *HostelRepo) List(ctx context.Context) ([]HostelSummary, error) {
	const q = `SELECT h.id, h.name, h.location, h.total_rooms, h.description, h.created_at, h.updated_at,
       COUNT(r.id) AS room_count,
       CAST(COALESCE(SUM(GREATEST(CAST(r.capacity AS SIGNED) - COALESCE(hb.held, 0), 0)), 0) AS SIGNED) AS available_spots
FROM hostels h
LEFT JOIN rooms r ON r.hostel_id = h.id
LEFT JOIN (
    SELECT room_id, COUNT(*) AS held FROM bookings
    WHERE status IN ('Pending','Confirmed') GROUP BY room_id
) hb ON hb.room_id = r.id
GROUP BY h.id
ORDER BY h.name`
	out := []HostelSummary{}
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a hostel by id or ErrNotFound.
func (r *HostelRepo) Get(ctx context.Context, id uint64) (model.Hostel, error) {
	var h model.Hostel
	err := r.db.GetContext(ctx, &h,
		`SELECT id, name, location, total_rooms, description, created_at, updated_at FROM hostels WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Hostel{}, ErrNotFound
	}
	return h, err
}

// Update overwrites the editable columns of h.
func (r *HostelRepo) Update(ctx context.Context, h model.Hostel) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE hostels SET name = ?, location = ?, total_rooms = ?, description = ? WHERE id = ?`,
		h.Name, h.Location, h.TotalRooms, h.Description, h.ID)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// Delete removes a hostel that has no rooms left.  The hostel row is locked
// first so a concurrent room insert cannot slip in between the check and
// the delete.
func (r *HostelRepo) Delete(ctx context.Context, id uint64) error {
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

	var locked uint64
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM hostels WHERE id = ? FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	var rooms int
	if err := tx.GetContext(ctx, &rooms, `SELECT COUNT(*) FROM rooms WHERE hostel_id = ?`, id); err != nil {
		return err
	}
	if rooms > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM hostels WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
