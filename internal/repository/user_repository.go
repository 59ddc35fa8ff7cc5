package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/hostel-booking/internal/model"
	"github.com/iliyamo/hostel-booking/internal/utils"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// NewStudent carries the fields needed to register a student.
type NewStudent struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	Gender           string
	Phone            string
	StudentNumber    string
	EmergencyContact string
}

const userColumns = `id, email, password_hash, role, first_name, last_name, gender, phone, is_active, created_at, updated_at`

// CreateStudent inserts a STUDENT user and its zero-balance profile in one
// transaction and returns the user ID.  A taken email or student number
// yields ErrDuplicate.
func (r *UserRepo) CreateStudent(ctx context.Context, s NewStudent, cost int) (uint64, error) {
	hash, err := utils.HashPassword(s.Password, cost)
	if err != nil {
		return 0, err
	}
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, role, first_name, last_name, gender, phone) VALUES (?,?,?,?,?,?,?)`,
		normalizeEmail(s.Email), hash, model.RoleStudent,
		strings.TrimSpace(s.FirstName), strings.TrimSpace(s.LastName), s.Gender, strings.TrimSpace(s.Phone))
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, student_number, emergency_contact, balance_cents) VALUES (?,?,?,0)`,
		id, strings.TrimSpace(s.StudentNumber), strings.TrimSpace(s.EmergencyContact))
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

// CreateAdmin inserts an ADMIN user and returns its ID.
func (r *UserRepo) CreateAdmin(ctx context.Context, email, password, firstName, lastName string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, role, first_name, last_name) VALUES (?,?,?,?,?)`,
		normalizeEmail(email), hash, model.RoleAdmin, firstName, lastName)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email))
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return u, err
}

// GetProfile fetches the profile of a student.
func (r *UserRepo) GetProfile(ctx context.Context, userID uint64) (model.Profile, error) {
	var p model.Profile
	err := r.DB.GetContext(ctx, &p,
		"SELECT user_id, student_number, emergency_contact, balance_cents, updated_at FROM user_profiles WHERE user_id=?", userID)
	return p, err
}

// ListStudents returns every student with balance and active booking count.
func (r *UserRepo) ListStudents(ctx context.Context, today time.Time) ([]model.Student, error) {
	const q = `SELECT u.id, u.email, u.password_hash, u.role, u.first_name, u.last_name, u.gender, u.phone, u.is_active,
       u.created_at, u.updated_at,
       p.student_number, p.emergency_contact, p.balance_cents,
       (SELECT COUNT(*) FROM bookings b
        LEFT JOIN allocations a ON a.booking_id = b.id
        WHERE b.user_id = u.id
          AND (b.status = 'Pending' OR (b.status = 'Confirmed' AND (a.id IS NULL OR a.vacate_date > ?)))) AS active_bookings
FROM users u
JOIN user_profiles p ON p.user_id = u.id
WHERE u.role = 'STUDENT'
ORDER BY u.last_name, u.first_name, u.id`
	out := []model.Student{}
	if err := r.DB.SelectContext(ctx, &out, q, today); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
