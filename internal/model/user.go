package model

import "time"

// Role names stored in users.role and carried in the JWT "role" claim.
const (
	RoleAdmin   = "ADMIN"
	RoleStudent = "STUDENT"
)

// User represents an application user record as stored in the `users`
// table.  Administrators and students share the table; only students have
// a Profile.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – ADMIN or STUDENT.
//	FirstName    – given name.
//	LastName     – family name.
//	Gender       – Male or Female.
//	Phone        – contact phone number (may be empty).
//	IsActive     – whether the account may log in.
type User struct {
	ID           uint64    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Gender       string    `db:"gender" json:"gender"`
	Phone        string    `db:"phone" json:"phone"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Profile is the student-only extension of a user.  BalanceCents is the
// prepaid account credit debited when a booking is settled; it never goes
// negative.
type Profile struct {
	UserID           uint64    `db:"user_id" json:"user_id"`
	StudentNumber    string    `db:"student_number" json:"student_number"`
	EmergencyContact string    `db:"emergency_contact" json:"emergency_contact"`
	BalanceCents     int64     `db:"balance_cents" json:"balance_cents"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Student joins a user with its profile for admin listings.
type Student struct {
	User
	StudentNumber    string `db:"student_number" json:"student_number"`
	EmergencyContact string `db:"emergency_contact" json:"emergency_contact"`
	BalanceCents     int64  `db:"balance_cents" json:"balance_cents"`
	ActiveBookings   int    `db:"active_bookings" json:"active_bookings"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
