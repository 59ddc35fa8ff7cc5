// Package repository holds the MySQL data access layer and the sentinel
// errors shared by its repositories.  Handlers translate these values into
// HTTP statuses: ErrNotFound to 404, ErrForbidden to 403, ErrConflict and
// ErrDuplicate to 409.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be performed
// because of dependent rows, such as deleting a room that still has
// active bookings.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key.
var ErrDuplicate = errors.New("duplicate entry")

// MySQL server error numbers.
const (
	errDupEntry        = 1062
	errRowIsReferenced = 1451
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports whether err is a unique key violation.
func isDuplicate(err error) bool { return mysqlErrNumber(err) == errDupEntry }

// isReferenced reports whether err is a foreign key violation raised by
// deleting a parent row.
func isReferenced(err error) bool { return mysqlErrNumber(err) == errRowIsReferenced }
