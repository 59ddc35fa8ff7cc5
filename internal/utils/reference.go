package utils

import (
	"strings"

	"github.com/google/uuid"
)

// Reference number prefixes.
const (
	RefBooking    = "BK"
	RefSettlement = "PM"
	RefTopUp      = "PY"
	RefRefund     = "RF"
)

// NewReference returns prefix followed by the first eight upper-case hex
// characters of a random UUID, e.g. "BK3F9A01C2".  Uniqueness is enforced by
// the database; a collision surfaces as a duplicate-key error.
func NewReference(prefix string) string {
	id := uuid.New()
	return prefix + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
