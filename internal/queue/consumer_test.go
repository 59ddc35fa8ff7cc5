package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	line := FormatLine(BookingEvent{
		Type:             EventBookingConfirmed,
		BookingID:        4,
		BookingRef:       "BK0A1B2C3D",
		UserID:           9,
		RoomID:           2,
		PaymentRef:       "PM11223344",
		AmountCents:      5000,
		BalanceCents:     300,
		AllocationStart:  "2025-01-10",
		AllocationVacate: "2025-05-10",
		OccurredAt:       "2025-01-10T09:00:00Z",
	})
	assert.Equal(t, "[2025-01-10T09:00:00Z] booking.confirmed | user_id=9 | booking_id=4 | booking_ref=BK0A1B2C3D"+
		" | room_id=2 | payment_ref=PM11223344 | amount=5000 cents | allocation=2025-01-10..2025-05-10 | balance=300 cents\n", line)

	topUp := FormatLine(BookingEvent{Type: EventPaymentTopUp, UserID: 3, PaymentRef: "PYAAAA0000", AmountCents: 100, BalanceCents: 100})
	assert.NotContains(t, topUp, "booking_id")
	assert.Contains(t, topUp, "payment_ref=PYAAAA0000")
}

func TestHandleAppendsLines(t *testing.T) {
	c := NewConsumer("amqp://unused", nil)
	c.LogPath = filepath.Join(t.TempDir(), "nested", "booking.log")

	for _, typ := range []string{EventBookingPending, EventBookingCancelled} {
		body, err := json.Marshal(BookingEvent{Type: typ, UserID: 1, BookingID: 2})
		require.NoError(t, err)
		require.NoError(t, c.Handle(body))
	}

	data, err := os.ReadFile(c.LogPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], EventBookingPending)
	assert.Contains(t, lines[1], EventBookingCancelled)
}

func TestHandleRejectsBadMessages(t *testing.T) {
	c := NewConsumer("amqp://unused", nil)
	c.LogPath = filepath.Join(t.TempDir(), "booking.log")

	assert.Error(t, c.Handle([]byte("not json")))
	assert.Error(t, c.Handle([]byte(`{"user_id":1}`)))
	_, err := os.Stat(c.LogPath)
	assert.True(t, os.IsNotExist(err))
}
