package model

import "time"

// Hostel is a residence building containing rooms.
type Hostel struct {
	ID          uint64    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Location    string    `db:"location" json:"location"`
	TotalRooms  uint32    `db:"total_rooms" json:"total_rooms"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// RoomType enumerates rooms.room_type.
type RoomType string

const (
	RoomSingle RoomType = "Single"
	RoomDouble RoomType = "Double"
	RoomShared RoomType = "Shared"
)

// Valid reports whether t is one of the known room types.
func (t RoomType) Valid() bool {
	switch t {
	case RoomSingle, RoomDouble, RoomShared:
		return true
	}
	return false
}

// Features lists the default amenities advertised for a room type.
func (t RoomType) Features() []string {
	base := []string{"Study Desk", "WiFi"}
	switch t {
	case RoomSingle:
		return append([]string{"Ensuite", "Single Bed"}, base...)
	case RoomDouble:
		return append([]string{"Ensuite", "Double Bed"}, base...)
	case RoomShared:
		return append([]string{"Shared Bathroom", "Bunk Beds"}, base...)
	}
	return base
}

// Room belongs to a hostel and holds up to Capacity occupants.  PriceCents
// is charged once per semester allocation.
type Room struct {
	ID         uint64    `db:"id" json:"id"`
	HostelID   uint64    `db:"hostel_id" json:"hostel_id"`
	RoomNumber string    `db:"room_number" json:"room_number"`
	RoomType   RoomType  `db:"room_type" json:"room_type"`
	Capacity   uint32    `db:"capacity" json:"capacity"`
	PriceCents int64     `db:"price_cents" json:"price_cents"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
