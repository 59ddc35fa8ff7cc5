package handler

import (
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-booking/internal/repository"
	"github.com/iliyamo/hostel-booking/internal/settlement"
)

// AdminHandler bundles the repositories and the settlement service used by
// the /v1/admin endpoints.
type AdminHandler struct {
	Svc        *settlement.Service
	Hostels    *repository.HostelRepo
	Rooms      *repository.RoomRepo
	Bookings   *repository.BookingRepo
	Payments   *repository.PaymentRepo
	Users      *repository.UserRepo
	BcryptCost int
	Log        *zap.Logger
}

// NewAdminHandler constructs an AdminHandler and panics if a dependency is nil.
func NewAdminHandler(svc *settlement.Service, hostels *repository.HostelRepo, rooms *repository.RoomRepo,
	bookings *repository.BookingRepo, payments *repository.PaymentRepo, users *repository.UserRepo,
	bcryptCost int, log *zap.Logger) *AdminHandler {
	if svc == nil || hostels == nil || rooms == nil || bookings == nil || payments == nil || users == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{
		Svc:        svc,
		Hostels:    hostels,
		Rooms:      rooms,
		Bookings:   bookings,
		Payments:   payments,
		Users:      users,
		BcryptCost: bcryptCost,
		Log:        log,
	}
}
