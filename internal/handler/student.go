package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-booking/internal/model"
	"github.com/iliyamo/hostel-booking/internal/repository"
	"github.com/iliyamo/hostel-booking/internal/settlement"
)

// StudentHandler serves the student self-service endpoints.  Every route
// sits behind JWTAuth and RequireRole(STUDENT); bookings and payments go
// through the settlement service.
type StudentHandler struct {
	Svc      *settlement.Service
	Rooms    *repository.RoomRepo
	Bookings *repository.BookingRepo
	Payments *repository.PaymentRepo
	Users    *repository.UserRepo
	Log      *zap.Logger
}

func NewStudentHandler(svc *settlement.Service, rooms *repository.RoomRepo, bookings *repository.BookingRepo,
	payments *repository.PaymentRepo, users *repository.UserRepo, log *zap.Logger) *StudentHandler {
	if svc == nil {
		panic("nil settlement service passed to NewStudentHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StudentHandler{Svc: svc, Rooms: rooms, Bookings: bookings, Payments: payments, Users: users, Log: log}
}

func queryUint(c echo.Context, name string) uint64 {
	n, _ := strconv.ParseUint(c.QueryParam(name), 10, 64)
	return n
}

func queryInt64(c echo.Context, name string) int64 {
	n, _ := strconv.ParseInt(c.QueryParam(name), 10, 64)
	return n
}

// BrowseRooms handles GET /v1/rooms.  Only rooms with free places are
// listed.  Filters: hostel_id, room_type, min_price, max_price (cents),
// capacity, q (room number, hostel name or location) and page.
func (h *StudentHandler) BrowseRooms(c echo.Context) error {
	f := repository.RoomFilter{
		HostelID:      queryUint(c, "hostel_id"),
		MinPriceCents: queryInt64(c, "min_price"),
		MaxPriceCents: queryInt64(c, "max_price"),
		MinCapacity:   uint32(queryUint(c, "capacity")),
		Search:        c.QueryParam("q"),
		Page:          int(queryUint(c, "page")),
	}
	if rt := strings.TrimSpace(c.QueryParam("room_type")); rt != "" {
		f.RoomType = model.RoomType(rt)
		if !f.RoomType.Valid() {
			return badRequest(c, "room_type must be Single, Double or Shared")
		}
	}
	if f.Page < 1 {
		f.Page = 1
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	rooms, total, err := h.Rooms.Browse(ctx, f)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	pages := (total + repository.BrowsePageSize - 1) / repository.BrowsePageSize
	return c.JSON(http.StatusOK, echo.Map{
		"rooms":       rooms,
		"page":        f.Page,
		"page_size":   repository.BrowsePageSize,
		"total":       total,
		"total_pages": pages,
	})
}

// GetRoom handles GET /v1/rooms/:id.
func (h *StudentHandler) GetRoom(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	room, err := h.Rooms.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, room)
}

type createBookingReq struct {
	RoomID uint64 `json:"room_id"`
}

// CreateBooking handles POST /v1/bookings.  The booking is confirmed and
// paid from the balance when it covers the room price; otherwise it is
// left Pending and "settled" is false.
func (h *StudentHandler) CreateBooking(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil || req.RoomID == 0 {
		return badRequest(c, "room_id required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Svc.Book(ctx, uid, req.RoomID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListMyBookings handles GET /v1/my-bookings?status=.
func (h *StudentHandler) ListMyBookings(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Bookings.ListByUser(ctx, uid, c.QueryParam("status"), today())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// GetBooking handles GET /v1/bookings/:id for the booking's owner.
func (h *StudentHandler) GetBooking(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	b, err := h.Bookings.Get(ctx, id, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// CancelBooking handles POST /v1/bookings/:id/cancel.
func (h *StudentHandler) CancelBooking(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Svc.Cancel(ctx, settlement.Actor{UserID: uid}, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// PayBooking handles POST /v1/bookings/:id/pay, settling a Pending booking
// from the balance.
func (h *StudentHandler) PayBooking(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Svc.Pay(ctx, uid, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

type topUpReq struct {
	AmountCents    int64   `json:"amount_cents"`
	Method         string  `json:"method"`
	TransactionRef string  `json:"transaction_ref"`
	BookingID      *uint64 `json:"booking_id"`
}

// TopUp handles POST /v1/payments/top-up.  Mpesa credits at once and
// returns 201; Bank and Cash are recorded Pending and return 202.
func (h *StudentHandler) TopUp(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req topUpReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Svc.TopUp(ctx, uid, settlement.TopUpRequest{
		AmountCents:    req.AmountCents,
		Method:         model.PaymentMethod(strings.TrimSpace(req.Method)),
		TransactionRef: strings.TrimSpace(req.TransactionRef),
		BookingID:      req.BookingID,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	status := http.StatusCreated
	if res.Payment.Status == model.PaymentPending {
		status = http.StatusAccepted
	}
	return c.JSON(status, res)
}

// ListMyPayments handles GET /v1/my-payments.
func (h *StudentHandler) ListMyPayments(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Payments.ListByUser(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": list})
}

// Balance handles GET /v1/balance.
func (h *StudentHandler) Balance(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := h.Users.GetProfile(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balance_cents": p.BalanceCents})
}
