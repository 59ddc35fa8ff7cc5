package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-booking/internal/handler"
	"github.com/iliyamo/hostel-booking/internal/middleware"
	"github.com/iliyamo/hostel-booking/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Hostels ----
	g.GET("/hostels", a.ListHostels)
	g.POST("/hostels", a.CreateHostel)
	g.GET("/hostels/:id", a.GetHostel)
	g.PUT("/hostels/:id", a.UpdateHostel)
	g.DELETE("/hostels/:id", a.DeleteHostel)

	// ---- Rooms ----
	g.GET("/hostels/:id/rooms", a.ListRooms)
	g.POST("/hostels/:id/rooms", a.CreateRoom)
	g.PUT("/rooms/:id", a.UpdateRoom)
	g.DELETE("/rooms/:id", a.DeleteRoom)

	// ---- Students ----
	g.GET("/students", a.ListStudents)
	g.POST("/students", a.CreateStudent)
	g.DELETE("/students/:id", a.DeleteStudent)

	// ---- Bookings ----
	g.GET("/bookings", a.ListBookings)
	g.POST("/bookings/assign", a.AssignRoom)
	g.PUT("/bookings/:id/status", a.SetBookingStatus)

	// ---- Payments ----
	g.GET("/payments", a.ListPayments)
	g.PUT("/payments/:id/status", a.SetPaymentStatus)
}
