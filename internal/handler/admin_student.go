package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-booking/internal/repository"
)

// ListStudents handles GET /v1/admin/students.
func (h *AdminHandler) ListStudents(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Users.ListStudents(ctx, today())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"students": list})
}

// CreateStudent handles POST /v1/admin/students.  It takes the same body
// as self registration but issues no tokens.
func (h *AdminHandler) CreateStudent(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := validateStudent(&req); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	id, err := h.Users.CreateStudent(ctx, req.newStudent(), h.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email or student number already registered"})
		}
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "email": req.Email, "student_number": req.StudentNumber})
}

// DeleteStudent handles DELETE /v1/admin/students/:id.  Students with an
// active booking or a positive balance are kept (409).
func (h *AdminHandler) DeleteStudent(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid student id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Svc.DeleteStudent(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
