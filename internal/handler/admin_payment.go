package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-booking/internal/model"
)

// ListPayments handles GET /v1/admin/payments?status=.
func (h *AdminHandler) ListPayments(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Payments.List(ctx, strings.TrimSpace(c.QueryParam("status")))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": list})
}

// SetPaymentStatus handles PUT /v1/admin/payments/:id/status.  Only
// Pending top-ups can be moved, to Success (crediting the balance) or
// Failed.
func (h *AdminHandler) SetPaymentStatus(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid payment id")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	status := model.PaymentStatus(strings.TrimSpace(req.Status))
	if status != model.PaymentSuccess && status != model.PaymentFailed {
		return badRequest(c, "status must be Success or Failed")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := h.Svc.SetPaymentStatus(ctx, id, status)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	adminID, _ := getUserID(c)
	h.Log.Info("payment status changed",
		zap.Uint64("admin_id", adminID),
		zap.Uint64("payment_id", id),
		zap.String("status", string(status)))
	return c.JSON(http.StatusOK, p)
}
