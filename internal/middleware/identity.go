package middleware

// identity.go derives the caller identity used in rate limit keys and
// request logs.

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-booking/internal/utils"
)

// currentUserID returns the authenticated user id as a string, or "anon".
// Routes behind JWTAuth have it in the context.  Global middleware runs
// before JWTAuth, so a bearer token is decoded here as a fallback when a
// secret is known.
func currentUserID(c echo.Context, secret string) string {
	if uid, ok := c.Get(CtxUserID).(uint64); ok && uid != 0 {
		return strconv.FormatUint(uid, 10)
	}
	if secret == "" {
		return "anon"
	}
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "anon"
	}
	if uid, _, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
		return strconv.FormatUint(uid, 10)
	}
	return "anon"
}
