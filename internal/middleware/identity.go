package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's id as a string, or
// "anon".  JSON numbers in JWT claims decode as float64.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case string:
		if v != "" {
			return v
		}
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}

// eventIDParam reads the :id path parameter of event scoped routes.  It
// returns 0 for routes that are not scoped to an event.
func eventIDParam(c echo.Context) uint64 {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
