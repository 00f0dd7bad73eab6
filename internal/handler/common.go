package handler // handler defines http handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/payment"
	"github.com/iliyamo/lanparty/internal/repository"
	"github.com/iliyamo/lanparty/internal/settlement"
)

// CacheInvalidator drops cached public reads of an event after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, eventID uint64)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, uint64) {}

func orNoop(c CacheInvalidator) CacheInvalidator {
	if c == nil {
		return noopInvalidator{}
	}
	return c
}

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// writeError maps domain errors to status codes.  Unknown errors are
// logged and reported as 500 without detail.
func writeError(c echo.Context, logger *logrus.Logger, err error) error {
	switch {
	case errors.Is(err, settlement.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrGuestNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrConsumptionNotFound),
		errors.Is(err, repository.ErrHardwareNotFound),
		errors.Is(err, repository.ErrReservationNotFound),
		errors.Is(err, repository.ErrSeatNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, settlement.ErrInvalidTransition),
		errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, payment.ErrIncompleteAccount):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, payment.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "timeout"})
	}
	if logger != nil {
		logger.WithError(err).WithField("path", c.Path()).Error("handler: unexpected error")
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// indexToRowLabel converts a zero-based index to an alphabetical row label like A, B, AA
func indexToRowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// rowLabelToIndex converts a row label like A or AA into its zero-based index
func rowLabelToIndex(label string) (int, bool) {
	s := normalizeRowLabel(label)
	if s == "" || len(s) != len(strings.TrimSpace(label)) {
		return -1, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*26 + int(s[i]-'A'+1)
	}
	return n - 1, true
}

// normalizeRowLabel strips non ASCII letters and converts to uppercase
func normalizeRowLabel(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r - 32)
		} else if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// flexAmount accepts money as a JSON number or string; strings may use a
// decimal comma.
type flexAmount string

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = flexAmount(s)
		return nil
	}
	*a = flexAmount(b)
	return nil
}
