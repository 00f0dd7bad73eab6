package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/model"
)

// SeatStore manages the seat map of an event.
type SeatStore interface {
	ListByEvent(ctx context.Context, eventID uint64) ([]model.Seat, error)
	CreateBulk(ctx context.Context, seats []model.Seat) error
	DeleteByEvent(ctx context.Context, eventID uint64) error
	Assign(ctx context.Context, eventID, seatID uint64, guestID *uint64) (*model.Seat, error)
}

type SeatHandler struct {
	Repo   SeatStore
	Events EventStore
	Cache  CacheInvalidator
	Logger *logrus.Logger
}

func NewSeatHandler(repo SeatStore, events EventStore, cache CacheInvalidator, logger *logrus.Logger) *SeatHandler {
	if repo == nil || events == nil {
		panic("nil repository passed to NewSeatHandler")
	}
	return &SeatHandler{Repo: repo, Events: events, Cache: orNoop(cache), Logger: logger}
}

type seatRow struct {
	Label string       `json:"label"`
	Seats []model.Seat `json:"seats"`
}

// List handles GET /v1/events/:id/seats.  Seats are grouped by row in
// row order.
func (h *SeatHandler) List(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	seats, err := h.Repo.ListByEvent(ctx, eventID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	rows := []seatRow{}
	for _, s := range seats {
		if n := len(rows); n == 0 || rows[n-1].Label != s.RowLabel {
			rows = append(rows, seatRow{Label: s.RowLabel})
		}
		rows[len(rows)-1].Seats = append(rows[len(rows)-1].Seats, s)
	}
	return c.JSON(http.StatusOK, echo.Map{"rows": rows})
}

type layoutReq struct {
	Rows        int    `json:"rows" validate:"min=1,max=52"`
	SeatsPerRow int    `json:"seats_per_row" validate:"min=1,max=100"`
	FirstRow    string `json:"first_row"`
}

// Layout handles PUT /v1/events/:id/seats.  It replaces the seat map with
// a rectangular grid starting at first_row (default A).
func (h *SeatHandler) Layout(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req layoutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	start := 0
	if req.FirstRow != "" {
		idx, ok := rowLabelToIndex(req.FirstRow)
		if !ok {
			return badRequest(c, "invalid first_row")
		}
		start = idx
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		return writeError(c, h.Logger, err)
	}

	seats := make([]model.Seat, 0, req.Rows*req.SeatsPerRow)
	for r := 0; r < req.Rows; r++ {
		label := indexToRowLabel(start + r)
		for n := 1; n <= req.SeatsPerRow; n++ {
			seats = append(seats, model.Seat{EventID: eventID, RowLabel: label, SeatNumber: uint32(n)})
		}
	}
	if err := h.Repo.DeleteByEvent(ctx, eventID); err != nil {
		return writeError(c, h.Logger, err)
	}
	if err := h.Repo.CreateBulk(ctx, seats); err != nil {
		return writeError(c, h.Logger, err)
	}
	h.Cache.Invalidate(ctx, eventID)
	return c.JSON(http.StatusCreated, echo.Map{"created": len(seats)})
}

type assignReq struct {
	GuestID *uint64 `json:"guest_id"`
}

// Assign handles PUT /v1/events/:id/seats/:seat_id.  A null guest_id frees
// the seat.
func (h *SeatHandler) Assign(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	seatID, ok := paramID(c, "seat_id")
	if !ok {
		return badRequest(c, "invalid seat id")
	}
	var req assignReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	seat, err := h.Repo.Assign(ctx, eventID, seatID, req.GuestID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	h.Cache.Invalidate(ctx, eventID)
	return c.JSON(http.StatusOK, echo.Map{"seat": seat})
}
