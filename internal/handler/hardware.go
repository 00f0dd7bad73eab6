package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/repository"
)

// HardwareStore manages rentable hardware and its reservations.
type HardwareStore interface {
	ListItems(ctx context.Context) ([]model.HardwareItem, error)
	CreateReservation(ctx context.Context, res *model.HardwareReservation) error
	DeleteReservation(ctx context.Context, id uint64) (*model.HardwareReservation, error)
	ListReservationsByEvent(ctx context.Context, eventID, guestID uint64) ([]repository.ReservationDetail, error)
}

type HardwareHandler struct {
	Repo   HardwareStore
	Cache  CacheInvalidator
	Logger *logrus.Logger
}

func NewHardwareHandler(repo HardwareStore, cache CacheInvalidator, logger *logrus.Logger) *HardwareHandler {
	if repo == nil {
		panic("nil repository passed to NewHardwareHandler")
	}
	return &HardwareHandler{Repo: repo, Cache: orNoop(cache), Logger: logger}
}

// ListItems handles GET /v1/hardware.
func (h *HardwareHandler) ListItems(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	items, err := h.Repo.ListItems(ctx)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if items == nil {
		items = []model.HardwareItem{}
	}
	return c.JSON(http.StatusOK, echo.Map{"hardware": items})
}

// ListReservations handles GET /v1/events/:id/hardware-reservations[?guest_id=].
func (h *HardwareHandler) ListReservations(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var guestID uint64
	if raw := c.QueryParam("guest_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return badRequest(c, "invalid guest_id")
		}
		guestID = id
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	list, err := h.Repo.ListReservationsByEvent(ctx, eventID, guestID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if list == nil {
		list = []repository.ReservationDetail{}
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

type reservationReq struct {
	EventID        uint64 `json:"session_id" validate:"required"`
	GuestID        uint64 `json:"guest_id" validate:"required"`
	HardwareItemID uint64 `json:"hardware_item_id" validate:"required"`
	Quantity       int    `json:"quantity" validate:"min=1,max=50"`
	NightsCount    int    `json:"nights_count" validate:"min=1,max=60"`
}

// CreateReservation handles POST /v1/hardware-reservations.  The total
// price is fixed at this point.
func (h *HardwareHandler) CreateReservation(c echo.Context) error {
	req := reservationReq{Quantity: 1, NightsCount: 1}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res := &model.HardwareReservation{
		GuestID:        req.GuestID,
		HardwareItemID: req.HardwareItemID,
		EventID:        req.EventID,
		Quantity:       req.Quantity,
		NightsCount:    req.NightsCount,
	}
	if err := h.Repo.CreateReservation(ctx, res); err != nil {
		return writeError(c, h.Logger, err)
	}
	h.Cache.Invalidate(ctx, res.EventID)
	return c.JSON(http.StatusCreated, echo.Map{"reservation": res})
}

// DeleteReservation handles DELETE /v1/hardware-reservations/:rid.
func (h *HardwareHandler) DeleteReservation(c echo.Context) error {
	id, ok := paramID(c, "rid")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	res, err := h.Repo.DeleteReservation(ctx, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	h.Cache.Invalidate(ctx, res.EventID)
	return c.NoContent(http.StatusNoContent)
}
