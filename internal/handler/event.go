package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/model"
)

type (
	EventStore interface {
		GetByID(ctx context.Context, id uint64) (*model.Event, error)
		List(ctx context.Context) ([]model.Event, error)
	}
	GuestStore interface {
		GetByID(ctx context.Context, eventID, guestID uint64) (*model.Guest, error)
		ListByEvent(ctx context.Context, eventID uint64) ([]model.Guest, error)
	}
	ProductStore interface {
		ListByEvent(ctx context.Context, eventID uint64, includeInactive bool) ([]model.Product, error)
	}
	ConsumptionLister interface {
		ListByEvent(ctx context.Context, eventID uint64) ([]model.ConsumptionRecord, error)
	}
)

// EventHandler serves the read side used by kiosks and the guest pages.
type EventHandler struct {
	Events      EventStore
	Guests      GuestStore
	Products    ProductStore
	Consumption ConsumptionLister
	Logger      *logrus.Logger
}

func NewEventHandler(events EventStore, guests GuestStore, products ProductStore, consumption ConsumptionLister, logger *logrus.Logger) *EventHandler {
	if events == nil || guests == nil || products == nil || consumption == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Events: events, Guests: guests, Products: products, Consumption: consumption, Logger: logger}
}

// ListEvents handles GET /v1/events.
func (h *EventHandler) ListEvents(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	events, err := h.Events.List(ctx)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}

// GetEvent handles GET /v1/events/:id.
func (h *EventHandler) GetEvent(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event": ev})
}

// ListGuests handles GET /v1/events/:id/guests.  Each guest carries its
// consumption records.
func (h *EventHandler) ListGuests(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Events.GetByID(ctx, id); err != nil {
		return writeError(c, h.Logger, err)
	}
	guests, err := h.Guests.ListByEvent(ctx, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	records, err := h.Consumption.ListByEvent(ctx, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	byGuest := map[uint64][]model.ConsumptionRecord{}
	for _, r := range records {
		byGuest[r.GuestID] = append(byGuest[r.GuestID], r)
	}
	out := make([]model.GuestConsumption, 0, len(guests))
	for _, g := range guests {
		recs := byGuest[g.ID]
		if recs == nil {
			recs = []model.ConsumptionRecord{}
		}
		out = append(out, model.GuestConsumption{Guest: g, Consumption: recs})
	}
	return c.JSON(http.StatusOK, echo.Map{"guests": out})
}

// ListProducts handles GET /v1/events/:id/products.  Inactive products
// are listed only with ?all=true.
func (h *EventHandler) ListProducts(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Events.GetByID(ctx, id); err != nil {
		return writeError(c, h.Logger, err)
	}
	products, err := h.Products.ListByEvent(ctx, id, c.QueryParam("all") == "true")
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}
