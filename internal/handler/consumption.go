package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/queue"
)

// ConsumptionStore writes consumption records.
type ConsumptionStore interface {
	Create(ctx context.Context, rec *model.ConsumptionRecord) error
	Delete(ctx context.Context, id uint64) (*model.ConsumptionRecord, error)
}

// ConsumptionPublisher announces consumption changes.
type ConsumptionPublisher interface {
	PublishConsumption(ctx context.Context, ev queue.ConsumptionEvent) error
}

// ConsumptionHandler records purchases made at the kiosks.
type ConsumptionHandler struct {
	Repo      ConsumptionStore
	Cache     CacheInvalidator
	Publisher ConsumptionPublisher // may be nil
	Logger    *logrus.Logger
}

func NewConsumptionHandler(repo ConsumptionStore, cache CacheInvalidator, publisher ConsumptionPublisher, logger *logrus.Logger) *ConsumptionHandler {
	if repo == nil || logger == nil {
		panic("nil dependency passed to NewConsumptionHandler")
	}
	return &ConsumptionHandler{Repo: repo, Cache: orNoop(cache), Publisher: publisher, Logger: logger}
}

type createConsumptionReq struct {
	GuestID   uint64 `json:"guest_id" validate:"required"`
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=100"`
	EventID   uint64 `json:"session_id" validate:"required"`
}

// Create handles POST /v1/consumption.
func (h *ConsumptionHandler) Create(c echo.Context) error {
	var req createConsumptionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec := &model.ConsumptionRecord{
		GuestID:   req.GuestID,
		ProductID: req.ProductID,
		EventID:   req.EventID,
		Quantity:  req.Quantity,
	}
	if err := h.Repo.Create(ctx, rec); err != nil {
		return writeError(c, h.Logger, err)
	}
	h.Cache.Invalidate(ctx, rec.EventID)
	h.publish(ctx, "created", rec)
	return c.JSON(http.StatusCreated, echo.Map{"consumption": rec})
}

// Delete handles DELETE /v1/consumption?id=.
func (h *ConsumptionHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.QueryParam("id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Repo.Delete(ctx, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	h.Cache.Invalidate(ctx, rec.EventID)
	h.publish(ctx, "deleted", rec)
	return c.JSON(http.StatusOK, echo.Map{"consumption": rec})
}

func (h *ConsumptionHandler) publish(ctx context.Context, op string, rec *model.ConsumptionRecord) {
	if h.Publisher == nil {
		return
	}
	ev := queue.ConsumptionEvent{
		Op:         op,
		RecordID:   rec.ID,
		EventID:    rec.EventID,
		GuestID:    rec.GuestID,
		ProductID:  rec.ProductID,
		Quantity:   rec.Quantity,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Publisher.PublishConsumption(ctx, ev); err != nil {
		h.Logger.WithError(err).WithField("record_id", rec.ID).Warn("consumption event not published")
	}
}
