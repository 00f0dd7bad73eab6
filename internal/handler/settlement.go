package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/billing"
	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/payment"
	"github.com/iliyamo/lanparty/internal/settlement"
)

// ImageFetcher downloads QR images.
type ImageFetcher interface {
	FetchImage(ctx context.Context, req payment.Request) (*payment.Image, error)
}

// SettlementHandler exposes the settlement workflow to admins.
type SettlementHandler struct {
	Service *settlement.Service
	Costs   CostReader
	QR      ImageFetcher
	Cache   CacheInvalidator
	Logger  *logrus.Logger
}

func NewSettlementHandler(svc *settlement.Service, costs CostReader, qr ImageFetcher, cache CacheInvalidator, logger *logrus.Logger) *SettlementHandler {
	if svc == nil || costs == nil || qr == nil || logger == nil {
		panic("nil dependency passed to NewSettlementHandler")
	}
	return &SettlementHandler{Service: svc, Costs: costs, QR: qr, Cache: orNoop(cache), Logger: logger}
}

func (h *SettlementHandler) eventAndGuest(c echo.Context) (uint64, uint64, error) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return 0, 0, badRequest(c, "invalid event id")
	}
	guestID, ok := paramID(c, "guest_id")
	if !ok {
		return 0, 0, badRequest(c, "invalid guest id")
	}
	return eventID, guestID, nil
}

// List handles GET /v1/events/:id/settlements.
func (h *SettlementHandler) List(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Service.List(ctx, eventID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"settlements": list, "bankSettings": h.Service.Account()})
}

// Get handles GET /v1/events/:id/settlements/:guest_id.  The response
// carries the settlement (an implicit draft when none is stored), the
// itemised bill and, once generated, the QR payload.
func (h *SettlementHandler) Get(c echo.Context) error {
	eventID, guestID, err := h.eventAndGuest(c)
	if err != nil || eventID == 0 {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	gc, err := h.Costs.GuestCost(ctx, eventID, guestID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	st, err := h.Service.Get(ctx, eventID, guestID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	resp := echo.Map{
		"settlement": st,
		"breakdown":  billing.NewAggregator(st).Breakdown(gc),
	}
	if st.VariableSymbol != "" {
		if qr, err := h.Service.PaymentRequest(ctx, eventID, guestID); err == nil {
			resp["qr"] = qr
		}
	}
	return c.JSON(http.StatusOK, resp)
}

type actionEnvelope struct {
	GuestID uint64 `json:"guest_id"`
	Action  string `json:"action"`
}

// Action handles POST /v1/events/:id/settlements.  The body is
// {guest_id, action, ...payload}; the payload fields depend on the action.
func (h *SettlementHandler) Action(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return badRequest(c, "invalid body")
	}
	var env actionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return badRequest(c, "invalid body")
	}
	if env.GuestID == 0 {
		return badRequest(c, "guest_id required")
	}
	cmd, err := settlement.DecodeCommand(env.Action, raw)
	if err != nil {
		return writeError(c, h.Logger, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := echo.Map{}
	if gen, ok := cmd.(settlement.GenerateQR); ok {
		qr, err := h.Service.GenerateQR(ctx, eventID, env.GuestID, gen.VariableSymbol)
		if err != nil {
			return writeError(c, h.Logger, err)
		}
		resp["qr"] = qr
	} else if _, err := h.Service.Execute(ctx, eventID, env.GuestID, cmd); err != nil {
		return writeError(c, h.Logger, err)
	}
	h.Cache.Invalidate(ctx, eventID)

	list, err := h.Service.List(ctx, eventID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	resp["settlements"] = list
	return c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) mutate(c echo.Context, fn func(*model.Settlement) (*model.Settlement, error)) error {
	eventID, guestID, err := h.eventAndGuest(c)
	if err != nil || eventID == 0 {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Service.Mutate(ctx, eventID, guestID, fn)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	h.Cache.Invalidate(ctx, eventID)
	return c.JSON(http.StatusOK, echo.Map{"settlement": st})
}

type labelAmountReq struct {
	Label  string     `json:"label"`
	Amount flexAmount `json:"amount"`
}

func paramIndex(c echo.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("idx"))
	return idx, err == nil
}

// AddAdjustment handles POST …/adjustments.
func (h *SettlementHandler) AddAdjustment(c echo.Context) error {
	var req labelAmountReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.mutate(c, func(s *model.Settlement) (*model.Settlement, error) {
		return settlement.AddAdjustment(s, req.Label, string(req.Amount))
	})
}

// RemoveAdjustment handles DELETE …/adjustments/:idx.
func (h *SettlementHandler) RemoveAdjustment(c echo.Context) error {
	idx, ok := paramIndex(c)
	if !ok {
		return badRequest(c, "invalid index")
	}
	return h.mutate(c, func(s *model.Settlement) (*model.Settlement, error) {
		return settlement.RemoveAdjustment(s, idx)
	})
}

// AddCustomItem handles POST …/custom-items.
func (h *SettlementHandler) AddCustomItem(c echo.Context) error {
	var req labelAmountReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.mutate(c, func(s *model.Settlement) (*model.Settlement, error) {
		return settlement.AddCustomItem(s, req.Label, string(req.Amount))
	})
}

// RemoveCustomItem handles DELETE …/custom-items/:idx.
func (h *SettlementHandler) RemoveCustomItem(c echo.Context) error {
	idx, ok := paramIndex(c)
	if !ok {
		return badRequest(c, "invalid index")
	}
	return h.mutate(c, func(s *model.Settlement) (*model.Settlement, error) {
		return settlement.RemoveCustomItem(s, idx)
	})
}

type overrideReq struct {
	Key    string     `json:"key"`
	Amount flexAmount `json:"amount"`
}

// SaveOverride handles POST …/overrides.
func (h *SettlementHandler) SaveOverride(c echo.Context) error {
	var req overrideReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.mutate(c, func(s *model.Settlement) (*model.Settlement, error) {
		return settlement.SaveItemOverride(s, req.Key, string(req.Amount))
	})
}

// RemoveOverride handles DELETE …/overrides/:key.
func (h *SettlementHandler) RemoveOverride(c echo.Context) error {
	key, err := url.PathUnescape(c.Param("key"))
	if err != nil {
		return badRequest(c, "invalid key")
	}
	return h.mutate(c, func(s *model.Settlement) (*model.Settlement, error) {
		return settlement.RemoveItemOverride(s, key)
	})
}

// QRImage handles GET …/qr.png by proxying the image API.
func (h *SettlementHandler) QRImage(c echo.Context) error {
	eventID, guestID, err := h.eventAndGuest(c)
	if err != nil || eventID == 0 {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	qr, err := h.Service.PaymentRequest(ctx, eventID, guestID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	img, err := h.QR.FetchImage(ctx, qr.Request)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, img.ContentType, img.Body)
}

// Export handles GET /v1/events/:id/settlements/export.xlsx.
func (h *SettlementHandler) Export(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	ev, costs, err := h.Costs.EventCosts(ctx, eventID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	stored, err := h.Service.List(ctx, eventID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	data, err := exportSettlementsXLSX(ev, costs, stored)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	c.Response().Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"settlements_event_%d.xlsx\"", eventID))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}
