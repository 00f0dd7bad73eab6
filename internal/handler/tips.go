package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/billing"
	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/settlement"
)

// TipStore persists tips.
type TipStore interface {
	Upsert(ctx context.Context, t *model.Tip) error
}

// SettlementEditor returns a guest's settlement (or its implicit draft) and
// persists single-helper edits to it.
type SettlementEditor interface {
	Get(ctx context.Context, eventID, guestID uint64) (*model.Settlement, error)
	Mutate(ctx context.Context, eventID, guestID uint64, fn func(*model.Settlement) (*model.Settlement, error)) (*model.Settlement, error)
}

// TipHandler records tips, directly or solved from a desired final amount.
type TipHandler struct {
	Tips        TipStore
	Costs       CostReader
	Settlements SettlementEditor
	Cache       CacheInvalidator
	Logger      *logrus.Logger
}

func NewTipHandler(tips TipStore, costs CostReader, settlements SettlementEditor, cache CacheInvalidator, logger *logrus.Logger) *TipHandler {
	if tips == nil || costs == nil || settlements == nil {
		panic("nil dependency passed to NewTipHandler")
	}
	return &TipHandler{Tips: tips, Costs: costs, Settlements: settlements, Cache: orNoop(cache), Logger: logger}
}

type tipReq struct {
	EventID    uint64     `json:"session_id" validate:"required"`
	GuestID    uint64     `json:"guest_id" validate:"required"`
	Amount     flexAmount `json:"amount" validate:"required"`
	Percentage flexAmount `json:"percentage"`
}

// Upsert handles POST /v1/tips.
func (h *TipHandler) Upsert(c echo.Context) error {
	var req tipReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	amount, err := settlement.ParseAmount(string(req.Amount))
	if err != nil || amount.IsNegative() {
		return badRequest(c, "amount must be a non-negative number")
	}
	tip := &model.Tip{EventID: req.EventID, GuestID: req.GuestID, Amount: amount}
	if req.Percentage != "" {
		pct, err := settlement.ParseAmount(string(req.Percentage))
		if err != nil {
			return badRequest(c, "invalid percentage")
		}
		tip.Percentage = &pct
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// reject guests of other events before writing
	if _, err := h.Costs.GuestCost(ctx, req.EventID, req.GuestID); err != nil {
		return writeError(c, h.Logger, err)
	}
	if err := h.Tips.Upsert(ctx, tip); err != nil {
		return writeError(c, h.Logger, err)
	}
	h.Cache.Invalidate(ctx, req.EventID)
	return c.JSON(http.StatusOK, echo.Map{"tip": tip})
}

type solveTipReq struct {
	EventID     uint64     `json:"session_id" validate:"required"`
	GuestID     uint64     `json:"guest_id" validate:"required"`
	FinalAmount flexAmount `json:"final_amount" validate:"required"`
}

// Solve handles POST /v1/tips/solve: it sets the tip so that the guest's
// subtotal plus tip reaches final_amount, never below zero.  A tip override
// on the settlement would shadow the solved amount, so it is removed.
func (h *TipHandler) Solve(c echo.Context) error {
	var req solveTipReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	desired, err := settlement.ParseAmount(string(req.FinalAmount))
	if err != nil {
		return badRequest(c, "invalid final_amount")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	gc, err := h.Costs.GuestCost(ctx, req.EventID, req.GuestID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	st, err := h.Settlements.Get(ctx, req.EventID, req.GuestID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	subtotal := billing.NewAggregator(st).SubtotalWithoutTip(gc)
	tip := &model.Tip{EventID: req.EventID, GuestID: req.GuestID, Amount: billing.SolveTip(subtotal, desired)}
	if err := h.Tips.Upsert(ctx, tip); err != nil {
		return writeError(c, h.Logger, err)
	}
	if _, ok := st.Overrides[model.LineTip]; ok {
		st, err = h.Settlements.Mutate(ctx, req.EventID, req.GuestID, func(s *model.Settlement) (*model.Settlement, error) {
			return settlement.RemoveItemOverride(s, model.LineTip)
		})
		if err != nil {
			return writeError(c, h.Logger, err)
		}
	}
	h.Cache.Invalidate(ctx, req.EventID)

	gc.Tip = tip.Amount
	return c.JSON(http.StatusOK, echo.Map{
		"tip":                  tip,
		"subtotal_without_tip": subtotal,
		"total_with_tip":       billing.NewAggregator(st).OverriddenGrandTotal(gc),
	})
}
