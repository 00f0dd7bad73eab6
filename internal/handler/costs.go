package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/billing"
	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/payment"
)

// CostReader assembles guest cost snapshots.
type CostReader interface {
	EventCosts(ctx context.Context, eventID uint64) (*model.Event, []billing.GuestCost, error)
	GuestCost(ctx context.Context, eventID, guestID uint64) (billing.GuestCost, error)
}

// SettlementLister reads stored settlements and the payee account.
type SettlementLister interface {
	List(ctx context.Context, eventID uint64) ([]*model.Settlement, error)
	Account() payment.Account
}

// CostsHandler serves the costs overview.
type CostsHandler struct {
	Costs       CostReader
	Settlements SettlementLister
	Logger      *logrus.Logger
	now         func() time.Time
}

func NewCostsHandler(costs CostReader, settlements SettlementLister, logger *logrus.Logger) *CostsHandler {
	if costs == nil || settlements == nil {
		panic("nil dependency passed to NewCostsHandler")
	}
	return &CostsHandler{Costs: costs, Settlements: settlements, Logger: logger, now: time.Now}
}

type costsResp struct {
	Guests                 []billing.GuestCost `json:"guests"`
	Breakdowns             []billing.Breakdown `json:"breakdowns"`
	PricePerNight          string              `json:"pricePerNight"`
	BankSettings           payment.Account     `json:"bankSettings"`
	IsPreliminary          bool                `json:"isPreliminary"`
	HardwarePricingEnabled bool                `json:"hardwarePricingEnabled"`
}

// EventCosts handles GET /v1/events/:id/costs.  Breakdowns apply stored
// settlements; with ?preview=true they show the raw charges only.
func (h *CostsHandler) EventCosts(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, costs, err := h.Costs.EventCosts(ctx, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	agg := billing.NewAggregator()
	if c.QueryParam("preview") != "true" {
		stored, err := h.Settlements.List(ctx, id)
		if err != nil {
			return writeError(c, h.Logger, err)
		}
		agg = billing.NewAggregator(stored...)
	}
	breakdowns := make([]billing.Breakdown, 0, len(costs))
	for _, gc := range costs {
		breakdowns = append(breakdowns, agg.Breakdown(gc))
	}
	return c.JSON(http.StatusOK, costsResp{
		Guests:                 costs,
		Breakdowns:             breakdowns,
		PricePerNight:          ev.PricePerNight.StringFixed(2),
		BankSettings:           h.Settlements.Account(),
		IsPreliminary:          ev.IsPreliminary(h.now()),
		HardwarePricingEnabled: ev.HardwarePricingEnabled,
	})
}
