package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lanparty/internal/billing"
	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/repository"
)

// The cost service reads through these narrow views of the repositories.
type (
	EventReader interface {
		GetByID(ctx context.Context, id uint64) (*model.Event, error)
	}
	GuestReader interface {
		GetByID(ctx context.Context, eventID, guestID uint64) (*model.Guest, error)
		ListByEvent(ctx context.Context, eventID uint64) ([]model.Guest, error)
	}
	ConsumptionSummarizer interface {
		SummaryByEvent(ctx context.Context, eventID, guestID uint64) ([]repository.ConsumptionSummary, error)
	}
	ReservationLister interface {
		ListReservationsByEvent(ctx context.Context, eventID, guestID uint64) ([]repository.ReservationDetail, error)
	}
	TipLister interface {
		ListByEvent(ctx context.Context, eventID uint64) (map[uint64]model.Tip, error)
	}
)

// CostService assembles billing.GuestCost snapshots from the stores.
type CostService struct {
	events      EventReader
	guests      GuestReader
	consumption ConsumptionSummarizer
	hardware    ReservationLister
	tips        TipLister
}

// NewCostService panics on nil dependencies.
func NewCostService(events EventReader, guests GuestReader, consumption ConsumptionSummarizer, hardware ReservationLister, tips TipLister) *CostService {
	if events == nil || guests == nil || consumption == nil || hardware == nil || tips == nil {
		panic("service: nil dependency")
	}
	return &CostService{events: events, guests: guests, consumption: consumption, hardware: hardware, tips: tips}
}

// EventCosts returns the event and the cost snapshot of each of its guests,
// in guest listing order.
func (s *CostService) EventCosts(ctx context.Context, eventID uint64) (*model.Event, []billing.GuestCost, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	guests, err := s.guests.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("list guests: %w", err)
	}
	in, err := s.load(ctx, ev, 0)
	if err != nil {
		return nil, nil, err
	}
	out := make([]billing.GuestCost, 0, len(guests))
	for _, g := range guests {
		out = append(out, in.assemble(ev, g))
	}
	return ev, out, nil
}

// GuestCost returns the snapshot of one guest.  Unknown guests yield
// repository.ErrGuestNotFound.
func (s *CostService) GuestCost(ctx context.Context, eventID, guestID uint64) (billing.GuestCost, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return billing.GuestCost{}, err
	}
	g, err := s.guests.GetByID(ctx, eventID, guestID)
	if err != nil {
		return billing.GuestCost{}, err
	}
	in, err := s.load(ctx, ev, guestID)
	if err != nil {
		return billing.GuestCost{}, err
	}
	return in.assemble(ev, *g), nil
}

type costInputs struct {
	consumption map[uint64][]repository.ConsumptionSummary
	hardware    map[uint64][]repository.ReservationDetail
	tips        map[uint64]model.Tip
}

func (s *CostService) load(ctx context.Context, ev *model.Event, guestID uint64) (*costInputs, error) {
	summaries, err := s.consumption.SummaryByEvent(ctx, ev.ID, guestID)
	if err != nil {
		return nil, fmt.Errorf("consumption summary: %w", err)
	}
	tips, err := s.tips.ListByEvent(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("list tips: %w", err)
	}
	in := &costInputs{
		consumption: map[uint64][]repository.ConsumptionSummary{},
		hardware:    map[uint64][]repository.ReservationDetail{},
		tips:        tips,
	}
	for _, sm := range summaries {
		in.consumption[sm.GuestID] = append(in.consumption[sm.GuestID], sm)
	}
	if ev.HardwarePricingEnabled {
		res, err := s.hardware.ListReservationsByEvent(ctx, ev.ID, guestID)
		if err != nil {
			return nil, fmt.Errorf("list reservations: %w", err)
		}
		for _, r := range res {
			in.hardware[r.GuestID] = append(in.hardware[r.GuestID], r)
		}
	}
	return in, nil
}

func (in *costInputs) assemble(ev *model.Event, g model.Guest) billing.GuestCost {
	gc := billing.GuestCost{
		GuestID:     g.ID,
		Name:        g.Name,
		NightsCount: g.NightsCount,
		NightsTotal: billing.NightsTotal(g.NightsCount, ev.PricePerNight),
		Consumption: []billing.ConsumptionLine{},
		Hardware:    []billing.HardwareLine{},
		Deposit:     g.DepositOrZero(),
	}
	for _, sm := range in.consumption[g.ID] {
		gc.Consumption = append(gc.Consumption, billing.ConsumptionLine{
			ProductID:  sm.ProductID,
			Name:       sm.Name,
			Qty:        sm.Qty,
			UnitPrice:  sm.UnitPrice,
			TotalPrice: sm.UnitPrice.Mul(decimal.NewFromInt(int64(sm.Qty))),
		})
	}
	for _, r := range in.hardware[g.ID] {
		gc.Hardware = append(gc.Hardware, billing.HardwareLine{
			ReservationID: r.ID,
			Name:          r.ItemName,
			Qty:           r.Quantity,
			TotalPrice:    r.TotalPrice,
			Type:          r.ItemType,
		})
	}
	if t, ok := in.tips[g.ID]; ok {
		gc.Tip = t.Amount
		gc.TipPercentage = t.Percentage
	}
	return gc
}
