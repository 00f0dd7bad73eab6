package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/iliyamo/lanparty/internal/billing"
	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/payment"
)

type costsBody struct {
	Guests                 []billing.GuestCost `json:"guests"`
	Breakdowns             []billing.Breakdown `json:"breakdowns"`
	PricePerNight          string              `json:"pricePerNight"`
	BankSettings           payment.Account     `json:"bankSettings"`
	IsPreliminary          bool                `json:"isPreliminary"`
	HardwarePricingEnabled bool                `json:"hardwarePricingEnabled"`
}

func TestEventCosts(t *testing.T) {
	costs := newFakeCosts()
	store := newMemSettlements()
	svc := newTestService(store, costs)
	h := NewCostsHandler(costs, svc, quietLogger())
	h.now = func() time.Time { return time.Date(2026, 1, 2, 20, 0, 0, 0, time.UTC) }

	st, _ := svc.Get(context.Background(), 1, 1)
	st.Adjustments = append(st.Adjustments, model.Adjustment{Label: "discount", Amount: dec("-90")})
	if _, err := store.Save(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	get := func(target string) costsBody {
		t.Helper()
		c, rec := newCtx(http.MethodGet, target, "", "id", "1")
		if err := h.EventCosts(c); err != nil {
			t.Fatalf("EventCosts: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var body costsBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return body
	}

	body := get("/v1/events/1/costs")
	if len(body.Guests) != 2 || len(body.Breakdowns) != 2 {
		t.Fatalf("guests = %d breakdowns = %d", len(body.Guests), len(body.Breakdowns))
	}
	if body.PricePerNight != "250.00" || !body.IsPreliminary || body.HardwarePricingEnabled {
		t.Fatalf("header fields = %+v", body)
	}
	if body.BankSettings != testAccount {
		t.Fatalf("bank settings = %+v", body.BankSettings)
	}
	if got := body.Breakdowns[0].FinalTotal; !got.Equal(dec("400")) {
		t.Fatalf("final with adjustment = %s, want 400", got)
	}

	preview := get("/v1/events/1/costs?preview=true")
	if got := preview.Breakdowns[0].FinalTotal; !got.Equal(dec("490")) {
		t.Fatalf("preview final = %s, want 490", got)
	}
}

func TestEventCostsUnknownEvent(t *testing.T) {
	costs := newFakeCosts()
	h := NewCostsHandler(costs, newTestService(newMemSettlements(), costs), quietLogger())

	c, rec := newCtx(http.MethodGet, "/", "", "id", "5")
	if err := h.EventCosts(c); err != nil {
		t.Fatalf("EventCosts: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	c, rec = newCtx(http.MethodGet, "/", "", "id", "zero")
	if err := h.EventCosts(c); err != nil {
		t.Fatalf("EventCosts: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
