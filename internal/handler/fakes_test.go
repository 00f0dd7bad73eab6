package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/billing"
	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/payment"
	"github.com/iliyamo/lanparty/internal/queue"
	"github.com/iliyamo/lanparty/internal/repository"
	"github.com/iliyamo/lanparty/internal/settlement"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newCtx builds an echo context for a JSON request with path params given
// as name, value pairs.
func newCtx(method, target, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ─── settlements ────────────────────────────────────────────────────────────

type memSettlements struct {
	mu   sync.Mutex
	docs map[[2]uint64]*model.Settlement
}

func newMemSettlements() *memSettlements {
	return &memSettlements{docs: map[[2]uint64]*model.Settlement{}}
}

func (m *memSettlements) ListByEvent(_ context.Context, eventID uint64) ([]*model.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Settlement{}
	for k, v := range m.docs {
		if k[0] == eventID {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func (m *memSettlements) Get(_ context.Context, eventID, guestID uint64) (*model.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.docs[[2]uint64{eventID, guestID}]
	if !ok {
		return nil, repository.ErrSettlementNotFound
	}
	return s.Clone(), nil
}

func (m *memSettlements) Save(_ context.Context, s *model.Settlement) (*model.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := s.Clone()
	out.Version++
	out.UpdatedAt = time.Now().UTC()
	m.docs[[2]uint64{s.EventID, s.GuestID}] = out
	return out.Clone(), nil
}

// ─── costs ──────────────────────────────────────────────────────────────────

type fakeCosts struct {
	event  model.Event
	guests []billing.GuestCost
}

// newFakeCosts returns event 1 with Ada (guest 1) and Bob (guest 2).
// Ada: two nights at 250, two beers at 45, deposit 100.
func newFakeCosts() *fakeCosts {
	return &fakeCosts{
		event: model.Event{
			ID:            1,
			Name:          "Winter LAN",
			PricePerNight: dec("250"),
			EndsAt:        time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC),
		},
		guests: []billing.GuestCost{
			{
				GuestID:     1,
				Name:        "Ada Nováková",
				NightsCount: 2,
				NightsTotal: dec("500"),
				Consumption: []billing.ConsumptionLine{
					{ProductID: 10, Name: "Lager", Qty: 2, UnitPrice: dec("45"), TotalPrice: dec("90")},
				},
				Deposit: dec("100"),
			},
			{GuestID: 2, Name: "Bob", NightsCount: 1, NightsTotal: dec("250")},
		},
	}
}

func (f *fakeCosts) EventCosts(_ context.Context, eventID uint64) (*model.Event, []billing.GuestCost, error) {
	if eventID != f.event.ID {
		return nil, nil, repository.ErrEventNotFound
	}
	ev := f.event
	return &ev, append([]billing.GuestCost(nil), f.guests...), nil
}

func (f *fakeCosts) GuestCost(_ context.Context, eventID, guestID uint64) (billing.GuestCost, error) {
	if eventID != f.event.ID {
		return billing.GuestCost{}, repository.ErrEventNotFound
	}
	for _, g := range f.guests {
		if g.GuestID == guestID {
			return g, nil
		}
	}
	return billing.GuestCost{}, repository.ErrGuestNotFound
}

var testAccount = payment.Account{AccountNumber: "2400123456", BankCode: "2010", Currency: "CZK"}

func newTestService(store settlement.Store, costs settlement.CostSource) *settlement.Service {
	return settlement.NewService(store, costs, nil, testAccount, "https://qr.example/image", quietLogger())
}

// ─── misc ───────────────────────────────────────────────────────────────────

type recordingCache struct{ events []uint64 }

func (r *recordingCache) Invalidate(_ context.Context, eventID uint64) {
	r.events = append(r.events, eventID)
}

type memConsumption struct {
	nextID  uint64
	records map[uint64]model.ConsumptionRecord
}

func newMemConsumption() *memConsumption {
	return &memConsumption{records: map[uint64]model.ConsumptionRecord{}}
}

func (m *memConsumption) Create(_ context.Context, rec *model.ConsumptionRecord) error {
	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = time.Now().UTC()
	m.records[rec.ID] = *rec
	return nil
}

func (m *memConsumption) Delete(_ context.Context, id uint64) (*model.ConsumptionRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, repository.ErrConsumptionNotFound
	}
	delete(m.records, id)
	return &rec, nil
}

type recordingConsumptionPublisher struct{ events []queue.ConsumptionEvent }

func (p *recordingConsumptionPublisher) PublishConsumption(_ context.Context, ev queue.ConsumptionEvent) error {
	p.events = append(p.events, ev)
	return nil
}

type memTips struct{ tips map[uint64]model.Tip }

func (m *memTips) Upsert(_ context.Context, t *model.Tip) error {
	if m.tips == nil {
		m.tips = map[uint64]model.Tip{}
	}
	m.tips[t.GuestID] = *t
	return nil
}

type fakeQR struct {
	got payment.Request
	err error
}

func (f *fakeQR) FetchImage(_ context.Context, req payment.Request) (*payment.Image, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Image{ContentType: "image/png", Body: []byte("\x89PNG")}, nil
}
