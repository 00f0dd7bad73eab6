package syncer

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/model"
)

// ─── fake clock ─────────────────────────────────────────────────────────────

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs every due timer on the caller's
// goroutine, in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// ─── fake backend ───────────────────────────────────────────────────────────

type fakeBackend struct {
	mu        sync.Mutex
	nextID    uint64
	event     model.Event
	guests    []model.Guest
	products  []model.Product
	records   []model.ConsumptionRecord
	fetches   int
	createErr error
	deleteErr error
	deletes   []uint64

	// when set, FetchSnapshot hands each call to the test and waits for its reply
	gate chan *pendingFetch
	// when set, CreateConsumption sends a release channel and waits for it to close
	hold chan chan struct{}
}

type pendingFetch struct {
	reply chan *Snapshot
}

var errBroken = errors.New("network unreachable")

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID: 100,
		event:  model.Event{ID: 1, Name: "LAN 2026", PricePerNight: decimal.NewFromInt(300)},
		guests: []model.Guest{
			{ID: 1, EventID: 1, Name: "Jan", NightsCount: 2},
			{ID: 2, EventID: 1, Name: "Eva", NightsCount: 3},
		},
		products: []model.Product{
			{ID: 10, EventID: 1, Name: "Pilsner", Category: "Pivo", Price: decimal.RequireFromString("45.50"), IsActive: true},
			{ID: 11, EventID: 1, Name: "Chips", Category: "Snacks", Price: decimal.NewFromInt(30), IsActive: true},
		},
		records: []model.ConsumptionRecord{
			{ID: 1, GuestID: 1, ProductID: 10, EventID: 1, Quantity: 2},
		},
	}
}

func (b *fakeBackend) CreateConsumption(_ context.Context, req NewConsumption) (model.ConsumptionRecord, error) {
	b.mu.Lock()
	hold := b.hold
	b.mu.Unlock()
	if hold != nil {
		release := make(chan struct{})
		hold <- release
		<-release
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return model.ConsumptionRecord{}, b.createErr
	}
	b.nextID++
	rec := model.ConsumptionRecord{ID: b.nextID, GuestID: req.GuestID, ProductID: req.ProductID, EventID: req.EventID, Quantity: req.Quantity}
	b.records = append(b.records, rec)
	return rec, nil
}

func (b *fakeBackend) DeleteConsumption(_ context.Context, id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, id)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	for i, r := range b.records {
		if r.ID == id {
			b.records = append(b.records[:i], b.records[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (b *fakeBackend) FetchSnapshot(ctx context.Context, _ uint64) (*Snapshot, error) {
	b.mu.Lock()
	b.fetches++
	gate := b.gate
	snap := b.snapshotLocked()
	b.mu.Unlock()

	if gate != nil {
		p := &pendingFetch{reply: make(chan *Snapshot, 1)}
		gate <- p
		select {
		case s := <-p.reply:
			if s == nil {
				return nil, errBroken
			}
			return s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return snap, nil
}

func (b *fakeBackend) snapshotLocked() *Snapshot {
	snap := &Snapshot{Event: b.event, Products: append([]model.Product(nil), b.products...)}
	for _, g := range b.guests {
		gc := model.GuestConsumption{Guest: g}
		for _, r := range b.records {
			if r.GuestID == g.ID {
				gc.Consumption = append(gc.Consumption, r)
			}
		}
		snap.Guests = append(snap.Guests, gc)
	}
	return snap
}

func (b *fakeBackend) Snapshot() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *fakeBackend) Deletes() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint64(nil), b.deletes...)
}

// setGates installs (or with nil, removes) the fetch and create gates.
func (b *fakeBackend) setGates(fetch chan *pendingFetch, create chan chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate, b.hold = fetch, create
}

func (b *fakeBackend) Fetches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetches
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
