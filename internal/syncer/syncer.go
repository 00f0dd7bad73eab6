// Package syncer keeps a kiosk's view of guest consumption responsive.
// Purchases and returns are applied locally at once, written to the API in
// the background of the user's flow, and corrected by a debounced
// reconciliation fetch.  Fetch results that were overtaken by a newer fetch
// are dropped.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/metrics"
	"github.com/iliyamo/lanparty/internal/model"
)

var (
	ErrUnknownGuest   = errors.New("syncer: unknown guest")
	ErrUnknownProduct = errors.New("syncer: unknown product")
	ErrUnknownRecord  = errors.New("syncer: unknown consumption record")
)

// NewConsumption is the create request sent for an optimistic purchase.
type NewConsumption struct {
	EventID   uint64 `json:"session_id"`
	GuestID   uint64 `json:"guest_id"`
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Snapshot is the authoritative state of one event.
type Snapshot struct {
	Event    model.Event
	Guests   []model.GuestConsumption
	Products []model.Product
}

// Backend is the API the syncer writes to and reconciles against.
type Backend interface {
	CreateConsumption(ctx context.Context, req NewConsumption) (model.ConsumptionRecord, error)
	DeleteConsumption(ctx context.Context, recordID uint64) error
	FetchSnapshot(ctx context.Context, eventID uint64) (*Snapshot, error)
}

// SlotState tells whether a guest+product pairing shows server truth or an
// unconfirmed local change.
type SlotState int

const (
	Settled SlotState = iota
	OptimisticPending
)

func (s SlotState) String() string {
	if s == OptimisticPending {
		return "optimistic_pending"
	}
	return "settled"
}

// GuestView is a copy of one guest's local state.
type GuestView struct {
	Guest   model.Guest `json:"guest"`
	Records []Record    `json:"records"`
	Totals  Totals      `json:"totals"`
}

// Options tunes a Syncer.  Zero values select the defaults.
type Options struct {
	Debounce     time.Duration
	BeerMarker   string
	FetchTimeout time.Duration
	Clock        Clock
	Logger       *logrus.Logger
}

type slot struct{ guestID, productID uint64 }

type guestState struct {
	guest   model.Guest
	records []Record
	totals  Totals
}

// Syncer owns the local snapshot of one event.
type Syncer struct {
	backend Backend
	eventID uint64
	marker  string
	timeout time.Duration
	logger  *logrus.Logger
	baseCtx context.Context

	debounce *Debouncer

	mu        sync.Mutex
	loaded    bool
	event     model.Event
	order     []uint64
	guests    map[uint64]*guestState
	products  map[uint64]model.Product
	productIx []uint64
	seq       uint64          // last issued fetch
	mutations uint64          // local mutation counter
	inflight  int             // writes sent but not yet answered
	dirty     map[slot]uint64 // slot -> mutation counter of its last change
	orphaned  map[string]bool // temp records removed before their create returned
}

// New returns a Syncer for eventID.  ctx bounds the background
// reconciliation fetches.
func New(ctx context.Context, backend Backend, eventID uint64, opts Options) *Syncer {
	if backend == nil {
		panic("syncer: nil backend")
	}
	if opts.BeerMarker == "" {
		opts.BeerMarker = "piv"
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	s := &Syncer{
		backend:  backend,
		eventID:  eventID,
		marker:   opts.BeerMarker,
		timeout:  opts.FetchTimeout,
		logger:   opts.Logger,
		baseCtx:  ctx,
		guests:   map[uint64]*guestState{},
		products: map[uint64]model.Product{},
		dirty:    map[slot]uint64{},
		orphaned: map[string]bool{},
	}
	s.debounce = NewDebouncer(opts.Clock, opts.Debounce, s.reconcile)
	return s
}

// Debouncer exposes the reconciliation timer.
func (s *Syncer) Debouncer() *Debouncer { return s.debounce }

// Close cancels a scheduled reconciliation.
func (s *Syncer) Close() { s.debounce.Disarm() }

// Flush runs a scheduled reconciliation now.
func (s *Syncer) Flush() bool { return s.debounce.FireNow() }

func (s *Syncer) reconcile() {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.WithError(err).WithField("event_id", s.eventID).Warn("reconciliation fetch failed, keeping previous snapshot")
	}
}

// Refresh fetches the authoritative snapshot and applies it unless a newer
// fetch was issued meanwhile, a local change was made after this fetch was
// issued, or a write overlapped it.  Each of those is followed by its own
// reconciliation.  It reports whether the result was applied.  On error the
// previous snapshot stays in place.
func (s *Syncer) Refresh(ctx context.Context) (bool, error) {
	s.mu.Lock()
	s.seq++
	seq, epoch, busy := s.seq, s.mutations, s.inflight > 0
	s.mu.Unlock()
	metrics.SyncFetches.WithLabelValues("issued").Inc()

	snap, err := s.backend.FetchSnapshot(ctx, s.eventID)
	if err == nil && snap == nil {
		err = errors.New("empty snapshot")
	}
	if err != nil {
		metrics.SyncFetches.WithLabelValues("failed").Inc()
		return false, fmt.Errorf("fetch snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq || s.mutations != epoch || busy || s.inflight > 0 {
		metrics.SyncFetches.WithLabelValues("discarded").Inc()
		return false, nil
	}
	s.applyLocked(snap, epoch)
	metrics.SyncFetches.WithLabelValues("applied").Inc()
	return true, nil
}

func (s *Syncer) applyLocked(snap *Snapshot, epoch uint64) {
	products := make(map[uint64]model.Product, len(snap.Products))
	ix := make([]uint64, 0, len(snap.Products))
	for _, p := range snap.Products {
		products[p.ID] = p
		ix = append(ix, p.ID)
	}
	guests := make(map[uint64]*guestState, len(snap.Guests))
	order := make([]uint64, 0, len(snap.Guests))
	for _, g := range snap.Guests {
		st := &guestState{guest: g.Guest}
		for _, c := range g.Consumption {
			st.records = append(st.records, s.recordFor(c, products))
		}
		st.totals = DeriveTotals(st.records)
		guests[g.ID] = st
		order = append(order, g.ID)
	}

	s.event = snap.Event
	s.products, s.productIx = products, ix
	s.guests, s.order = guests, order
	s.loaded = true
	for k, m := range s.dirty {
		if m <= epoch {
			delete(s.dirty, k)
		}
	}
}

func (s *Syncer) recordFor(c model.ConsumptionRecord, products map[uint64]model.Product) Record {
	p := products[c.ProductID]
	return Record{
		ID:        strconv.FormatUint(c.ID, 10),
		ServerID:  c.ID,
		GuestID:   c.GuestID,
		ProductID: c.ProductID,
		Name:      p.Name,
		Quantity:  c.Quantity,
		UnitPrice: p.Price,
		Beer:      p.IsBeer(s.marker),
	}
}

// AddItem records one purchase of productID by guestID.  Local totals
// change immediately; the create request follows and a reconciliation is
// scheduled whatever its outcome.  A failed write is not rolled back and
// its error is returned for the caller's information only.
func (s *Syncer) AddItem(ctx context.Context, guestID, productID uint64) (Record, error) {
	s.mu.Lock()
	g, ok := s.guests[guestID]
	if !ok {
		s.mu.Unlock()
		return Record{}, ErrUnknownGuest
	}
	p, ok := s.products[productID]
	if !ok {
		s.mu.Unlock()
		return Record{}, ErrUnknownProduct
	}
	rec := Record{
		ID:        "tmp-" + uuid.NewString(),
		GuestID:   guestID,
		ProductID: productID,
		Name:      p.Name,
		Quantity:  1,
		UnitPrice: p.Price,
		Beer:      p.IsBeer(s.marker),
		Temporary: true,
	}
	g.records = append(g.records, rec)
	g.totals = g.totals.Add(rec, 1)
	s.touchLocked(guestID, productID)
	s.inflight++
	s.mu.Unlock()
	defer s.writeDone()

	created, err := s.backend.CreateConsumption(ctx, NewConsumption{
		EventID:   s.eventID,
		GuestID:   guestID,
		ProductID: productID,
		Quantity:  1,
	})
	if err != nil {
		s.mu.Lock()
		delete(s.orphaned, rec.ID)
		s.mu.Unlock()
		metrics.SyncWriteFailures.WithLabelValues("create").Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{"guest_id": guestID, "product_id": productID}).
			Warn("consumption create failed, waiting for reconciliation")
		return rec, fmt.Errorf("create consumption: %w", err)
	}

	s.mu.Lock()
	orphan := s.orphaned[rec.ID]
	delete(s.orphaned, rec.ID)
	if !orphan {
		if r := s.findLocked(rec.ID); r != nil {
			r.ServerID = created.ID
		}
	}
	s.mu.Unlock()
	rec.ServerID = created.ID

	if orphan {
		// returned while the create was in flight; the server copy goes too
		if err := s.backend.DeleteConsumption(ctx, created.ID); err != nil {
			metrics.SyncWriteFailures.WithLabelValues("delete").Inc()
			return rec, fmt.Errorf("delete consumption: %w", err)
		}
	}
	return rec, nil
}

// RemoveItem returns a purchase.  Totals are decremented with the locally
// known record, the delete request follows and a reconciliation is
// scheduled.  Temporary records whose create has not come back yet are
// deleted on the server once it does.
func (s *Syncer) RemoveItem(ctx context.Context, recordID string) error {
	s.mu.Lock()
	var (
		g   *guestState
		idx = -1
	)
	for _, st := range s.guests {
		for i := range st.records {
			if st.records[i].ID == recordID {
				g, idx = st, i
				break
			}
		}
		if g != nil {
			break
		}
	}
	if g == nil {
		s.mu.Unlock()
		return ErrUnknownRecord
	}
	rec := g.records[idx]
	g.records = append(g.records[:idx], g.records[idx+1:]...)
	g.totals = g.totals.Add(rec, -1)
	s.touchLocked(rec.GuestID, rec.ProductID)
	serverID := rec.ServerID
	if serverID == 0 && rec.Temporary {
		s.orphaned[rec.ID] = true
	}
	s.inflight++
	s.mu.Unlock()
	defer s.writeDone()

	var err error
	if serverID != 0 {
		err = s.backend.DeleteConsumption(ctx, serverID)
	}
	if err != nil {
		metrics.SyncWriteFailures.WithLabelValues("delete").Inc()
		s.logger.WithError(err).WithField("record_id", recordID).
			Warn("consumption delete failed, waiting for reconciliation")
		return fmt.Errorf("delete consumption: %w", err)
	}
	return nil
}

// writeDone ends a write and schedules the reconciliation that follows it.
func (s *Syncer) writeDone() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	s.debounce.Arm()
}

func (s *Syncer) touchLocked(guestID, productID uint64) {
	s.mutations++
	s.dirty[slot{guestID, productID}] = s.mutations
}

func (s *Syncer) findLocked(recordID string) *Record {
	for _, st := range s.guests {
		for i := range st.records {
			if st.records[i].ID == recordID {
				return &st.records[i]
			}
		}
	}
	return nil
}

// Loaded reports whether a snapshot has been applied yet.
func (s *Syncer) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Event returns the event of the last applied snapshot.
func (s *Syncer) Event() model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event
}

// Guest returns a copy of one guest's local state.
func (s *Syncer) Guest(guestID uint64) (GuestView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guests[guestID]
	if !ok {
		return GuestView{}, false
	}
	return g.view(), true
}

// Guests returns copies of all guests in snapshot order.
func (s *Syncer) Guests() []GuestView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]GuestView, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.guests[id].view())
	}
	return out
}

// Products returns the products in snapshot order.
func (s *Syncer) Products() []model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Product, 0, len(s.productIx))
	for _, id := range s.productIx {
		out = append(out, s.products[id])
	}
	return out
}

// SlotState reports whether guestID's purchases of productID await
// reconciliation.
func (s *Syncer) SlotState(guestID, productID uint64) SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dirty[slot{guestID, productID}]; ok {
		return OptimisticPending
	}
	return Settled
}

func (g *guestState) view() GuestView {
	return GuestView{
		Guest:   g.guest,
		Records: append([]Record(nil), g.records...),
		Totals:  g.totals,
	}
}
