package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newLoadedSyncer(t *testing.T) (*Syncer, *fakeBackend, *fakeClock) {
	t.Helper()
	b := newFakeBackend()
	clock := newFakeClock()
	s := New(context.Background(), b, 1, Options{Clock: clock, Logger: quietLogger()})
	if applied, err := s.Refresh(context.Background()); err != nil || !applied {
		t.Fatalf("initial load: applied=%v err=%v", applied, err)
	}
	return s, b, clock
}

func mustGuest(t *testing.T, s *Syncer, id uint64) GuestView {
	t.Helper()
	g, ok := s.Guest(id)
	if !ok {
		t.Fatalf("guest %d missing", id)
	}
	return g
}

func TestInitialLoadDerivesTotals(t *testing.T) {
	s, _, _ := newLoadedSyncer(t)
	g := mustGuest(t, s, 1)
	if g.Totals.Items != 2 || g.Totals.Beers != 2 || !g.Totals.Price.Equal(decimal.RequireFromString("91")) {
		t.Errorf("totals = %+v", g.Totals)
	}
	if len(s.Products()) != 2 || len(s.Guests()) != 2 {
		t.Errorf("unexpected snapshot sizes")
	}
}

func TestAddItem_AppliesImmediately(t *testing.T) {
	s, _, _ := newLoadedSyncer(t)
	before := mustGuest(t, s, 2).Totals

	rec, err := s.AddItem(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if !rec.Temporary || rec.ServerID == 0 {
		t.Errorf("record = %+v", rec)
	}
	after := mustGuest(t, s, 2).Totals
	if after.Items != before.Items+1 || after.Beers != before.Beers+1 {
		t.Errorf("totals %+v -> %+v", before, after)
	}
	if !after.Price.Sub(before.Price).Equal(decimal.RequireFromString("45.5")) {
		t.Errorf("price delta = %s", after.Price.Sub(before.Price))
	}
	if s.SlotState(2, 10) != OptimisticPending {
		t.Error("slot should be pending after add")
	}
	if s.SlotState(2, 11) != Settled {
		t.Error("untouched slot should be settled")
	}

	if _, err := s.AddItem(context.Background(), 2, 11); err != nil {
		t.Fatal(err)
	}
	if g := mustGuest(t, s, 2).Totals; g.Beers != before.Beers+1 {
		t.Errorf("snack counted as beer: %+v", g)
	}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	s, _, _ := newLoadedSyncer(t)
	for _, productID := range []uint64{10, 11} {
		before := mustGuest(t, s, 1).Totals
		rec, err := s.AddItem(context.Background(), 1, productID)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.RemoveItem(context.Background(), rec.ID); err != nil {
			t.Fatal(err)
		}
		after := mustGuest(t, s, 1).Totals
		if after.Items != before.Items || after.Beers != before.Beers || !after.Price.Equal(before.Price) {
			t.Errorf("product %d: totals %+v -> %+v", productID, before, after)
		}
	}
}

func TestReconcileDoesNotJump(t *testing.T) {
	s, _, clock := newLoadedSyncer(t)
	if _, err := s.AddItem(context.Background(), 1, 10); err != nil {
		t.Fatal(err)
	}
	optimistic := mustGuest(t, s, 1).Totals

	clock.Advance(DefaultDebounce)
	reconciled := mustGuest(t, s, 1)
	if reconciled.Totals.Items != optimistic.Items || !reconciled.Totals.Price.Equal(optimistic.Price) || reconciled.Totals.Beers != optimistic.Beers {
		t.Errorf("totals jumped: %+v -> %+v", optimistic, reconciled.Totals)
	}
	for _, r := range reconciled.Records {
		if r.Temporary {
			t.Errorf("temporary record survived reconciliation: %+v", r)
		}
	}
	if s.SlotState(1, 10) != Settled {
		t.Error("slot should settle after reconciliation")
	}
}

func TestWriteFailure_NoRollbackThenSelfHeals(t *testing.T) {
	s, b, clock := newLoadedSyncer(t)
	b.createErr = errBroken
	before := mustGuest(t, s, 1).Totals

	if _, err := s.AddItem(context.Background(), 1, 11); !errors.Is(err, errBroken) {
		t.Fatalf("expected write error, got %v", err)
	}
	if got := mustGuest(t, s, 1).Totals; got.Items != before.Items+1 {
		t.Errorf("optimistic change rolled back: %+v", got)
	}
	if !s.Debouncer().Pending() {
		t.Fatal("reconciliation must be scheduled after a failed write")
	}

	clock.Advance(DefaultDebounce)
	if got := mustGuest(t, s, 1).Totals; got.Items != before.Items || !got.Price.Equal(before.Price) {
		t.Errorf("reconciliation did not correct state: %+v", got)
	}
}

func TestDeleteFailureKeepsDecrement(t *testing.T) {
	s, b, _ := newLoadedSyncer(t)
	b.deleteErr = errBroken
	g := mustGuest(t, s, 1)

	if err := s.RemoveItem(context.Background(), g.Records[0].ID); !errors.Is(err, errBroken) {
		t.Fatalf("expected write error, got %v", err)
	}
	if got := mustGuest(t, s, 1).Totals; got.Items != 0 {
		t.Errorf("items = %d, want 0", got.Items)
	}
	if len(b.deletes) != 1 || b.deletes[0] != 1 {
		t.Errorf("deletes = %v", b.deletes)
	}
}

func TestUnknownInputsDoNotMutate(t *testing.T) {
	s, b, _ := newLoadedSyncer(t)
	if _, err := s.AddItem(context.Background(), 99, 10); !errors.Is(err, ErrUnknownGuest) {
		t.Errorf("expected ErrUnknownGuest, got %v", err)
	}
	if _, err := s.AddItem(context.Background(), 1, 99); !errors.Is(err, ErrUnknownProduct) {
		t.Errorf("expected ErrUnknownProduct, got %v", err)
	}
	if err := s.RemoveItem(context.Background(), "tmp-nope"); !errors.Is(err, ErrUnknownRecord) {
		t.Errorf("expected ErrUnknownRecord, got %v", err)
	}
	if s.Debouncer().Pending() || len(b.records) != 1 {
		t.Error("rejected input changed state")
	}
}

func TestDebounceCollapsesBurst(t *testing.T) {
	s, b, clock := newLoadedSyncer(t)
	start := b.Fetches()

	var last Record
	for i := 0; i < 10; i++ {
		rec, err := s.AddItem(context.Background(), 2, 11)
		if err != nil {
			t.Fatal(err)
		}
		last = rec
		clock.Advance(100 * time.Millisecond)
	}
	if err := s.RemoveItem(context.Background(), last.ID); err != nil {
		t.Fatal(err)
	}
	lastMutation := clock.Now()

	clock.Advance(DefaultDebounce - time.Millisecond)
	if got := b.Fetches() - start; got != 0 {
		t.Fatalf("fetched %d times before the window closed", got)
	}
	if d := s.Debouncer().Deadline(); !d.Equal(lastMutation.Add(DefaultDebounce)) {
		t.Errorf("deadline = %s, want %s", d, lastMutation.Add(DefaultDebounce))
	}
	clock.Advance(time.Millisecond)
	if got := b.Fetches() - start; got != 1 {
		t.Fatalf("fetches = %d, want exactly 1", got)
	}
	clock.Advance(10 * DefaultDebounce)
	if got := b.Fetches() - start; got != 1 {
		t.Errorf("fetches = %d after idle, want 1", got)
	}
	if g := mustGuest(t, s, 2); g.Totals.Items != 9 {
		t.Errorf("items = %d, want 9", g.Totals.Items)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	b := newFakeBackend()
	gate := make(chan *pendingFetch)
	b.gate = gate
	s := New(context.Background(), b, 1, Options{Clock: newFakeClock(), Logger: quietLogger()})

	type result struct {
		applied bool
		err     error
	}
	resA, resB := make(chan result, 1), make(chan result, 1)

	go func() { ok, err := s.Refresh(context.Background()); resA <- result{ok, err} }()
	fetchA := <-gate
	go func() { ok, err := s.Refresh(context.Background()); resB <- result{ok, err} }()
	fetchB := <-gate

	snapB := b.Snapshot()
	snapB.Guests = snapB.Guests[:1]
	fetchB.reply <- snapB
	if r := <-resB; !r.applied || r.err != nil {
		t.Fatalf("fetch B: %+v", r)
	}

	snapA := b.Snapshot() // older, still lists both guests
	fetchA.reply <- snapA
	if r := <-resA; r.applied || r.err != nil {
		t.Fatalf("fetch A should be discarded silently: %+v", r)
	}
	if got := len(s.Guests()); got != 1 {
		t.Errorf("guests = %d, stale fetch overwrote newer state", got)
	}
}

func TestFailedFetchKeepsSnapshot(t *testing.T) {
	s, b, _ := newLoadedSyncer(t)
	gate := make(chan *pendingFetch)
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()

	done := make(chan error, 1)
	go func() { _, err := s.Refresh(context.Background()); done <- err }()
	(<-gate).reply <- nil
	if err := <-done; err == nil {
		t.Fatal("expected fetch error")
	}
	if g := mustGuest(t, s, 1); g.Totals.Items != 2 {
		t.Errorf("snapshot lost after failed fetch: %+v", g.Totals)
	}
}

type addResult struct {
	rec Record
	err error
}

// addHeld starts AddItem while the backend holds creates.  It returns once
// the optimistic record is applied, with the channel that releases the
// create.
func addHeld(s *Syncer, hold chan chan struct{}, guestID, productID uint64) (chan struct{}, <-chan addResult) {
	done := make(chan addResult, 1)
	go func() {
		rec, err := s.AddItem(context.Background(), guestID, productID)
		done <- addResult{rec, err}
	}()
	return <-hold, done
}

func temporaryRecord(t *testing.T, s *Syncer, guestID uint64) Record {
	t.Helper()
	for _, r := range mustGuest(t, s, guestID).Records {
		if r.Temporary && r.ServerID == 0 {
			return r
		}
	}
	t.Fatalf("guest %d has no unconfirmed record", guestID)
	return Record{}
}

func TestRemoveTemporaryBeforeCreateReturns(t *testing.T) {
	s, b, clock := newLoadedSyncer(t)
	hold := make(chan chan struct{})
	b.setGates(nil, hold)

	release, done := addHeld(s, hold, 1, 11)
	tmp := temporaryRecord(t, s, 1)
	if err := s.RemoveItem(context.Background(), tmp.ID); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if d := b.Deletes(); len(d) != 0 {
		t.Fatalf("delete issued for a record the server does not know: %v", d)
	}

	close(release)
	res := <-done
	if res.err != nil {
		t.Fatalf("AddItem: %v", res.err)
	}
	if d := b.Deletes(); len(d) != 1 || d[0] != res.rec.ServerID {
		t.Fatalf("deletes = %v, want [%d]", d, res.rec.ServerID)
	}
	s.mu.Lock()
	left := len(s.orphaned)
	s.mu.Unlock()
	if left != 0 {
		t.Errorf("orphaned = %d entries after cleanup", left)
	}

	b.setGates(nil, nil)
	clock.Advance(DefaultDebounce)
	g := mustGuest(t, s, 1)
	if g.Totals.Items != 2 || len(g.Records) != 1 {
		t.Errorf("after reconcile: %+v", g)
	}
	for _, gc := range b.Snapshot().Guests {
		for _, r := range gc.Consumption {
			if r.ProductID == 11 {
				t.Errorf("server still holds the returned purchase: %+v", r)
			}
		}
	}
}

func TestCreateFailureForgetsOrphan(t *testing.T) {
	s, b, _ := newLoadedSyncer(t)
	b.createErr = errBroken
	hold := make(chan chan struct{})
	b.setGates(nil, hold)

	release, done := addHeld(s, hold, 1, 11)
	if err := s.RemoveItem(context.Background(), temporaryRecord(t, s, 1).ID); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	close(release)
	if res := <-done; !errors.Is(res.err, errBroken) {
		t.Fatalf("expected write error, got %v", res.err)
	}
	s.mu.Lock()
	left := len(s.orphaned)
	s.mu.Unlock()
	if left != 0 || len(b.Deletes()) != 0 {
		t.Errorf("orphaned = %d, deletes = %v", left, b.Deletes())
	}
}

func TestFetchIssuedBeforePurchaseDiscarded(t *testing.T) {
	s, b, clock := newLoadedSyncer(t)
	gate, hold := make(chan *pendingFetch), make(chan chan struct{})
	b.setGates(gate, hold)
	older := b.Snapshot()

	refreshed := make(chan bool, 1)
	go func() { ok, _ := s.Refresh(context.Background()); refreshed <- ok }()
	fetch := <-gate
	release, done := addHeld(s, hold, 2, 10)

	fetch.reply <- older
	if <-refreshed {
		t.Error("fetch issued before the purchase was applied")
	}
	if g := mustGuest(t, s, 2); g.Totals.Items != 1 {
		t.Fatalf("optimistic purchase lost: %+v", g.Totals)
	}

	close(release)
	if res := <-done; res.err != nil {
		t.Fatalf("AddItem: %v", res.err)
	}
	b.setGates(nil, nil)
	clock.Advance(DefaultDebounce)
	g := mustGuest(t, s, 2)
	if g.Totals.Items != 1 || g.Records[0].Temporary || s.SlotState(2, 10) != Settled {
		t.Errorf("after reconcile: %+v", g)
	}
}

func TestFetchOverlappingCreateDiscarded(t *testing.T) {
	s, b, clock := newLoadedSyncer(t)
	gate, hold := make(chan *pendingFetch), make(chan chan struct{})
	b.setGates(gate, hold)

	release, done := addHeld(s, hold, 2, 10)
	refreshed := make(chan bool, 1)
	go func() { ok, _ := s.Refresh(context.Background()); refreshed <- ok }()
	fetch := <-gate
	older := b.Snapshot() // the create has not reached the server yet

	close(release)
	if res := <-done; res.err != nil {
		t.Fatalf("AddItem: %v", res.err)
	}
	fetch.reply <- older
	if <-refreshed {
		t.Error("fetch overlapping a write was applied")
	}
	if g := mustGuest(t, s, 2); g.Totals.Items != 1 {
		t.Fatalf("optimistic purchase lost: %+v", g.Totals)
	}

	b.setGates(nil, nil)
	clock.Advance(DefaultDebounce)
	if g := mustGuest(t, s, 2); g.Totals.Items != 1 || s.SlotState(2, 10) != Settled {
		t.Errorf("after reconcile: %+v", g)
	}
}

func TestBeerMarkerConfigurable(t *testing.T) {
	b := newFakeBackend()
	b.products[1].Category = "Craft BEER"
	s := New(context.Background(), b, 1, Options{Clock: newFakeClock(), BeerMarker: "beer", Logger: quietLogger()})
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddItem(context.Background(), 2, 11); err != nil {
		t.Fatal(err)
	}
	if g := mustGuest(t, s, 2); g.Totals.Beers != 1 {
		t.Errorf("beers = %d, want 1", g.Totals.Beers)
	}
	if g := mustGuest(t, s, 1); g.Totals.Beers != 0 {
		t.Errorf("'Pivo' counted with marker 'beer': %d", g.Totals.Beers)
	}
}

func TestDeriveTotalsMatchesIncrements(t *testing.T) {
	recs := []Record{
		{Quantity: 3, UnitPrice: decimal.RequireFromString("12.40"), Beer: true},
		{Quantity: 1, UnitPrice: decimal.NewFromInt(30)},
	}
	inc := Totals{Price: decimal.Zero}
	for _, r := range recs {
		inc = inc.Add(r, 1)
	}
	derived := DeriveTotals(recs)
	if inc.Items != derived.Items || inc.Beers != derived.Beers || !inc.Price.Equal(derived.Price) {
		t.Errorf("increments %+v != derived %+v", inc, derived)
	}
	if derived.Items != 4 || derived.Beers != 3 || !derived.Price.Equal(decimal.RequireFromString("67.2")) {
		t.Errorf("derived = %+v", derived)
	}
}
