package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/lanparty/internal/model"
)

// SettlementStore keeps one settlement document per event and guest in
// MongoDB.  Money is stored as Decimal128.
type SettlementStore struct {
	settlements *mongo.Collection
}

func NewSettlementStore(client *mongo.Client, database, collection string) *SettlementStore {
	return &SettlementStore{settlements: client.Database(database).Collection(collection)}
}

// EnsureIndexes creates the unique (event_id, guest_id) index.
func (s *SettlementStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.settlements.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "guest_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

type moneyLineDoc struct {
	Label  string               `bson:"label"`
	Amount primitive.Decimal128 `bson:"amount"`
}

type settlementDoc struct {
	EventID        int64                           `bson:"event_id"`
	GuestID        int64                           `bson:"guest_id"`
	Status         string                          `bson:"status"`
	Adjustments    []moneyLineDoc                  `bson:"adjustments"`
	CustomItems    []moneyLineDoc                  `bson:"custom_items"`
	Overrides      map[string]primitive.Decimal128 `bson:"overrides"`
	Notes          string                          `bson:"notes"`
	VariableSymbol string                          `bson:"variable_symbol"`
	QRGeneratedAt  *time.Time                      `bson:"qr_generated_at"`
	PaidAt         *time.Time                      `bson:"paid_at"`
	Version        int64                           `bson:"version"`
	UpdatedAt      time.Time                       `bson:"updated_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}

func toLines(amounts []model.Adjustment) ([]moneyLineDoc, error) {
	out := make([]moneyLineDoc, 0, len(amounts))
	for _, a := range amounts {
		amt, err := toDecimal128(a.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, moneyLineDoc{Label: a.Label, Amount: amt})
	}
	return out, nil
}

func fromLines(docs []moneyLineDoc) ([]model.Adjustment, error) {
	out := make([]model.Adjustment, 0, len(docs))
	for _, d := range docs {
		amt, err := fromDecimal128(d.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Adjustment{Label: d.Label, Amount: amt})
	}
	return out, nil
}

func (doc *settlementDoc) toModel() (*model.Settlement, error) {
	adj, err := fromLines(doc.Adjustments)
	if err != nil {
		return nil, fmt.Errorf("adjustments: %w", err)
	}
	items, err := fromLines(doc.CustomItems)
	if err != nil {
		return nil, fmt.Errorf("custom items: %w", err)
	}
	st := &model.Settlement{
		EventID:        uint64(doc.EventID),
		GuestID:        uint64(doc.GuestID),
		Status:         model.SettlementStatus(doc.Status),
		Adjustments:    adj,
		CustomItems:    make([]model.CustomItem, 0, len(items)),
		Overrides:      make(map[string]decimal.Decimal, len(doc.Overrides)),
		Notes:          doc.Notes,
		VariableSymbol: doc.VariableSymbol,
		QRGeneratedAt:  doc.QRGeneratedAt,
		PaidAt:         doc.PaidAt,
		Version:        doc.Version,
		UpdatedAt:      doc.UpdatedAt,
	}
	for _, it := range items {
		st.CustomItems = append(st.CustomItems, model.CustomItem(it))
	}
	for k, v := range doc.Overrides {
		amt, err := fromDecimal128(v)
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", k, err)
		}
		st.Overrides[k] = amt
	}
	return st, nil
}

func filterFor(eventID, guestID uint64) bson.M {
	return bson.M{"event_id": int64(eventID), "guest_id": int64(guestID)}
}

// ListByEvent returns every stored settlement of the event ordered by guest.
func (s *SettlementStore) ListByEvent(ctx context.Context, eventID uint64) ([]*model.Settlement, error) {
	cursor, err := s.settlements.Find(ctx, bson.M{"event_id": int64(eventID)},
		options.Find().SetSort(bson.D{{Key: "guest_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []*model.Settlement{}
	for cursor.Next(ctx) {
		var doc settlementDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		st, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, cursor.Err()
}

// Get returns ErrSettlementNotFound when the guest has no document.
func (s *SettlementStore) Get(ctx context.Context, eventID, guestID uint64) (*model.Settlement, error) {
	var doc settlementDoc
	err := s.settlements.FindOne(ctx, filterFor(eventID, guestID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSettlementNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel()
}

// Save upserts the settlement, increments its version and returns the
// stored document.
func (s *SettlementStore) Save(ctx context.Context, st *model.Settlement) (*model.Settlement, error) {
	adj, err := toLines(st.Adjustments)
	if err != nil {
		return nil, fmt.Errorf("adjustments: %w", err)
	}
	asAdj := make([]model.Adjustment, 0, len(st.CustomItems))
	for _, it := range st.CustomItems {
		asAdj = append(asAdj, model.Adjustment(it))
	}
	items, err := toLines(asAdj)
	if err != nil {
		return nil, fmt.Errorf("custom items: %w", err)
	}
	overrides := make(map[string]primitive.Decimal128, len(st.Overrides))
	for k, v := range st.Overrides {
		if overrides[k], err = toDecimal128(v); err != nil {
			return nil, fmt.Errorf("override %s: %w", k, err)
		}
	}

	update := bson.M{
		"$set": bson.M{
			"status":          string(st.Status),
			"adjustments":     adj,
			"custom_items":    items,
			"overrides":       overrides,
			"notes":           st.Notes,
			"variable_symbol": st.VariableSymbol,
			"qr_generated_at": st.QRGeneratedAt,
			"paid_at":         st.PaidAt,
			"updated_at":      time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc settlementDoc
	if err := s.settlements.FindOneAndUpdate(ctx, filterFor(st.EventID, st.GuestID), update, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.toModel()
}
