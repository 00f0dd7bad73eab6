package settlement

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/lanparty/internal/model"
)

// Action names as they appear on the wire and in events.
const (
	ActionUpdate     = "update"
	ActionGenerateQR = "generate_qr"
	ActionMarkPaid   = "mark_paid"
	ActionMarkUnpaid = "mark_unpaid"
)

// Command is one of Update, GenerateQR, MarkPaid or MarkUnpaid.
type Command interface {
	Action() string
	apply(s *model.Settlement, now time.Time) error
}

// Update replaces the admin-edited lists of a settlement wholesale.
// Concurrent updates are last-write-wins.
type Update struct {
	Overrides   map[string]decimal.Decimal `json:"overrides"`
	Adjustments []model.Adjustment         `json:"adjustments" validate:"dive"`
	CustomItems []model.CustomItem         `json:"custom_items" validate:"dive"`
	Notes       string                     `json:"notes" validate:"max=2000"`
}

// GenerateQR moves the settlement to pending and records the variable
// symbol the payment will carry.
type GenerateQR struct {
	VariableSymbol string `json:"variable_symbol" validate:"required,number,max=10"`
}

// MarkPaid records the payment.
type MarkPaid struct{}

// MarkUnpaid reverts a paid settlement back to pending.
type MarkUnpaid struct{}

func (Update) Action() string     { return ActionUpdate }
func (GenerateQR) Action() string { return ActionGenerateQR }
func (MarkPaid) Action() string   { return ActionMarkPaid }
func (MarkUnpaid) Action() string { return ActionMarkUnpaid }

func (c Update) apply(s *model.Settlement, _ time.Time) error {
	adjustments := make([]model.Adjustment, 0, len(c.Adjustments))
	for i, a := range c.Adjustments {
		label, err := cleanLabel(a.Label)
		if err != nil {
			return fmt.Errorf("adjustment %d: %w", i, err)
		}
		adjustments = append(adjustments, model.Adjustment{Label: label, Amount: a.Amount})
	}
	items := make([]model.CustomItem, 0, len(c.CustomItems))
	for i, it := range c.CustomItems {
		label, err := cleanLabel(it.Label)
		if err != nil {
			return fmt.Errorf("custom item %d: %w", i, err)
		}
		if !it.Amount.IsPositive() {
			return invalid("custom item %d: amount must be positive", i)
		}
		items = append(items, model.CustomItem{Label: label, Amount: it.Amount})
	}
	overrides := make(map[string]decimal.Decimal, len(c.Overrides))
	for k, v := range c.Overrides {
		if err := model.ValidateLineKey(k); err != nil {
			return invalid("%v", err)
		}
		if v.IsNegative() {
			return invalid("override %q must not be negative", k)
		}
		overrides[k] = v
	}

	s.Adjustments = adjustments
	s.CustomItems = items
	s.Overrides = overrides
	s.Notes = strings.TrimSpace(c.Notes)
	return nil
}

func (c GenerateQR) apply(s *model.Settlement, now time.Time) error {
	if s.Status == model.SettlementPaid {
		return fmt.Errorf("%w: settlement is already paid", ErrInvalidTransition)
	}
	s.Status = model.SettlementPending
	s.VariableSymbol = c.VariableSymbol
	s.QRGeneratedAt = &now
	return nil
}

func (MarkPaid) apply(s *model.Settlement, now time.Time) error {
	if s.Status == model.SettlementPaid {
		return fmt.Errorf("%w: settlement is already paid", ErrInvalidTransition)
	}
	s.Status = model.SettlementPaid
	s.PaidAt = &now
	return nil
}

func (MarkUnpaid) apply(s *model.Settlement, _ time.Time) error {
	if s.Status != model.SettlementPaid {
		return fmt.Errorf("%w: settlement is not paid", ErrInvalidTransition)
	}
	s.Status = model.SettlementPending
	s.PaidAt = nil
	return nil
}

// Apply runs cmd against a copy of s and returns the copy.  s itself is
// never modified.
func Apply(s *model.Settlement, cmd Command, now time.Time) (*model.Settlement, error) {
	out := s.Clone()
	if err := cmd.apply(out, now.UTC()); err != nil {
		return nil, err
	}
	return out, nil
}

var validate = validator.New()

// DecodeCommand turns the wire envelope's action and payload into a typed
// command.  Fields of the envelope that do not belong to the action are
// ignored.
func DecodeCommand(action string, payload json.RawMessage) (Command, error) {
	var cmd Command
	switch action {
	case ActionUpdate:
		var c Update
		if err := unmarshal(payload, &c); err != nil {
			return nil, err
		}
		cmd = c
	case ActionGenerateQR:
		var c GenerateQR
		if err := unmarshal(payload, &c); err != nil {
			return nil, err
		}
		c.VariableSymbol = strings.TrimSpace(c.VariableSymbol)
		cmd = c
	case ActionMarkPaid:
		cmd = MarkPaid{}
	case ActionMarkUnpaid:
		cmd = MarkUnpaid{}
	default:
		return nil, invalid("unknown action %q", action)
	}
	if err := validate.Struct(cmd); err != nil {
		return nil, invalid("%v", err)
	}
	return cmd, nil
}

func unmarshal(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return invalid("malformed payload: %v", err)
	}
	return nil
}
