// Package settlement holds the settlement state machine: the typed
// commands admins issue, the list mutation helpers and the service that
// persists the result.
package settlement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lanparty/internal/model"
)

var (
	// ErrValidation wraps every rejected input.  State is never changed
	// when it is returned.
	ErrValidation = errors.New("settlement: invalid input")
	// ErrInvalidTransition is returned for commands the current status
	// does not allow.
	ErrInvalidTransition = errors.New("settlement: invalid status transition")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ParseAmount parses a money amount typed by an operator.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return decimal.Zero, invalid("amount is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid("amount %q is not a number", raw)
	}
	return d, nil
}

func cleanLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", invalid("label is required")
	}
	if len(label) > 200 {
		return "", invalid("label is too long")
	}
	return label, nil
}

// AddAdjustment appends a signed adjustment.
func AddAdjustment(s *model.Settlement, label, amount string) (*model.Settlement, error) {
	l, err := cleanLabel(label)
	if err != nil {
		return nil, err
	}
	a, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	out := s.Clone()
	out.Adjustments = append(out.Adjustments, model.Adjustment{Label: l, Amount: a})
	return out, nil
}

// RemoveAdjustment deletes the adjustment at idx.
func RemoveAdjustment(s *model.Settlement, idx int) (*model.Settlement, error) {
	if idx < 0 || idx >= len(s.Adjustments) {
		return nil, invalid("adjustment index %d out of range", idx)
	}
	out := s.Clone()
	out.Adjustments = append(out.Adjustments[:idx], out.Adjustments[idx+1:]...)
	return out, nil
}

// AddCustomItem appends an extra charge. Amount must be positive.
func AddCustomItem(s *model.Settlement, label, amount string) (*model.Settlement, error) {
	l, err := cleanLabel(label)
	if err != nil {
		return nil, err
	}
	a, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	if !a.IsPositive() {
		return nil, invalid("custom item amount must be positive")
	}
	out := s.Clone()
	out.CustomItems = append(out.CustomItems, model.CustomItem{Label: l, Amount: a})
	return out, nil
}

// RemoveCustomItem deletes the custom item at idx.
func RemoveCustomItem(s *model.Settlement, idx int) (*model.Settlement, error) {
	if idx < 0 || idx >= len(s.CustomItems) {
		return nil, invalid("custom item index %d out of range", idx)
	}
	out := s.Clone()
	out.CustomItems = append(out.CustomItems[:idx], out.CustomItems[idx+1:]...)
	return out, nil
}

// SaveItemOverride replaces the value of the line identified by key.
func SaveItemOverride(s *model.Settlement, key, amount string) (*model.Settlement, error) {
	if err := model.ValidateLineKey(key); err != nil {
		return nil, invalid("%v", err)
	}
	a, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	if a.IsNegative() {
		return nil, invalid("override must not be negative")
	}
	out := s.Clone()
	out.Overrides[key] = a
	return out, nil
}

// RemoveItemOverride restores the computed value of the line.  Removing
// an absent override is a no-op.
func RemoveItemOverride(s *model.Settlement, key string) (*model.Settlement, error) {
	if err := model.ValidateLineKey(key); err != nil {
		return nil, invalid("%v", err)
	}
	out := s.Clone()
	delete(out.Overrides, key)
	return out, nil
}
