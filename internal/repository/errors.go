// Package repository defines the storage layer: MySQL repositories for the
// relational entities and the MongoDB settlement store.  The sentinel
// errors below let handlers tell failure scenarios apart.  ErrConflict
// signals that an operation cannot proceed because of existing state, such
// as assigning a seat that is already taken; handlers translate it into
// HTTP 409.  The not-found sentinels map to HTTP 404.
package repository

import "errors"

// ErrConflict is returned when a write conflicts with existing state.
var ErrConflict = errors.New("conflict")

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrGuestNotFound       = errors.New("guest not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrHardwareNotFound    = errors.New("hardware item not found")
	ErrReservationNotFound = errors.New("hardware reservation not found")
	ErrConsumptionNotFound = errors.New("consumption record not found")
	ErrSeatNotFound        = errors.New("seat not found")
	ErrSettlementNotFound  = errors.New("settlement not found")
)
