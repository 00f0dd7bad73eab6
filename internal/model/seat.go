package model

import "time"

// Seat describes one place on an event's seat map.  Seats are
// uniquely identified by their event, row label and seat number.
// GuestID is set when the seat is assigned.
//
// Fields:
//
//	ID         – primary key identifier.
//	EventID    – event to which this seat belongs.
//	RowLabel   – letter or string designating the row (A, B, AA).
//	SeatNumber – number of the seat within the row.
//	GuestID    – assigned guest, nil when free.
//	UpdatedAt  – last update timestamp.
type Seat struct {
	ID         uint64    `json:"id"`          // seats.id
	EventID    uint64    `json:"event_id"`    // seats.event_id
	RowLabel   string    `json:"row_label"`   // seats.row_label
	SeatNumber uint32    `json:"seat_number"` // seats.seat_number
	GuestID    *uint64   `json:"guest_id"`    // seats.guest_id (nullable)
	UpdatedAt  time.Time `json:"updated_at"`  // seats.updated_at
}
