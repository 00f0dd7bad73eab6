package model

import "time"

// ConsumptionRecord is one purchase of a product by a guest.  The
// price and name are resolved from the product when the record is
// read, they are not snapshotted at purchase time.
type ConsumptionRecord struct {
	ID        uint64    `json:"id"`
	GuestID   uint64    `json:"guest_id"`
	ProductID uint64    `json:"product_id"`
	EventID   uint64    `json:"event_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// GuestConsumption is a guest together with its consumption records, the
// shape served by the guest listing and read back by kiosk clients.
type GuestConsumption struct {
	Guest
	Consumption []ConsumptionRecord `json:"consumption"`
}
