package model

import "time"

// Item is a registered SKU. Quantity is never stored on the item; stock
// levels are always derived from the transaction log.
type Item struct {
	SKU       string            `json:"sku"`
	Name      string            `json:"name"`
	Unit      string            `json:"unit"`
	Active    bool              `json:"active"`
	Tags      map[string]string `json:"tags,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Location is a named place stock can sit at. Locations are created
// implicitly the first time a transaction references them and are never
// deleted.
type Location struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
