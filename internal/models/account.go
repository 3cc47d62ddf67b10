package models

import "time"

// Account is a points balance for one client. Created lazily on first
// contact, held in memory only, lost on restart.
type Account struct {
	ID         string    `json:"id"`
	Balance    float64   `json:"balance"`
	SpentTotal float64   `json:"spent_total"`
	OrderCount int       `json:"order_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// UpstreamBalance is the reseller account balance, operator-facing.
type UpstreamBalance struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}
