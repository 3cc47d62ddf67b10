package models

import (
	"time"

	"github.com/google/uuid"
)

// Order lifecycle states
const (
	OrderReceived   = "received"
	OrderValidated  = "validated"
	OrderRejected   = "rejected"
	OrderSubmitted  = "submitted"
	OrderProcessing = "processing"
	OrderCompleted  = "completed"
	OrderFailed     = "failed"
	OrderSimulated  = "simulated" // local fallback id, never confirmed upstream
)

type Order struct {
	ID         uuid.UUID  `json:"id"`
	ClientKey  string     `json:"-"`
	Platform   string     `json:"platform"`
	Kind       string     `json:"service"`
	URL        string     `json:"url"`
	Quantity   int        `json:"quantity"`
	Cost       float64    `json:"cost"`
	Free       bool       `json:"free"`
	Status     string     `json:"status"`
	UpstreamID string     `json:"upstream_id,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
}

func NewOrder(clientKey, platform, kind, url string, qty int) *Order {
	return &Order{
		ID:        uuid.New(),
		ClientKey: clientKey,
		Platform:  platform,
		Kind:      kind,
		URL:       url,
		Quantity:  qty,
		Status:    OrderReceived,
		CreatedAt: time.Now().UTC(),
	}
}

// Terminal reports whether the order can still change state.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderRejected, OrderCompleted, OrderFailed, OrderSimulated:
		return true
	}
	return false
}
