// Package service implements the order pipeline: validation, catalog and
// quantity checks, cooldown enforcement, pricing, and upstream submission
// with explicit settlement.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/boostgw/boostgw/internal/models"
	"github.com/boostgw/boostgw/internal/ratelimit"
	"github.com/boostgw/boostgw/internal/upstream"
	"github.com/google/uuid"
)

// Submitter is the slice of the upstream client the pipeline needs.
type Submitter interface {
	AddOrder(ctx context.Context, platform, serviceID, link string, qty int) (string, error)
	OrderStatus(ctx context.Context, upstreamID string) (json.RawMessage, error)
}

// ValidationError is a bad or missing input. Always a 400, never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CooldownError reports how long the client must wait. Always a 429.
type CooldownError struct {
	Remaining time.Duration
	NextTime  time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, wait %s", e.Remaining.Round(time.Second))
}

// PurchaseRequest is a validated-field-by-field paid order request.
type PurchaseRequest struct {
	ClientKey string
	AccountID string // points mode only; falls back to ClientKey
	Platform  string
	Kind      string
	URL       string
	Quantity  int
}

// FreeRequest is a free-tier claim.
type FreeRequest struct {
	ClientKey string
	Platform  string
	URL       string
}

// Result is the shaped outcome of a submission.
type Result struct {
	Order   models.Order
	Balance *float64 // points balance after settlement, points mode only
}

type BoostConfig struct {
	FreeQuantity   int
	AllowSimulated bool
	SettleTimeout  time.Duration // how long handlers wait for settlement
}

// BoostService composes the order pipeline. Every gate short-circuits with
// a typed error the handler maps to a status code.
type BoostService struct {
	catalog          models.Catalog
	upstream         Submitter
	orders           *OrderStore
	ledger           *Ledger // nil in direct-pricing mode
	purchaseCooldown *ratelimit.Cooldown
	freeCooldown     *ratelimit.Cooldown
	freeQuantity     int
	allowSimulated   bool
	settleTimeout    time.Duration
}

func NewBoostService(
	catalog models.Catalog,
	submitter Submitter,
	orders *OrderStore,
	ledger *Ledger,
	purchaseCooldown, freeCooldown *ratelimit.Cooldown,
	cfg BoostConfig,
) *BoostService {
	if cfg.FreeQuantity <= 0 {
		cfg.FreeQuantity = 10
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 60 * time.Second
	}
	return &BoostService{
		catalog:          catalog,
		upstream:         submitter,
		orders:           orders,
		ledger:           ledger,
		purchaseCooldown: purchaseCooldown,
		freeCooldown:     freeCooldown,
		freeQuantity:     cfg.FreeQuantity,
		allowSimulated:   cfg.AllowSimulated,
		settleTimeout:    cfg.SettleTimeout,
	}
}

// Purchase runs a paid order through the pipeline.
func (s *BoostService) Purchase(ctx context.Context, req PurchaseRequest) (*Result, error) {
	if req.Platform == "" || req.Kind == "" || req.URL == "" || req.Quantity == 0 {
		return nil, &ValidationError{Message: "Missing parameters"}
	}

	svc, ok := s.catalog.Lookup(req.Platform, req.Kind)
	if !ok {
		return nil, &ValidationError{Message: "Service not found"}
	}

	if req.Quantity < 1 || req.Quantity > svc.Limit {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid quantity. Max: %d", svc.Limit)}
	}

	if !models.URLMatchesPlatform(req.URL, req.Platform) {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid %s URL", req.Platform)}
	}

	if err := s.checkCooldown(ctx, s.purchaseCooldown, req.ClientKey); err != nil {
		return nil, err
	}

	cost := float64(req.Quantity) * svc.Price()

	accountID := req.AccountID
	if accountID == "" {
		accountID = req.ClientKey
	}
	if s.ledger != nil {
		// Debit before submission; refunded on failure. Not atomic with
		// the submission, an acknowledged gap.
		if err := s.ledger.Debit(accountID, cost); err != nil {
			return nil, err
		}
	}

	// The short purchase throttle is marked eagerly, before the upstream
	// confirms.
	if err := s.purchaseCooldown.Mark(ctx, req.ClientKey); err != nil {
		log.Printf("Failed to mark purchase cooldown for %s: %v", req.ClientKey, err)
	}

	order := models.NewOrder(req.ClientKey, req.Platform, req.Kind, req.URL, req.Quantity)
	order.Cost = cost
	order.Status = models.OrderValidated
	s.orders.Put(order)

	settled := s.submit(order, svc.ID, func(failed bool) {
		if failed && s.ledger != nil {
			s.ledger.Credit(accountID, cost)
		}
	})

	result, err := s.await(ctx, order.ID, settled)
	if err != nil {
		return nil, err
	}
	if s.ledger != nil {
		balance := s.ledger.Account(accountID).Balance
		result.Balance = &balance
	}
	return result, nil
}

// FreeClaim runs a free-tier claim: fixed quantity, long per-platform
// cooldown, recorded only after the upstream accepts.
func (s *BoostService) FreeClaim(ctx context.Context, req FreeRequest) (*Result, error) {
	if req.Platform == "" {
		req.Platform = models.PlatformInstagram
	}

	svc, ok := s.catalog.FreeService(req.Platform)
	if !ok {
		return nil, &ValidationError{Message: "No free service for this platform"}
	}

	if req.URL == "" || !models.URLMatchesPlatform(req.URL, req.Platform) {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid %s URL", req.Platform)}
	}

	freeKey := req.ClientKey + ":" + req.Platform
	if err := s.checkCooldown(ctx, s.freeCooldown, freeKey); err != nil {
		return nil, err
	}

	order := models.NewOrder(req.ClientKey, req.Platform, "free", req.URL, s.freeQuantity)
	order.Free = true
	order.Status = models.OrderValidated
	s.orders.Put(order)

	settled := s.submit(order, svc.ID, func(failed bool) {
		if failed {
			return
		}
		// A claim only counts once the upstream accepted it.
		if err := s.freeCooldown.Mark(context.Background(), freeKey); err != nil {
			log.Printf("Failed to mark free cooldown for %s: %v", freeKey, err)
		}
	})

	return s.await(ctx, order.ID, settled)
}

// Order returns the local order plus the proxied upstream status when the
// order has an upstream id.
func (s *BoostService) Order(ctx context.Context, id uuid.UUID) (models.Order, json.RawMessage, error) {
	order, ok := s.orders.Get(id)
	if !ok {
		return models.Order{}, nil, &ValidationError{Message: "Order not found"}
	}

	if order.UpstreamID == "" {
		return order, nil, nil
	}

	status, err := s.upstream.OrderStatus(ctx, order.UpstreamID)
	if err != nil {
		// The local view is still worth returning.
		log.Printf("Failed to fetch upstream status for order %s: %v", order.ID, err)
		return order, nil, nil
	}
	return order, status, nil
}

// AccountFor returns the points account for a client. Points mode only.
func (s *BoostService) AccountFor(id string) (models.Account, bool) {
	if s.ledger == nil {
		return models.Account{}, false
	}
	return s.ledger.Account(id), true
}

func (s *BoostService) OrderStats() Stats {
	return s.orders.Stats()
}

func (s *BoostService) checkCooldown(ctx context.Context, cd *ratelimit.Cooldown, key string) error {
	remaining, err := cd.Remaining(ctx, key)
	if err != nil {
		return fmt.Errorf("cooldown check failed: %w", err)
	}
	if remaining > 0 {
		return &CooldownError{
			Remaining: remaining,
			NextTime:  time.Now().Add(remaining),
		}
	}
	return nil
}

// submit launches the upstream submission as an explicit background task.
// The task itself settles the order in the store, so the recorded state
// never diverges from the submission outcome even when no one is waiting.
// The returned channel reports settlement; compensate runs before the order
// settles, with failed=true when the submission did not produce a real
// upstream order.
func (s *BoostService) submit(order *models.Order, serviceID string, compensate func(failed bool)) <-chan error {
	s.orders.SetStatus(order.ID, models.OrderSubmitted)

	settled := make(chan error, 1)
	go func() {
		// Detached from the request context: once submitted, an order
		// settles regardless of the client hanging up.
		ctx, cancel := context.WithTimeout(context.Background(), s.settleTimeout)
		defer cancel()

		upstreamID, err := s.upstream.AddOrder(ctx, order.Platform, serviceID, order.URL, order.Quantity)
		switch {
		case err == nil:
			compensate(false)
			s.orders.Settle(order.ID, models.OrderProcessing, upstreamID, "")
			settled <- nil

		case isRejection(err):
			compensate(true)
			s.orders.Settle(order.ID, models.OrderRejected, "", err.Error())
			settled <- err

		case s.allowSimulated:
			// Explicitly simulated: a local id with its own status, never
			// passed off as a confirmed order.
			compensate(false)
			localID := uuid.NewString()
			s.orders.Settle(order.ID, models.OrderSimulated, localID, err.Error())
			log.Printf("Upstream failed, simulating order %s locally: %v", order.ID, err)
			settled <- nil

		default:
			compensate(true)
			s.orders.Settle(order.ID, models.OrderFailed, "", err.Error())
			settled <- err
		}
	}()

	return settled
}

// await blocks until the submission settles or the request context ends.
// When the caller gives up first, the order is returned in its submitted
// state and the polling endpoint takes over.
func (s *BoostService) await(ctx context.Context, id uuid.UUID, settled <-chan error) (*Result, error) {
	select {
	case err := <-settled:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
	}

	order, ok := s.orders.Get(id)
	if !ok {
		return nil, fmt.Errorf("order %s vanished from store", id)
	}
	return &Result{Order: order}, nil
}

func isRejection(err error) bool {
	var re *upstream.RejectionError
	return errors.As(err, &re)
}
