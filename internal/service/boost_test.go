package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/boostgw/boostgw/internal/models"
	"github.com/boostgw/boostgw/internal/ratelimit"
	"github.com/boostgw/boostgw/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	addFn    func(ctx context.Context, platform, serviceID, link string, qty int) (string, error)
	statusFn func(ctx context.Context, upstreamID string) (json.RawMessage, error)
}

func (f *fakeSubmitter) AddOrder(ctx context.Context, platform, serviceID, link string, qty int) (string, error) {
	if f.addFn == nil {
		return "555", nil
	}
	return f.addFn(ctx, platform, serviceID, link, qty)
}

func (f *fakeSubmitter) OrderStatus(ctx context.Context, upstreamID string) (json.RawMessage, error) {
	if f.statusFn == nil {
		return json.RawMessage(`{"status": "Completed"}`), nil
	}
	return f.statusFn(ctx, upstreamID)
}

func testCatalog() models.Catalog {
	return models.Catalog{
		models.PlatformInstagram: {
			"likes":          {ID: "856", Name: "Likes", Cost: 0.005, Margin: 2.0, Limit: 1000},
			"followers_temp": {ID: "757", Name: "Temporary Followers", Cost: 0.008, Margin: 1.8, Limit: 10, Free: true},
		},
		models.PlatformTikTok: {
			"likes": {ID: "988", Name: "Likes", Cost: 0.0004, Margin: 2.25, Limit: 500000},
		},
	}
}

type testEnv struct {
	svc       *BoostService
	submitter *fakeSubmitter
	orders    *OrderStore
	ledger    *Ledger
}

func newTestEnv(t *testing.T, opts ...func(*testEnv, *BoostConfig)) *testEnv {
	t.Helper()

	env := &testEnv{
		submitter: &fakeSubmitter{},
		orders:    NewOrderStore(),
	}
	cfg := BoostConfig{FreeQuantity: 10, SettleTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(env, &cfg)
	}

	store := ratelimit.NewMemoryStore()
	env.svc = NewBoostService(
		testCatalog(),
		env.submitter,
		env.orders,
		env.ledger,
		ratelimit.NewCooldown(store, 30*time.Second, "purchase:"),
		ratelimit.NewCooldown(store, 100*time.Millisecond, "free:"),
		cfg,
	)
	return env
}

func withLedger(balance float64) func(*testEnv, *BoostConfig) {
	return func(env *testEnv, _ *BoostConfig) {
		env.ledger = NewLedger(balance)
	}
}

func withSimulated() func(*testEnv, *BoostConfig) {
	return func(_ *testEnv, cfg *BoostConfig) {
		cfg.AllowSimulated = true
	}
}

func purchaseReq() PurchaseRequest {
	return PurchaseRequest{
		ClientKey: "203.0.113.7",
		Platform:  models.PlatformInstagram,
		Kind:      "likes",
		URL:       "https://instagram.com/p/abc",
		Quantity:  100,
	}
}

func TestPurchase_Success(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.svc.Purchase(context.Background(), purchaseReq())
	require.NoError(t, err)

	assert.Equal(t, models.OrderProcessing, result.Order.Status)
	assert.Equal(t, "555", result.Order.UpstreamID)
	assert.InDelta(t, 100*0.005*2.0, result.Order.Cost, 1e-9)

	stored, ok := env.orders.Get(result.Order.ID)
	require.True(t, ok)
	assert.Equal(t, models.OrderProcessing, stored.Status)
}

func TestPurchase_MissingFields(t *testing.T) {
	cases := map[string]PurchaseRequest{
		"platform": {Kind: "likes", URL: "https://instagram.com/p/abc", Quantity: 10},
		"kind":     {Platform: "instagram", URL: "https://instagram.com/p/abc", Quantity: 10},
		"url":      {Platform: "instagram", Kind: "likes", Quantity: 10},
		"quantity": {Platform: "instagram", Kind: "likes", URL: "https://instagram.com/p/abc"},
	}

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			req.ClientKey = "203.0.113.7"

			_, err := env.svc.Purchase(context.Background(), req)

			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestPurchase_UnknownService(t *testing.T) {
	env := newTestEnv(t)

	req := purchaseReq()
	req.Kind = "retweets"

	_, err := env.svc.Purchase(context.Background(), req)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Service not found", validationErr.Message)
}

func TestPurchase_QuantityBounds(t *testing.T) {
	for name, qty := range map[string]int{
		"negative":   -5,
		"over_limit": 1001,
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)

			req := purchaseReq()
			req.Quantity = qty

			_, err := env.svc.Purchase(context.Background(), req)

			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestPurchase_AtLimitAccepted(t *testing.T) {
	env := newTestEnv(t)

	req := purchaseReq()
	req.Quantity = 1000

	_, err := env.svc.Purchase(context.Background(), req)
	assert.NoError(t, err)
}

func TestPurchase_URLMustMatchPlatform(t *testing.T) {
	env := newTestEnv(t)

	req := purchaseReq()
	req.URL = "https://tiktok.com/@someone"

	_, err := env.svc.Purchase(context.Background(), req)

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestPurchase_CooldownBlocksSecondOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Purchase(ctx, purchaseReq())
	require.NoError(t, err)

	_, err = env.svc.Purchase(ctx, purchaseReq())

	var cooldownErr *CooldownError
	require.ErrorAs(t, err, &cooldownErr)
	assert.Greater(t, cooldownErr.Remaining, time.Duration(0))
	assert.Less(t, cooldownErr.Remaining, 30*time.Second)
}

func TestPurchase_CooldownScopedToClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Purchase(ctx, purchaseReq())
	require.NoError(t, err)

	other := purchaseReq()
	other.ClientKey = "198.51.100.4"

	_, err = env.svc.Purchase(ctx, other)
	assert.NoError(t, err)
}

func TestPurchase_UpstreamRejection(t *testing.T) {
	env := newTestEnv(t)
	env.submitter.addFn = func(ctx context.Context, platform, serviceID, link string, qty int) (string, error) {
		return "", &upstream.RejectionError{Message: "link is invalid"}
	}

	result, err := env.svc.Purchase(context.Background(), purchaseReq())
	require.Nil(t, result)

	var rejection *upstream.RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "link is invalid", rejection.Message)
}

func TestPurchase_UpstreamUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.submitter.addFn = func(ctx context.Context, platform, serviceID, link string, qty int) (string, error) {
		return "", upstream.ErrUnavailable
	}

	_, err := env.svc.Purchase(context.Background(), purchaseReq())
	assert.ErrorIs(t, err, upstream.ErrUnavailable)
}

func TestPurchase_SimulatedFallback(t *testing.T) {
	env := newTestEnv(t, withSimulated())
	env.submitter.addFn = func(ctx context.Context, platform, serviceID, link string, qty int) (string, error) {
		return "", upstream.ErrUnavailable
	}

	result, err := env.svc.Purchase(context.Background(), purchaseReq())
	require.NoError(t, err)

	// A simulated order is explicitly marked; it never pretends to be a
	// confirmed upstream order.
	assert.Equal(t, models.OrderSimulated, result.Order.Status)
	assert.NotEmpty(t, result.Order.UpstreamID)
}

func TestPurchase_PointsDebit(t *testing.T) {
	env := newTestEnv(t, withLedger(50))

	result, err := env.svc.Purchase(context.Background(), purchaseReq())
	require.NoError(t, err)

	require.NotNil(t, result.Balance)
	assert.InDelta(t, 50-result.Order.Cost, *result.Balance, 1e-9)
}

func TestPurchase_PointsInsufficientBalance(t *testing.T) {
	env := newTestEnv(t, withLedger(0.5))

	_, err := env.svc.Purchase(context.Background(), purchaseReq())
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// Nothing was charged.
	assert.InDelta(t, 0.5, env.ledger.Account("203.0.113.7").Balance, 1e-9)
}

func TestPurchase_PointsRefundedOnFailure(t *testing.T) {
	env := newTestEnv(t, withLedger(50))
	env.submitter.addFn = func(ctx context.Context, platform, serviceID, link string, qty int) (string, error) {
		return "", &upstream.RejectionError{Message: "nope"}
	}

	_, err := env.svc.Purchase(context.Background(), purchaseReq())
	require.Error(t, err)

	assert.InDelta(t, 50, env.ledger.Account("203.0.113.7").Balance, 1e-9)
}

func TestFreeClaim_Success(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.svc.FreeClaim(context.Background(), FreeRequest{
		ClientKey: "203.0.113.7",
		URL:       "https://instagram.com/someone",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderProcessing, result.Order.Status)
	assert.Equal(t, 10, result.Order.Quantity)
	assert.True(t, result.Order.Free)
	assert.Zero(t, result.Order.Cost)
}

func TestFreeClaim_CooldownBlocksSecondClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := FreeRequest{ClientKey: "203.0.113.7", URL: "https://instagram.com/someone"}

	_, err := env.svc.FreeClaim(ctx, req)
	require.NoError(t, err)

	_, err = env.svc.FreeClaim(ctx, req)

	var cooldownErr *CooldownError
	assert.ErrorAs(t, err, &cooldownErr)
}

func TestFreeClaim_BothSucceedOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := FreeRequest{ClientKey: "203.0.113.7", URL: "https://instagram.com/someone"}

	_, err := env.svc.FreeClaim(ctx, req)
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond) // test window is 100ms

	_, err = env.svc.FreeClaim(ctx, req)
	assert.NoError(t, err)
}

func TestFreeClaim_FailureDoesNotBurnTheClaim(t *testing.T) {
	env := newTestEnv(t)
	env.submitter.addFn = func(ctx context.Context, platform, serviceID, link string, qty int) (string, error) {
		return "", upstream.ErrUnavailable
	}

	req := FreeRequest{ClientKey: "203.0.113.7", URL: "https://instagram.com/someone"}

	_, err := env.svc.FreeClaim(context.Background(), req)
	require.Error(t, err)

	// The failed attempt must not start the cooldown.
	env.submitter.addFn = nil
	_, err = env.svc.FreeClaim(context.Background(), req)
	assert.NoError(t, err)
}

func TestFreeClaim_InvalidURL(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.FreeClaim(context.Background(), FreeRequest{
		ClientKey: "203.0.113.7",
		URL:       "https://example.com/whatever",
	})

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestFreeClaim_NoFreeServiceForPlatform(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.FreeClaim(context.Background(), FreeRequest{
		ClientKey: "203.0.113.7",
		Platform:  models.PlatformTikTok,
		URL:       "https://tiktok.com/@someone",
	})

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)

	order := models.NewOrder("k", "instagram", "likes", "https://instagram.com/p/abc", 1)

	_, _, err := env.svc.Order(context.Background(), order.ID)

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestOrder_ProxiesUpstreamStatus(t *testing.T) {
	env := newTestEnv(t)
	env.submitter.statusFn = func(ctx context.Context, upstreamID string) (json.RawMessage, error) {
		assert.Equal(t, "555", upstreamID)
		return json.RawMessage(`{"status": "Partial", "remains": "40"}`), nil
	}

	result, err := env.svc.Purchase(context.Background(), purchaseReq())
	require.NoError(t, err)

	order, status, err := env.svc.Order(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, order.Status)
	assert.JSONEq(t, `{"status": "Partial", "remains": "40"}`, string(status))
}

func TestOrder_UpstreamStatusFailureStillReturnsLocalView(t *testing.T) {
	env := newTestEnv(t)
	env.submitter.statusFn = func(ctx context.Context, upstreamID string) (json.RawMessage, error) {
		return nil, upstream.ErrUnavailable
	}

	result, err := env.svc.Purchase(context.Background(), purchaseReq())
	require.NoError(t, err)

	order, status, err := env.svc.Order(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.Nil(t, status)
	assert.Equal(t, result.Order.ID, order.ID)
}

func TestLedger_LazyAccountCreation(t *testing.T) {
	ledger := NewLedger(100)

	acct := ledger.Account("fresh")
	assert.Equal(t, "fresh", acct.ID)
	assert.Equal(t, float64(100), acct.Balance)
}

func TestLedger_DebitCredit(t *testing.T) {
	ledger := NewLedger(100)

	require.NoError(t, ledger.Debit("u", 30))
	assert.Equal(t, float64(70), ledger.Account("u").Balance)
	assert.Equal(t, float64(30), ledger.Account("u").SpentTotal)

	ledger.Credit("u", 30)
	assert.Equal(t, float64(100), ledger.Account("u").Balance)

	err := ledger.Debit("u", 200)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestOrderStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Purchase(ctx, purchaseReq())
	require.NoError(t, err)

	other := purchaseReq()
	other.ClientKey = "198.51.100.4"
	_, err = env.svc.Purchase(ctx, other)
	require.NoError(t, err)

	stats := env.svc.OrderStats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[models.OrderProcessing])
}

func TestIsRejectionHelper(t *testing.T) {
	assert.True(t, isRejection(&upstream.RejectionError{Message: "x"}))
	assert.False(t, isRejection(errors.New("other")))
	assert.False(t, isRejection(upstream.ErrUnavailable))
}
