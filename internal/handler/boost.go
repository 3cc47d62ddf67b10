package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/boostgw/boostgw/internal/middleware"
	"github.com/boostgw/boostgw/internal/models"
	"github.com/boostgw/boostgw/internal/service"
	"github.com/boostgw/boostgw/internal/upstream"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BoostHandler struct {
	service *service.BoostService
	catalog models.Catalog
}

func NewBoostHandler(svc *service.BoostService, catalog models.Catalog) *BoostHandler {
	return &BoostHandler{service: svc, catalog: catalog}
}

// Pricing handles GET /api/pricing. The catalog is immutable, so repeated
// calls produce identical output.
func (h *BoostHandler) Pricing(c *gin.Context) {
	pricing := gin.H{}
	for _, platform := range h.catalog.Platforms() {
		services := gin.H{}
		for _, kind := range h.catalog.Kinds(platform) {
			svc := h.catalog[platform][kind]
			services[kind] = gin.H{
				"name":      svc.Name,
				"price_usd": fmt.Sprintf("%.4f", svc.Price()),
				"price_jpy": svc.PriceJPY,
				"limit":     svc.Limit,
				"free":      svc.Free,
			}
		}
		pricing[platform] = services
	}

	c.JSON(http.StatusOK, pricing)
}

// Purchase handles POST /api/boost/purchase.
func (h *BoostHandler) Purchase(c *gin.Context) {
	var req struct {
		Platform string `json:"platform"`
		Service  string `json:"service"`
		Type     string `json:"type"` // older clients send "type"
		URL      string `json:"url"`
		Quantity int    `json:"qty"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing parameters"})
		return
	}

	kind := req.Service
	if kind == "" {
		kind = req.Type
	}

	result, err := h.service.Purchase(c.Request.Context(), service.PurchaseRequest{
		ClientKey: middleware.GetClientKey(c),
		AccountID: c.GetHeader("X-User-ID"),
		Platform:  req.Platform,
		Kind:      kind,
		URL:       req.URL,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	order := result.Order
	body := gin.H{
		"success":  true,
		"id":       order.ID,
		"orderId":  orderID(order),
		"status":   order.Status,
		"quantity": order.Quantity,
		"service":  order.Kind,
		"cost":     order.Cost,
		"message":  "Order placed! Complete payment to confirm.",
	}
	if result.Balance != nil {
		body["balance"] = *result.Balance
	}

	c.JSON(http.StatusOK, body)
}

// Free handles POST /api/boost/free.
func (h *BoostHandler) Free(c *gin.Context) {
	var req struct {
		URL      string `json:"url"`
		Platform string `json:"platform"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing parameters"})
		return
	}

	result, err := h.service.FreeClaim(c.Request.Context(), service.FreeRequest{
		ClientKey: middleware.GetClientKey(c),
		Platform:  req.Platform,
		URL:       req.URL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	order := result.Order
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"id":        order.ID,
		"orderId":   orderID(order),
		"status":    order.Status,
		"followers": order.Quantity,
		"message":   fmt.Sprintf("Free %d followers added!", order.Quantity),
	})
}

// Order handles GET /api/order/:id: the local order plus the proxied
// upstream status when available.
func (h *BoostHandler) Order(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	order, upstreamStatus, err := h.service.Order(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"order": order}
	if upstreamStatus != nil {
		body["upstream"] = upstreamStatus
	}

	c.JSON(http.StatusOK, body)
}

// Account handles GET /api/points: the caller's points balance.
func (h *BoostHandler) Account(c *gin.Context) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		id = middleware.GetClientKey(c)
	}

	acct, ok := h.service.AccountFor(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Points are not enabled"})
		return
	}

	c.JSON(http.StatusOK, acct)
}

// orderID picks the id clients track the order by: the upstream id once
// assigned, the local id until then.
func orderID(order models.Order) string {
	if order.UpstreamID != "" {
		return order.UpstreamID
	}
	return order.ID.String()
}

// respondError maps pipeline errors onto the response taxonomy. Nothing
// escapes as a raw fault.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		cooldownErr   *service.CooldownError
		rejectionErr  *upstream.RejectionError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})

	case errors.As(err, &cooldownErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "Wait before trying again",
			"remainingMs": cooldownErr.Remaining.Milliseconds(),
			"nextTime":    cooldownErr.NextTime.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})

	case errors.Is(err, service.ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance"})

	case errors.As(err, &rejectionErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upstream: " + rejectionErr.Message})

	case errors.Is(err, upstream.ErrUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Service temporarily unavailable"})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Order processing failed"})
	}
}
