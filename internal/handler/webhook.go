package handler

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WebhookHandler accepts the payment provider's callback. The payload is
// acknowledged and logged; settlement itself happens on the provider's side.
type WebhookHandler struct {
	secret string
}

func NewWebhookHandler(secret string) *WebhookHandler {
	return &WebhookHandler{secret: secret}
}

// Gumroad handles POST /api/gumroad-webhook. Gumroad pings carry no
// signature; when a shared secret is configured it must match the "secret"
// field, which at least rejects casual forgeries.
func (h *WebhookHandler) Gumroad(c *gin.Context) {
	var payload struct {
		Email      string `json:"email"`
		ProductID  string `json:"product_id"`
		Price      string `json:"price"`
		LicenseKey string `json:"license_key"`
		Secret     string `json:"secret"`
	}

	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	if h.secret != "" {
		if subtle.ConstantTimeCompare([]byte(payload.Secret), []byte(h.secret)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid webhook secret"})
			return
		}
	}

	log.Printf("Gumroad webhook received: email=%s product=%s price=%s",
		payload.Email, payload.ProductID, payload.Price)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment received"})
}
