package handler

import (
	"net/http"
	"time"

	"github.com/boostgw/boostgw/internal/filter"
	"github.com/boostgw/boostgw/internal/service"
	"github.com/boostgw/boostgw/internal/upstream"
	"github.com/gin-gonic/gin"
)

// AdminHandler serves the operator surface: login, gateway status, the
// abuse block list, and the upstream account balance.
type AdminHandler struct {
	auth      *service.AuthService
	boost     *service.BoostService
	filter    *filter.Filter
	upstream  *upstream.Client
	startTime time.Time
}

func NewAdminHandler(auth *service.AuthService, boost *service.BoostService, f *filter.Filter, up *upstream.Client) *AdminHandler {
	return &AdminHandler{
		auth:      auth,
		boost:     boost,
		filter:    f,
		upstream:  up,
		startTime: time.Now(),
	}
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Status handles GET /admin/status.
func (h *AdminHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"gateway":   "running",
		"uptime":    time.Since(h.startTime).Seconds(),
		"orders":    h.boost.OrderStats(),
		"blocked":   len(h.filter.Blocklist()),
		"timestamp": time.Now().Unix(),
	})
}

// Blocklist handles GET /admin/blocklist.
func (h *AdminHandler) Blocklist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"blocked": h.filter.Blocklist()})
}

// Balance handles GET /api/balance: the reseller account balance.
func (h *AdminHandler) Balance(c *gin.Context) {
	balance, err := h.upstream.Balance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}
