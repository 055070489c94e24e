package devserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/galihrivanto/unipig/api"
	"github.com/galihrivanto/unipig/logging"
	"github.com/galihrivanto/unipig/wallet"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// DefaultMaxAge bounds how old a permission may be.
const DefaultMaxAge = 10 * time.Minute

const addressKey = "address"

// Handlers serves the game endpoints over a ledger.
type Handlers struct {
	ledger *Ledger
	maxAge time.Duration
	now    func() time.Time
	logger logging.Logger
}

// NewHandlers creates handlers over ledger.
func NewHandlers(ledger *Ledger, maxAge time.Duration, logger logging.Logger) *Handlers {
	return &Handlers{
		ledger: ledger,
		maxAge: maxAge,
		now:    time.Now,
		logger: logging.OrNoop(logger),
	}
}

// RequirePermission rejects requests whose body does not carry a valid signed
// permission and stores the verified address in the context.
func (h *Handlers) RequirePermission(c *gin.Context) {
	var req api.PermissionRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	p := wallet.Permission{Time: req.Time, Signature: req.Signature}
	if err := wallet.VerifyPermission(req.Address, p, h.now(), h.maxAge); err != nil {
		h.logger.Printf("permission rejected for %s: %v", req.Address, err)
		if errors.Is(err, wallet.ErrPermissionExpired) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Permission expired"})
		} else {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		}
		return
	}

	c.Set(addressKey, req.Address)
	c.Next()
}

// Airdrop credits the caller and the scanned player.
func (h *Handlers) Airdrop(c *gin.Context) {
	var req api.AirdropRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil || !wallet.IsAddress(req.ScannedAddress) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scanned address"})
		return
	}

	if err := h.ledger.Airdrop(c.GetString(addressKey), req.ScannedAddress); err != nil {
		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrSelfAirdrop):
			statusCode = http.StatusBadRequest
		case errors.Is(err, ErrAlreadyAirdropped):
			statusCode = http.StatusConflict
		}
		c.JSON(statusCode, gin.H{"error": err.Error()})
		return
	}

	h.logger.Printf("airdrop %s <-> %s", c.GetString(addressKey), req.ScannedAddress)
	c.Status(http.StatusOK)
}

// FaucetData reports the Twitter faucet status of the caller.
func (h *Handlers) FaucetData(c *gin.Context) {
	canFaucet, handle := h.ledger.FaucetStatus(c.GetString(addressKey))
	c.JSON(http.StatusOK, api.FaucetStatus{CanFaucet: canFaucet, TwitterHandle: handle})
}

// AddressData returns balances and boosts of the caller.
func (h *Handlers) AddressData(c *gin.Context) {
	balances, boosts := h.ledger.AddressData(c.GetString(addressKey))
	c.JSON(http.StatusOK, api.AddressData{BoostsLeft: boosts, Balances: balances})
}

// Tweet stands in for the Twitter listener: it records that address tweeted.
func (h *Handlers) Tweet(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
		Handle  string `json:"handle" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !wallet.IsAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.ledger.Tweet(req.Address, req.Handle); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	h.logger.Printf("tweet from @%s for %s", req.Handle, req.Address)
	c.JSON(http.StatusOK, gin.H{"message": "Recorded"})
}
