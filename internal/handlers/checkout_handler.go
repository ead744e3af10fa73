package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/routemart/checkout-backend/internal/docstore"
	"github.com/routemart/checkout-backend/internal/middleware"
	"github.com/routemart/checkout-backend/internal/models"
	"github.com/routemart/checkout-backend/internal/services"
	"github.com/routemart/checkout-backend/internal/utils"
	"github.com/routemart/checkout-backend/pkg/validator"
)

// CheckoutHandler exposes the checkout pipeline over HTTP.
type CheckoutHandler struct {
	checkoutService *services.CheckoutService
	contactVal      *validator.ContactValidator
	logger          *logrus.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkoutService *services.CheckoutService, logger *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		contactVal:      validator.NewContactValidator(),
		logger:          logger,
	}
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	defer h.recoverResponse(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.ErrCodeInvalidRequest,
			"message": "could not read request body",
		})
		return
	}

	req, err := models.NormalizeCheckoutRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.ErrCodeInvalidRequest,
			"message": err.Error(),
		})
		return
	}

	if cerr := req.Validate(); cerr != nil {
		c.JSON(http.StatusBadRequest, cerr)
		return
	}

	// Sanitize contact details once at the boundary.
	if req.Contact.Email != "" {
		email, err := h.contactVal.ValidateEmail(req.Contact.Email)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   models.ErrCodeInvalidRequest,
				"message": err.Error(),
				"details": gin.H{"contact_email": req.Contact.Email},
			})
			return
		}
		req.Contact.Email = email
	}
	if req.Contact.Phone != "" {
		phone, err := h.contactVal.ValidatePhone(req.Contact.Phone)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   models.ErrCodeInvalidRequest,
				"message": err.Error(),
				"details": gin.H{"contact_phone": req.Contact.Phone},
			})
			return
		}
		req.Contact.Phone = phone
	}

	signals := services.AttributionSignals{
		HeaderMode:    c.GetHeader("X-Agent-Mode"),
		BodyMode:      req.AgentMode,
		QueryMode:     firstQuery(c, "agentMode", "agent_mode"),
		HeaderAgentID: c.GetHeader("X-Agent-Id"),
		BodyAgentID:   req.AgentID,
		QueryAgentID:  firstQuery(c, "agentId", "agent_id"),
		HeaderEmail:   c.GetHeader("X-Agent-Email"),
		BodyEmail:     req.AgentEmail,
		QueryEmail:    firstQuery(c, "agentEmail", "agent_email"),
		ContextEmail:  middleware.GetAuthEmail(c),
	}

	bookingSource := utils.DetectBookingSource(c.Request.UserAgent())

	resp, cerr := h.checkoutService.Checkout(c.Request.Context(), req, signals, bookingSource)
	if cerr != nil {
		status := http.StatusInternalServerError
		if cerr.IsInput() {
			status = http.StatusBadRequest
		}
		c.JSON(status, cerr)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Status handles GET /api/v1/checkout/:durableId/status
func (h *CheckoutHandler) Status(c *gin.Context) {
	durableID := c.Param("durableId")
	if durableID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   models.ErrCodeInvalidRequest,
			"message": "durable id is required",
		})
		return
	}

	doc, err := h.checkoutService.Status(c.Request.Context(), durableID)
	if err != nil {
		if errors.Is(err, docstore.ErrCartNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "NOT_FOUND",
				"message": "no booking exists for this id",
			})
			return
		}
		h.logger.WithError(err).WithField("durable_id", durableID).Error("Status lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   models.ErrCodeStoreFailure,
			"message": "could not load booking status",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"durable_cart_id":  doc.DurableID,
		"provider_cart_id": doc.ProviderCartID,
		"status":           doc.Status,
		"booked_by":        doc.BookedBy,
		"invoice":          doc.Invoice,
		"updated_at":       doc.UpdatedAt,
	})
}

// recoverResponse is the last-resort error path: if building or sending a
// response itself panics, emit a minimal 500 unless headers already went
// out.
func (h *CheckoutHandler) recoverResponse(c *gin.Context) {
	if r := recover(); r != nil {
		h.logger.WithField("panic", r).Error("Checkout handler panicked")
		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "INTERNAL_ERROR",
				"message": "checkout failed unexpectedly",
			})
		}
		c.Abort()
	}
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}
