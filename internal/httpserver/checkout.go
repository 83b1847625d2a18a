package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"digitalstore/internal/domain"
)

// checkoutOrder loads the order a checkout request targets: the current cart
// by default, or the order named by the "order" query parameter, which keeps
// placed orders reachable for the order-received page.
func (h *handlers) checkoutOrder(c *gin.Context) (*domain.Order, error) {
	ctx := c.Request.Context()
	id := callerIdentity(c)
	if orderID := c.Query("order"); orderID != "" {
		return h.deps.OrderRepo.GetByID(ctx, orderID)
	}
	return h.deps.Carts.GetCart(ctx, id.CustomerID, id.SessionID)
}

func (h *handlers) getCheckout(c *gin.Context) {
	order, err := h.checkoutOrder(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	id := callerIdentity(c)
	if err := h.deps.Checkout.CheckAccess(order, id.CustomerID, id.SessionID); err != nil {
		h.respondError(c, err)
		return
	}

	step, redirect := h.deps.Checkout.ResolveStep(order, c.Query("step"))
	c.JSON(http.StatusOK, gin.H{
		"order":          order,
		"step":           step,
		"steps":          h.deps.Checkout.Steps(),
		"redirect":       redirect,
		"publishableKey": h.deps.PublishableKey,
	})
}

type billingRequest struct {
	Email   string         `json:"email"`
	Address domain.Address `json:"address"`
}

func (h *handlers) setBilling(c *gin.Context) {
	var req billingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid billing payload"})
		return
	}

	order, err := h.checkoutOrder(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	id := callerIdentity(c)
	if err := h.deps.Checkout.CheckAccess(order, id.CustomerID, id.SessionID); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.deps.Checkout.SetBilling(c.Request.Context(), order, req.Email, req.Address); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "step": domain.CheckoutStepPayment})
}

type placeOrderRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *handlers) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	order, err := h.checkoutOrder(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	id := callerIdentity(c)
	if err := h.deps.Checkout.CheckAccess(order, id.CustomerID, id.SessionID); err != nil {
		h.respondError(c, err)
		return
	}
	if h.deps.Checkout.StepID(order) != domain.CheckoutStepPayment {
		c.JSON(http.StatusConflict, gin.H{"error": "billing details must be confirmed first"})
		return
	}

	payment, err := h.deps.Payments.PlaceOrder(c.Request.Context(), order, req.Token, id.SessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":   order,
		"payment": payment,
		"step":    domain.CheckoutStepCompleted,
	})
}

func (h *handlers) deletePaymentMethod(c *gin.Context) {
	methodID := c.Param("id")
	method, err := h.deps.PaymentRepo.GetMethod(c.Request.Context(), methodID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Only the owning customer may drop a stored card.
	id := callerIdentity(c)
	if method.OwnerID == nil || id.CustomerID == "" || *method.OwnerID != id.CustomerID {
		h.respondError(c, domain.ErrAccessDenied)
		return
	}

	if err := h.deps.Payments.DeletePaymentMethod(c.Request.Context(), methodID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
