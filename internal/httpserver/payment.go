package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"digitalstore/internal/domain"
)

// amountRequest carries an optional partial amount. With no amount the
// operation applies to the payment's full balance.
type amountRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (r amountRequest) price() (domain.Price, error) {
	if r.Amount == "" && r.Currency == "" {
		return domain.Price{}, nil
	}
	return domain.NewPrice(r.Amount, r.Currency)
}

func (h *handlers) capturePayment(c *gin.Context) {
	h.paymentOperation(c, func(payment *domain.Payment, amount domain.Price) error {
		return h.deps.Payments.CapturePayment(c.Request.Context(), payment, amount)
	})
}

func (h *handlers) voidPayment(c *gin.Context) {
	h.paymentOperation(c, func(payment *domain.Payment, _ domain.Price) error {
		return h.deps.Payments.VoidPayment(c.Request.Context(), payment)
	})
}

func (h *handlers) refundPayment(c *gin.Context) {
	h.paymentOperation(c, func(payment *domain.Payment, amount domain.Price) error {
		return h.deps.Payments.RefundPayment(c.Request.Context(), payment, amount)
	})
}

func (h *handlers) paymentOperation(c *gin.Context, op func(*domain.Payment, domain.Price) error) {
	var req amountRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
	}
	amount, err := req.price()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	payment, err := h.deps.PaymentRepo.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := op(payment, amount); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
