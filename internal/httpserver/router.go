package httpserver

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"digitalstore/internal/domain"
)

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Customer-ID", "X-Session-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handlers{deps: deps, logger: logger}

	shop := router.Group("/", identityMiddleware())
	{
		shop.GET("/products", h.listProducts)

		shop.POST("/cart", h.createCart)
		shop.GET("/cart", h.getCart)
		shop.POST("/cart/items", h.addCartItem)
		shop.PATCH("/cart/items/:id", h.updateCartItem)
		shop.DELETE("/cart/items/:id", h.removeCartItem)
		shop.DELETE("/cart/items", h.emptyCart)

		shop.GET("/checkout", h.getCheckout)
		shop.POST("/checkout/billing", h.setBilling)
		shop.POST("/checkout/place-order", h.placeOrder)

		shop.DELETE("/payment-methods/:id", h.deletePaymentMethod)
	}

	// Operator surface for settling, releasing and refunding payments.
	payments := router.Group("/payments")
	{
		payments.POST("/:id/capture", h.capturePayment)
		payments.POST("/:id/void", h.voidPayment)
		payments.POST("/:id/refund", h.refundPayment)
	}

	return router
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}

// identity is the shopper making the request: an authenticated customer id
// or an anonymous session id.
type identity struct {
	CustomerID string
	SessionID  string
}

const identityCtxKey = "digitalstore/identity"

func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity{
			CustomerID: strings.TrimSpace(c.GetHeader("X-Customer-ID")),
			SessionID:  strings.TrimSpace(c.GetHeader("X-Session-ID")),
		}
		if id.CustomerID == "" && id.SessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-Customer-ID or X-Session-ID header required"})
			return
		}
		c.Set(identityCtxKey, id)
		c.Next()
	}
}

func callerIdentity(c *gin.Context) identity {
	v, _ := c.Get(identityCtxKey)
	id, _ := v.(identity)
	return id
}

// respondError maps domain errors onto HTTP statuses. Unknown errors become
// an opaque 500; the detail stays in the log.
func (h *handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, domain.ErrDuplicateCart):
		c.JSON(http.StatusConflict, gin.H{"error": "an active cart already exists"})
	case errors.Is(err, domain.ErrInvalidBilling):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidPaymentState),
		errors.Is(err, domain.ErrRefundExceedsBalance),
		errors.Is(err, domain.ErrGatewayModeMismatch),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrUnknownCurrency):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPaymentFailed), errors.Is(err, domain.ErrHardDecline):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": domain.ErrPaymentFailed.Error()})
	case errors.Is(err, domain.ErrGateway):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable"})
	default:
		h.logger.Printf("http: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
