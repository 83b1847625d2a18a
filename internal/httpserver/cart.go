package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"digitalstore/internal/domain"
)

func (h *handlers) listProducts(c *gin.Context) {
	products, err := h.deps.ProductRepo.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if products == nil {
		products = []domain.ProductVariation{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *handlers) createCart(c *gin.Context) {
	id := callerIdentity(c)
	cart, err := h.deps.Carts.CreateCart(c.Request.Context(), id.CustomerID, id.SessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cart)
}

func (h *handlers) getCart(c *gin.Context) {
	id := callerIdentity(c)
	cart, err := h.deps.Carts.GetCart(c.Request.Context(), id.CustomerID, id.SessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

type addItemRequest struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int64  `json:"quantity"`
	Combine  *bool  `json:"combine"`
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sku is required"})
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}
	combine := true
	if req.Combine != nil {
		combine = *req.Combine
	}

	ctx := c.Request.Context()
	variation, err := h.deps.ProductRepo.GetBySKU(ctx, req.SKU)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown sku"})
			return
		}
		h.respondError(c, err)
		return
	}

	id := callerIdentity(c)
	cart, err := h.deps.Carts.GetCart(ctx, id.CustomerID, id.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		cart, err = h.deps.Carts.CreateCart(ctx, id.CustomerID, id.SessionID)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	if _, err := h.deps.CartManager.AddEntity(ctx, cart, variation, req.Quantity, combine); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

type updateItemRequest struct {
	Quantity *int64 `json:"quantity" binding:"required"`
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}

	ctx := c.Request.Context()
	id := callerIdentity(c)
	cart, err := h.deps.Carts.GetCart(ctx, id.CustomerID, id.SessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ok, err := h.deps.CartManager.UpdateOrderItemQuantity(ctx, cart, c.Param("id"), *req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such item in the cart"})
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	ctx := c.Request.Context()
	id := callerIdentity(c)
	cart, err := h.deps.Carts.GetCart(ctx, id.CustomerID, id.SessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ok, err := h.deps.CartManager.RemoveOrderItemByID(ctx, cart, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such item in the cart"})
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *handlers) emptyCart(c *gin.Context) {
	ctx := c.Request.Context()
	id := callerIdentity(c)
	cart, err := h.deps.Carts.GetCart(ctx, id.CustomerID, id.SessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.deps.CartManager.EmptyCart(ctx, cart, true); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}
