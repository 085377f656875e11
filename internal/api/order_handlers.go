package api

import (
	"net/http"
	"strconv"

	"partyshop/internal/cart"
	"partyshop/internal/models"
	"partyshop/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) getCart(c *gin.Context) {
	view, err := h.cartService.Get(c.Request.Context(), c.Param("cartId"), c.Query("coupon"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.cartService.Clear(c.Request.Context(), c.Param("cartId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	view, err := h.cartService.AddItem(c.Request.Context(), c.Param("cartId"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req service.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	view, err := h.cartService.UpdateItem(c.Request.Context(), c.Param("cartId"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	var key cart.Key
	if err := c.ShouldBindJSON(&key); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	view, err := h.cartService.RemoveItem(c.Request.Context(), c.Param("cartId"), key)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// checkout places an order from the cart; a replayed Idempotency-Key returns the original order
func (h *Handler) checkout(c *gin.Context) {
	var req cart.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, created, err := h.cartService.Checkout(c.Request.Context(), c.Param("cartId"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(orderStatusCode(created), order)
}

func (h *Handler) listAddresses(c *gin.Context) {
	addresses, err := h.cartService.ListAddresses(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, addresses)
}

func (h *Handler) saveAddress(c *gin.Context) {
	var addr models.Address
	if err := c.ShouldBindJSON(&addr); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	addresses, err := h.cartService.SaveAddress(c.Request.Context(), c.Param("userId"), addr)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addresses)
}

func orderStatusCode(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

// createOrder handles order creation from a client-built payload
func (h *Handler) createOrder(c *gin.Context) {
	var payload models.OrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if payload.IdempotencyKey == "" {
		payload.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, created, err := h.orderService.CreateOrder(c.Request.Context(), &payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(orderStatusCode(created), order)
}

// listOrders lists orders, optionally for ?user=
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), c.Query("user"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid order ID", nil)
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateOrderStatus handles admin status changes
func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid order ID", nil)
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
