package api

import (
	"context"
	"net/http"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/gin-gonic/gin"
)

const roleQuerySeller = "seller"

type OrdersHandler struct {
	orderService OrderServicer
}

func NewOrdersHandler(orderService OrderServicer) *OrdersHandler {
	return &OrdersHandler{orderService: orderService}
}

// Index GET RouteGroup + OrdersRoute. По умолчанию заказы покупателя, ?role=seller - продавца.
func (h *OrdersHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	var (
		orders []domain.Order
		err    error
	)
	if c.Query("role") == roleQuerySeller {
		orders, err = h.orderService.ListForSeller(reqCtx, currentUserID)
	} else {
		orders, err = h.orderService.ListForBuyer(reqCtx, currentUserID)
	}
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	if len(orders) == 0 {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	response := make([]OrderResponse, len(orders))
	for i := range orders {
		response[i] = newOrderResponse(&orders[i])
	}
	c.JSON(http.StatusOK, response)
}

type DeliverParams struct {
	Note string `binding:"omitempty,max_bytes=2048" json:"note"`
}

// Deliver POST RouteGroup + OrderDeliverRoute.
func (h *OrdersHandler) Deliver(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	// заметка необязательна, пустое тело допустимо
	var params DeliverParams
	if c.Request.ContentLength > 0 {
		if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
			abortWithBindError(c, bindErr)
			return
		}
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	order, err := h.orderService.MarkDelivered(reqCtx, getUserIDFromContext(c), orderID, params.Note)
	h.respond(c, order, err)
}

// Confirm POST RouteGroup + OrderConfirmRoute.
func (h *OrdersHandler) Confirm(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	order, err := h.orderService.Confirm(reqCtx, getUserIDFromContext(c), orderID)
	h.respond(c, order, err)
}

type ReasonParams struct {
	Reason string `binding:"required,max_bytes=1024" json:"reason"`
}

// Dispute POST RouteGroup + OrderDisputeRoute.
func (h *OrdersHandler) Dispute(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var params ReasonParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	order, err := h.orderService.RaiseDispute(reqCtx, getUserIDFromContext(c), orderID, params.Reason)
	h.respond(c, order, err)
}

// Cancel POST RouteGroup + AdminOrderCancelRoute. Отмена с возвратом средств.
func (h *OrdersHandler) Cancel(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var params ReasonParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	order, err := h.orderService.Cancel(reqCtx, orderID, params.Reason)
	h.respond(c, order, err)
}

type ResolveDisputeParams struct {
	// Complete true - заказ завершается в пользу продавца, false - отменяется с возвратом.
	Complete *bool  `binding:"required"                  json:"complete"`
	Note     string `binding:"omitempty,max_bytes=1024" json:"note"`
}

// Resolve POST RouteGroup + AdminOrderResolveRoute.
func (h *OrdersHandler) Resolve(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var params ResolveDisputeParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	order, err := h.orderService.ResolveDispute(reqCtx, orderID, *params.Complete, params.Note)
	h.respond(c, order, err)
}

func (h *OrdersHandler) respond(c *gin.Context, order *domain.Order, err error) {
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}
