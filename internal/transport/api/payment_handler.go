package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	signatureHeader     = "X-Signature"
	maxCallbackBodySize = 64 << 10
)

var errCallbackBodyTooLarge = errors.New("callback body too large")

type PaymentHandler struct {
	svs PaymentServicer
}

func NewPaymentHandler(svs PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svs: svs}
}

// Callback POST RouteGroup + PaymentCallbackRoute. Подпись проверяется по сырому телу запроса,
// поэтому тело читается целиком до разбора.
func (h *PaymentHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBodySize+1))
	if err != nil {
		abortWithBindError(c, err)
		return
	}
	if len(body) > maxCallbackBodySize {
		abortWithBindError(c, errCallbackBodyTooLarge)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	order, err := h.svs.HandleCallback(reqCtx, body, c.GetHeader(signatureHeader))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": order.ID, "status": order.Status})
}
