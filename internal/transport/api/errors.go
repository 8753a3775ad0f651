package api

import (
	"errors"
	"net/http"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
)

// errorMapping порядок важен: более специфичные ошибки раньше общих.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	// ErrSettlementFailed оборачивает и исходную причину, поэтому проверяется первой.
	{domain.ErrSettlementFailed, http.StatusInternalServerError, middlewares.CodeSettlementFailed},
	{domain.ErrConcurrencyConflict, http.StatusConflict, middlewares.CodeConflict},
	{domain.ErrSelfPurchase, http.StatusUnprocessableEntity, middlewares.CodeSelfPurchase},
	{domain.ErrOutOfStock, http.StatusConflict, middlewares.CodeOutOfStock},
	{domain.ErrListingNotFound, http.StatusNotFound, middlewares.CodeNotFound},
	{domain.ErrListingUnavailable, http.StatusConflict, middlewares.CodeListingUnavailable},
	{domain.ErrInsufficientFunds, http.StatusPaymentRequired, middlewares.CodeInsufficientFunds},
	{domain.ErrVoucherNotFound, http.StatusNotFound, middlewares.CodeVoucherNotFound},
	{domain.ErrVoucherExpired, http.StatusGone, middlewares.CodeVoucherExpired},
	{domain.ErrVoucherAlreadyUsed, http.StatusConflict, middlewares.CodeVoucherUsed},
	{domain.ErrAlreadyProcessed, http.StatusConflict, middlewares.CodeAlreadyProcessed},
	{domain.ErrPaymentAfterCancel, http.StatusConflict, middlewares.CodePaymentAfterCancel},
	{domain.ErrInvalidTransition, http.StatusConflict, middlewares.CodeInvalidTransition},
	{domain.ErrNotOrderParticipant, http.StatusForbidden, middlewares.CodeForbidden},
	{domain.ErrInvalidSignature, http.StatusUnauthorized, middlewares.CodeUnauthorized},
	{domain.ErrValidation, http.StatusUnprocessableEntity, middlewares.CodeValidation},
	{domain.ErrAccountNotFound, http.StatusNotFound, middlewares.CodeNotFound},
	{domain.ErrOrderNotFound, http.StatusNotFound, middlewares.CodeNotFound},
	{domain.ErrWithdrawalNotFound, http.StatusNotFound, middlewares.CodeNotFound},
	{domain.ErrReconciliationNotFound, http.StatusNotFound, middlewares.CodeNotFound},
	{domain.ErrRecordNotFound, http.StatusNotFound, middlewares.CodeNotFound},
}

// abortWithServiceError переводит ошибку сервиса в http статус и код ответа.
func abortWithServiceError(c *gin.Context, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			middlewares.AbortWithCode(c, m.status, m.code, err)
			return
		}
	}
	middlewares.AbortWithCode(c, http.StatusInternalServerError, middlewares.CodeInternal, err)
}

func abortWithBindError(c *gin.Context, err error) {
	middlewares.AbortWithCode(c, http.StatusBadRequest, middlewares.CodeValidation, err)
}
