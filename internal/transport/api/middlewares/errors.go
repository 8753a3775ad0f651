package middlewares

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Коды ошибок API. Клиенты ориентируются на код, сообщение только для человека.
const (
	CodeValidation         = "validation"
	CodeSelfPurchase       = "self_purchase"
	CodeListingUnavailable = "listing_unavailable"
	CodeOutOfStock         = "out_of_stock"
	CodeInsufficientFunds  = "insufficient_funds"
	CodeVoucherNotFound    = "voucher_not_found"
	CodeVoucherExpired     = "voucher_expired"
	CodeVoucherUsed        = "voucher_used"
	CodeAlreadyProcessed   = "already_processed"
	CodeInvalidTransition  = "invalid_transition"
	CodePaymentAfterCancel = "payment_after_cancel"
	CodeNotFound           = "not_found"
	CodeForbidden          = "forbidden"
	CodeConflict           = "conflict"
	CodeUnauthorized       = "unauthorized"
	CodeSettlementFailed   = "settlement_failed"
	CodeInternal           = "internal"
)

// RetryAfterSeconds через сколько клиенту стоит повторить запрос после conflict.
const RetryAfterSeconds = 1

// AbortWithCode прерывает запрос с ошибкой. Заголовки не отправляются, ответ формирует Errors.
func AbortWithCode(c *gin.Context, status int, code string, err error) {
	errType := gin.ErrorTypePublic
	if status >= http.StatusInternalServerError {
		errType = gin.ErrorTypePrivate
	}
	c.Status(status)
	_ = c.Error(err).SetType(errType).SetMeta(code)
	c.Abort()
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}

// Errors отдает первую ошибку запроса в виде {code, message}. Сообщение локализуется по Accept-Language,
// внутренние детали ошибки клиенту не показываются.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// обрабатываем только первую ошибку
		firstErr := c.Errors[0]
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}

		code, ok := firstErr.Meta.(string)
		if !ok {
			code = codeForStatus(status)
			if firstErr.IsType(gin.ErrorTypeBind) {
				code = CodeValidation
			}
		}

		if code == CodeConflict {
			c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds))
		}
		c.JSON(status, gin.H{
			"code":    code,
			"message": Message(c.GetHeader("Accept-Language"), code),
		})
		c.Abort()
	}
}
