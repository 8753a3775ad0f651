package api

import (
	"errors"
	"strconv"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errInvalidID = errors.New("invalid id")

// getUserIDFromContext берет из контекста gin ID текущего юзера. ID устанавливается в
// middlewares.AuthRequired. В случае, если значения в контексте нет или ошибка утверждения типа -
// вернется 0.
func getUserIDFromContext(c *gin.Context) int64 {
	userIDStr, exist := c.Get(middlewares.CurrentUserIDKey)
	if !exist {
		return 0
	}
	userID, ok := userIDStr.(int64)
	if !ok {
		return 0
	}
	return userID
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abortWithBindError(c, errInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abortWithBindError(c, errInvalidID)
		return 0, false
	}
	return id, true
}

func limitQuery(c *gin.Context) uint {
	limit, err := strconv.ParseUint(c.Query("limit"), 10, 32)
	if err != nil {
		return 0
	}
	return uint(limit)
}

// money форматирует сумму с двумя знаками после запятой.
func money(d decimal.Decimal) string {
	return d.StringFixed(domain.CurrencyPrecision)
}
