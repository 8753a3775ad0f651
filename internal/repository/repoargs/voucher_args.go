package repoargs

import (
	"time"

	"github.com/shopspring/decimal"
)

type VoucherCreate struct {
	Code        string
	Amount      decimal.Decimal
	ExpiresAt   *time.Time
	CreatedBy   *int64
	Description string
}

// VoucherRedeem аргументы атомарной пометки ваучера использованным.
type VoucherRedeem struct {
	Code   string
	UserID int64
	Now    time.Time
}
