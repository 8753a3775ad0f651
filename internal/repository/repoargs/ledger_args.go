package repoargs

import (
	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/shopspring/decimal"
)

type LedgerEntryCreate struct {
	UserID       int64
	Delta        decimal.Decimal
	BalanceAfter decimal.Decimal
	Reason       domain.LedgerReason
	Reference    string
}
