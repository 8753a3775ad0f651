package repoargs

import (
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalCreate struct {
	UserID int64
	Amount decimal.Decimal
	Method string
	Notes  string
}

// WithdrawalTransition переход статуса заявки, выполняемый как compare-and-set по From.
type WithdrawalTransition struct {
	ID          uuid.UUID
	From        domain.WithdrawalStatus
	To          domain.WithdrawalStatus
	ProcessedBy int64
	AdminNotes  *string
	Now         time.Time
}

type WithdrawalFilter struct {
	UserID *int64
	Status *domain.WithdrawalStatus
	Limit  uint
}
