package service

import (
	"context"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type AccountRepository interface {
	Create(ctx context.Context, userID int64) (*domain.Account, error)
	Get(ctx context.Context, userID int64) (*domain.Account, error)
	ApplyDelta(ctx context.Context, userID int64, delta decimal.Decimal) (*domain.Account, error)
	IncrementSales(ctx context.Context, userID int64) error
}

type LedgerEntryRepository interface {
	Create(ctx context.Context, args repoargs.LedgerEntryCreate) (*domain.LedgerEntry, error)
	ListByUser(ctx context.Context, userID int64, limit uint) ([]domain.LedgerEntry, error)
}

type VoucherRepository interface {
	Create(ctx context.Context, args repoargs.VoucherCreate) (*domain.Voucher, error)
	MarkUsed(ctx context.Context, args repoargs.VoucherRedeem) (*domain.Voucher, error)
	FindByCode(ctx context.Context, code string) (*domain.Voucher, error)
	List(ctx context.Context, limit uint) ([]domain.Voucher, error)
}

type ListingRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	ReserveUnit(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	Release(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
}

type OrderRepository interface {
	Create(ctx context.Context, args repoargs.OrderCreate) (*domain.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByPurchaseKey(ctx context.Context, key string) (*domain.Order, error)
	Transition(ctx context.Context, args repoargs.OrderTransition) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]domain.Order, error)
	ListEscrowExpired(ctx context.Context, now time.Time, limit uint) ([]domain.Order, error)
	ListStalePending(ctx context.Context, before time.Time, limit uint) ([]domain.Order, error)
}

type WithdrawalRepository interface {
	Create(ctx context.Context, args repoargs.WithdrawalCreate) (*domain.Withdrawal, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	Transition(ctx context.Context, args repoargs.WithdrawalTransition) (*domain.Withdrawal, error)
	List(ctx context.Context, filter repoargs.WithdrawalFilter) ([]domain.Withdrawal, error)
}

type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type ReconciliationRepository interface {
	Create(ctx context.Context, args repoargs.ReconciliationCreate) (*domain.ReconciliationRecord, error)
	List(ctx context.Context, status domain.ReconciliationStatus, limit uint) ([]domain.ReconciliationRecord, error)
	Resolve(ctx context.Context, id int64, adminID int64, note string) (*domain.ReconciliationRecord, error)
}

// DedupStore окно дедупликации повторных покупок (Redis или таблица в Postgres).
type DedupStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (repoargs.DedupResult, error)
	Complete(ctx context.Context, key string, orderID uuid.UUID, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// EventPublisher публикует события после фиксации транзакции. Ошибки доставки обрабатывает сама реализация.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any)
}
