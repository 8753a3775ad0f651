package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SettlementServicer interface {
	Purchase(ctx context.Context, args service.PurchaseArgs) (*service.Receipt, error)
	Checkout(ctx context.Context, buyerID int64, listingID uuid.UUID) (*domain.Order, error)
}

type VoucherServicer interface {
	Redeem(ctx context.Context, code string, userID int64) (*service.RedeemResult, error)
	Create(ctx context.Context, args service.CreateVoucherArgs) (*domain.Voucher, error)
	List(ctx context.Context, limit uint) ([]domain.Voucher, error)
}

type LedgerServicer interface {
	Balance(ctx context.Context, userID int64) (*domain.Account, error)
	Entries(ctx context.Context, userID int64, limit uint) ([]domain.LedgerEntry, error)
	Open(ctx context.Context, userID int64) (*domain.Account, error)
	Grant(ctx context.Context, adminID, userID int64, amount decimal.Decimal) (*domain.Account, error)
}

type OrderServicer interface {
	ListForBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error)
	ListForSeller(ctx context.Context, sellerID int64) ([]domain.Order, error)
	MarkDelivered(ctx context.Context, sellerID int64, orderID uuid.UUID, note string) (*domain.Order, error)
	Confirm(ctx context.Context, buyerID int64, orderID uuid.UUID) (*domain.Order, error)
	RaiseDispute(ctx context.Context, userID int64, orderID uuid.UUID, reason string) (*domain.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*domain.Order, error)
	ResolveDispute(ctx context.Context, orderID uuid.UUID, complete bool, note string) (*domain.Order, error)
}

type WithdrawalServicer interface {
	Request(ctx context.Context, args service.WithdrawalRequestArgs) (*domain.Withdrawal, error)
	Approve(ctx context.Context, id uuid.UUID, adminID int64, notes string) (*domain.Withdrawal, error)
	Reject(ctx context.Context, id uuid.UUID, adminID int64, reason string) (*domain.Withdrawal, error)
	Complete(ctx context.Context, id uuid.UUID, adminID int64) (*domain.Withdrawal, error)
	List(ctx context.Context, filter repoargs.WithdrawalFilter) ([]domain.Withdrawal, error)
	ListForUser(ctx context.Context, userID int64) ([]domain.Withdrawal, error)
}

type PaymentServicer interface {
	HandleCallback(ctx context.Context, body []byte, signature string) (*domain.Order, error)
}

type SettingsServicer interface {
	CommissionRate(ctx context.Context) (decimal.Decimal, error)
	SetCommissionRate(ctx context.Context, rate decimal.Decimal) error
}

type ReconciliationServicer interface {
	List(ctx context.Context, status domain.ReconciliationStatus, limit uint) ([]domain.ReconciliationRecord, error)
	Resolve(ctx context.Context, id, adminID int64, note string) (*domain.ReconciliationRecord, error)
}
