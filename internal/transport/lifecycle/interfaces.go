package lifecycle

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/digimarket/internal/domain"
)

type Servicer interface {
	OrdersForEscrowRelease(ctx context.Context, limit uint) ([]domain.Order, error)
	ReleaseEscrow(ctx context.Context, order domain.Order) (*domain.Order, error)
	StalePendingOrders(ctx context.Context, limit uint) ([]domain.Order, error)
	ExpirePending(ctx context.Context, order domain.Order) (*domain.Order, error)
}
