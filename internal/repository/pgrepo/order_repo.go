package pgrepo

import (
	"context"
	"errors"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, buyer_id, seller_id, listing_id, price, commission, payment_method, payment_txn, status,
	delivery_note, purchase_key, escrow_until, delivered_at, completed_at, created_at, updated_at`

type OrderRepository struct {
	db uow.DBTX
}

func NewOrderRepository(db uow.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(
		&o.ID, &o.BuyerID, &o.SellerID, &o.ListingID, &o.Price, &o.Commission, &o.PaymentMethod, &o.PaymentTxn,
		&o.Status, &o.DeliveryNote, &o.PurchaseKey, &o.EscrowUntil, &o.DeliveredAt, &o.CompletedAt,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &o, nil
}

func collectOrders(rows pgx.Rows, queryErr error, msg string) ([]domain.Order, error) {
	if queryErr != nil {
		return nil, convertErr(queryErr, "%s", msg)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, convertErr(err, "scanning order")
		}
		orders = append(orders, *order)
	}
	return orders, convertErr(rows.Err(), "%s", msg)
}

// Create сохраняет заказ. Цена и комиссия записываются один раз и больше не пересчитываются.
// Повтор purchase_key дает domain.ErrDuplicateKey.
func (r *OrderRepository) Create(ctx context.Context, args repoargs.OrderCreate) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx,
		`INSERT INTO orders (id, buyer_id, seller_id, listing_id, price, commission, payment_method, status,
		                     purchase_key, escrow_until, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		 RETURNING `+orderColumns,
		args.ID, args.BuyerID, args.SellerID, args.ListingID, args.Price, args.Commission,
		string(args.PaymentMethod), string(args.Status), args.PurchaseKey, args.EscrowUntil, args.Now,
	))
	if err != nil {
		return nil, convertErr(err, "creating order for listing %s", args.ListingID)
	}
	return order, nil
}

func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErr(domain.ErrOrderNotFound, "getting order %s", id)
		}
		return nil, convertErr(err, "getting order %s", id)
	}
	return order, nil
}

func (r *OrderRepository) FindByPurchaseKey(ctx context.Context, key string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE purchase_key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErr(domain.ErrOrderNotFound, "finding order by purchase key `%s`", key)
		}
		return nil, convertErr(err, "finding order by purchase key `%s`", key)
	}
	return order, nil
}

// Transition меняет статус заказа только если текущий статус равен args.From (compare-and-set).
// Если строка не обновилась, возвращается domain.ErrRecordNotFound.
func (r *OrderRepository) Transition(ctx context.Context, args repoargs.OrderTransition) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx,
		`UPDATE orders
		 SET status        = $3,
		     delivery_note = COALESCE($4, delivery_note),
		     payment_txn   = COALESCE($5, payment_txn),
		     delivered_at  = CASE WHEN $3 = 'delivered' THEN $6 ELSE delivered_at END,
		     completed_at  = CASE WHEN $3 = 'completed' THEN $6 ELSE completed_at END,
		     updated_at    = $6
		 WHERE id = $1 AND status = $2
		 RETURNING `+orderColumns,
		args.ID, string(args.From), string(args.To), args.DeliveryNote, args.PaymentTxn, args.Now,
	))
	if err != nil {
		return nil, convertErr(err, "moving order %s from %s to %s", args.ID, args.From, args.To)
	}
	return order, nil
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
	return collectOrders(rows, err, "listing orders of buyer")
}

func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID int64) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
	return collectOrders(rows, err, "listing orders of seller")
}

// ListEscrowExpired доставленные заказы, у которых истек срок удержания.
func (r *OrderRepository) ListEscrowExpired(ctx context.Context, now time.Time, limit uint) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = 'delivered' AND escrow_until <= $1
		 ORDER BY escrow_until LIMIT $2`,
		now, int64(limit), //nolint:gosec
	)
	return collectOrders(rows, err, "listing escrow expired orders")
}

// ListStalePending заказы внешней оплаты, созданные раньше before и так и не оплаченные.
func (r *OrderRepository) ListStalePending(ctx context.Context, before time.Time, limit uint) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = 'pending' AND created_at <= $1
		 ORDER BY created_at LIMIT $2`,
		before, int64(limit), //nolint:gosec
	)
	return collectOrders(rows, err, "listing stale pending orders")
}
