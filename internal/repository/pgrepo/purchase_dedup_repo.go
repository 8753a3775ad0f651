package pgrepo

import (
	"context"
	"errors"
	"time"

	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PurchaseDedupRepository окно дедупликации покупок в Postgres. Используется, когда Redis не настроен.
type PurchaseDedupRepository struct {
	db  uow.DBTX
	now func() time.Time
}

func NewPurchaseDedupRepository(db uow.DBTX) *PurchaseDedupRepository {
	return &PurchaseDedupRepository{db: db, now: time.Now}
}

// Acquire захватывает ключ на ttl. Просроченная запись перезаписывается.
// Если ключ занят, возвращает Acquired=false и id заказа, если покупка уже завершена.
func (r *PurchaseDedupRepository) Acquire(
	ctx context.Context,
	key string,
	ttl time.Duration,
) (repoargs.DedupResult, error) {
	now := r.now()
	tag, err := r.db.Exec(ctx,
		`INSERT INTO purchase_dedup (key, order_id, expires_at) VALUES ($1, NULL, $2)
		 ON CONFLICT (key) DO UPDATE SET order_id = NULL, expires_at = EXCLUDED.expires_at
		 WHERE purchase_dedup.expires_at <= $3`,
		key, now.Add(ttl), now,
	)
	if err != nil {
		return repoargs.DedupResult{}, convertErr(err, "acquiring dedup key `%s`", key)
	}
	if tag.RowsAffected() == 1 {
		return repoargs.DedupResult{Acquired: true}, nil
	}

	var orderID *uuid.UUID
	if scanErr := r.db.QueryRow(ctx,
		`SELECT order_id FROM purchase_dedup WHERE key = $1`, key,
	).Scan(&orderID); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			// запись успели удалить, считаем ключ занятым, клиент повторит запрос.
			return repoargs.DedupResult{}, nil
		}
		return repoargs.DedupResult{}, convertErr(scanErr, "reading dedup key `%s`", key)
	}
	if orderID == nil {
		return repoargs.DedupResult{}, nil
	}
	return repoargs.DedupResult{OrderID: *orderID}, nil
}

func (r *PurchaseDedupRepository) Complete(ctx context.Context, key string, orderID uuid.UUID, ttl time.Duration) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE purchase_dedup SET order_id = $2, expires_at = $3 WHERE key = $1`,
		key, orderID, r.now().Add(ttl),
	); err != nil {
		return convertErr(err, "completing dedup key `%s`", key)
	}
	return nil
}

func (r *PurchaseDedupRepository) Release(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM purchase_dedup WHERE key = $1 AND order_id IS NULL`, key); err != nil {
		return convertErr(err, "releasing dedup key `%s`", key)
	}
	return nil
}
