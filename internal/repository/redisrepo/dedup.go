package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	dedupKeyPrefix = "purchase:dedup:"
	inflightValue  = "inflight"
)

// releaseScript удаляет ключ, только пока покупка еще в процессе.
// Завершенную покупку удалять нельзя, иначе повтор запроса создаст второй заказ.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PurchaseDedup окно дедупликации покупок в Redis.
type PurchaseDedup struct {
	rdb redis.UniversalClient
}

func NewPurchaseDedup(rdb redis.UniversalClient) *PurchaseDedup {
	return &PurchaseDedup{rdb: rdb}
}

// Acquire захватывает ключ через SET NX на ttl.
// Если ключ занят, возвращает Acquired=false и id заказа, если покупка уже завершена.
func (d *PurchaseDedup) Acquire(ctx context.Context, key string, ttl time.Duration) (repoargs.DedupResult, error) {
	ok, err := d.rdb.SetNX(ctx, dedupKeyPrefix+key, inflightValue, ttl).Result()
	if err != nil {
		return repoargs.DedupResult{}, convertErr(err, "acquiring dedup key `%s`", key)
	}
	if ok {
		return repoargs.DedupResult{Acquired: true}, nil
	}

	value, err := d.rdb.Get(ctx, dedupKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// ключ истек между SETNX и GET, считаем его занятым, клиент повторит запрос.
			return repoargs.DedupResult{}, nil
		}
		return repoargs.DedupResult{}, convertErr(err, "reading dedup key `%s`", key)
	}
	if value == inflightValue {
		return repoargs.DedupResult{}, nil
	}

	orderID, err := uuid.Parse(value)
	if err != nil {
		return repoargs.DedupResult{}, convertErr(err, "parsing order id of dedup key `%s`", key)
	}
	return repoargs.DedupResult{OrderID: orderID}, nil
}

// Complete запоминает id созданного заказа, чтобы повторы в пределах окна возвращали его же.
func (d *PurchaseDedup) Complete(ctx context.Context, key string, orderID uuid.UUID, ttl time.Duration) error {
	if err := d.rdb.Set(ctx, dedupKeyPrefix+key, orderID.String(), ttl).Err(); err != nil {
		return convertErr(err, "completing dedup key `%s`", key)
	}
	return nil
}

func (d *PurchaseDedup) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, d.rdb, []string{dedupKeyPrefix + key}, inflightValue).Err(); err != nil {
		return convertErr(err, "releasing dedup key `%s`", key)
	}
	return nil
}

func convertErr(err error, format string, args ...any) error {
	return fmt.Errorf("[redis/%s] %w: %s", fmt.Sprintf(format, args...), domain.ErrUnknown, err.Error())
}
