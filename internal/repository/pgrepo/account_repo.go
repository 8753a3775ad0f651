package pgrepo

import (
	"context"
	"errors"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = "user_id, balance, total_sales, created_at, updated_at"

type AccountRepository struct {
	db uow.DBTX
}

func NewAccountRepository(db uow.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.UserID, &a.Balance, &a.TotalSales, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &a, nil
}

// Create открывает счет пользователя. Повторный вызов возвращает уже существующий счет.
func (r *AccountRepository) Create(ctx context.Context, userID int64) (*domain.Account, error) {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID,
	); err != nil {
		return nil, convertErr(err, "creating account %d", userID)
	}
	return r.Get(ctx, userID)
}

func (r *AccountRepository) Get(ctx context.Context, userID int64) (*domain.Account, error) {
	account, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErr(domain.ErrAccountNotFound, "getting account %d", userID)
		}
		return nil, convertErr(err, "getting account %d", userID)
	}
	return account, nil
}

// ApplyDelta атомарно прибавляет delta к балансу. Условие balance + delta >= 0 проверяется в том же UPDATE,
// поэтому параллельные списания не могут увести баланс в минус.
// Ошибки: domain.ErrInsufficientFunds, domain.ErrAccountNotFound.
func (r *AccountRepository) ApplyDelta(
	ctx context.Context,
	userID int64,
	delta decimal.Decimal,
) (*domain.Account, error) {
	account, err := scanAccount(r.db.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $2, updated_at = now()
		 WHERE user_id = $1 AND balance + $2 >= 0
		 RETURNING `+accountColumns,
		userID, delta,
	))
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, convertErr(err, "applying delta %s to account %d", delta, userID)
	}

	var exists bool
	if existsErr := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE user_id = $1)`, userID,
	).Scan(&exists); existsErr != nil {
		return nil, convertErr(existsErr, "checking account %d", userID)
	}
	if !exists {
		return nil, domainErr(domain.ErrAccountNotFound, "applying delta to account %d", userID)
	}
	return nil, domainErr(domain.ErrInsufficientFunds, "applying delta %s to account %d", delta, userID)
}

func (r *AccountRepository) IncrementSales(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET total_sales = total_sales + 1, updated_at = now() WHERE user_id = $1`, userID,
	)
	if err != nil {
		return convertErr(err, "incrementing sales of account %d", userID)
	}
	if tag.RowsAffected() == 0 {
		return domainErr(domain.ErrAccountNotFound, "incrementing sales of account %d", userID)
	}
	return nil
}
