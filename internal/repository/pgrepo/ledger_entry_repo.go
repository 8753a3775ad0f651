package pgrepo

import (
	"context"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const ledgerEntryColumns = "id, user_id, delta, balance_after, reason, reference, created_at"

type LedgerEntryRepository struct {
	db uow.DBTX
}

func NewLedgerEntryRepository(db uow.DBTX) *LedgerEntryRepository {
	return &LedgerEntryRepository{db: db}
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	if err := row.Scan(
		&e.ID, &e.UserID, &e.Delta, &e.BalanceAfter, &e.Reason, &e.Reference, &e.CreatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &e, nil
}

func (r *LedgerEntryRepository) Create(
	ctx context.Context,
	args repoargs.LedgerEntryCreate,
) (*domain.LedgerEntry, error) {
	entry, err := scanLedgerEntry(r.db.QueryRow(ctx,
		`INSERT INTO ledger_entries (user_id, delta, balance_after, reason, reference)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+ledgerEntryColumns,
		args.UserID, args.Delta, args.BalanceAfter, string(args.Reason), args.Reference,
	))
	if err != nil {
		return nil, convertErr(err, "creating ledger entry for account %d", args.UserID)
	}
	return entry, nil
}

// ListByUser возвращает последние записи журнала пользователя, новые сверху.
func (r *LedgerEntryRepository) ListByUser(ctx context.Context, userID int64, limit uint) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ledgerEntryColumns+` FROM ledger_entries WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, int64(limit), //nolint:gosec
	)
	if err != nil {
		return nil, convertErr(err, "listing ledger entries of account %d", userID)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, scanErr := scanLedgerEntry(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning ledger entry")
		}
		entries = append(entries, *entry)
	}
	return entries, convertErr(rows.Err(), "iterating ledger entries")
}
