package pgrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, user_id, amount, status, method, notes, admin_notes, processed_by, processed_at,
	created_at, updated_at`

type WithdrawalRepository struct {
	db uow.DBTX
}

func NewWithdrawalRepository(db uow.DBTX) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	if err := row.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Status, &w.Method, &w.Notes, &w.AdminNotes, &w.ProcessedBy, &w.ProcessedAt,
		&w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &w, nil
}

func (r *WithdrawalRepository) Create(ctx context.Context, args repoargs.WithdrawalCreate) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(r.db.QueryRow(ctx,
		`INSERT INTO withdrawals (id, user_id, amount, method, notes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+withdrawalColumns,
		uuid.New(), args.UserID, args.Amount, args.Method, args.Notes,
	))
	if err != nil {
		return nil, convertErr(err, "creating withdrawal for account %d", args.UserID)
	}
	return w, nil
}

func (r *WithdrawalRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(r.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErr(domain.ErrWithdrawalNotFound, "getting withdrawal %s", id)
		}
		return nil, convertErr(err, "getting withdrawal %s", id)
	}
	return w, nil
}

// Transition меняет статус заявки только если текущий статус равен args.From (compare-and-set).
// Если строка не обновилась, возвращается domain.ErrRecordNotFound.
func (r *WithdrawalRepository) Transition(
	ctx context.Context,
	args repoargs.WithdrawalTransition,
) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(r.db.QueryRow(ctx,
		`UPDATE withdrawals
		 SET status       = $3,
		     processed_by = $4,
		     processed_at = $5,
		     admin_notes  = COALESCE($6, admin_notes),
		     updated_at   = $5
		 WHERE id = $1 AND status = $2
		 RETURNING `+withdrawalColumns,
		args.ID, string(args.From), string(args.To), args.ProcessedBy, args.Now, args.AdminNotes,
	))
	if err != nil {
		return nil, convertErr(err, "moving withdrawal %s from %s to %s", args.ID, args.From, args.To)
	}
	return w, nil
}

// List заявки по фильтру, старые сверху, чтобы админ обрабатывал их по очереди.
func (r *WithdrawalRepository) List(ctx context.Context, filter repoargs.WithdrawalFilter) ([]domain.Withdrawal, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, int64(filter.Limit)) //nolint:gosec
	query += fmt.Sprintf(" ORDER BY created_at LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, convertErr(err, "listing withdrawals")
	}
	defer rows.Close()

	var result []domain.Withdrawal
	for rows.Next() {
		w, scanErr := scanWithdrawal(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning withdrawal")
		}
		result = append(result, *w)
	}
	return result, convertErr(rows.Err(), "iterating withdrawals")
}
