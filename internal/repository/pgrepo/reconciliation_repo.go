package pgrepo

import (
	"context"
	"errors"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const reconciliationColumns = `id, kind, reference, payload, error, status, resolved_by, resolved_at, resolution_note,
	created_at`

type ReconciliationRepository struct {
	db uow.DBTX
}

func NewReconciliationRepository(db uow.DBTX) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

func scanReconciliation(row pgx.Row) (*domain.ReconciliationRecord, error) {
	var rec domain.ReconciliationRecord
	if err := row.Scan(
		&rec.ID, &rec.Kind, &rec.Reference, &rec.Payload, &rec.Error, &rec.Status, &rec.ResolvedBy, &rec.ResolvedAt,
		&rec.ResolutionNote, &rec.CreatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &rec, nil
}

func (r *ReconciliationRepository) Create(
	ctx context.Context,
	args repoargs.ReconciliationCreate,
) (*domain.ReconciliationRecord, error) {
	payload := args.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	rec, err := scanReconciliation(r.db.QueryRow(ctx,
		`INSERT INTO reconciliation_log (kind, reference, payload, error)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+reconciliationColumns,
		args.Kind, args.Reference, payload, args.Error,
	))
	if err != nil {
		return nil, convertErr(err, "creating reconciliation record `%s`", args.Kind)
	}
	return rec, nil
}

func (r *ReconciliationRepository) List(
	ctx context.Context,
	status domain.ReconciliationStatus,
	limit uint,
) ([]domain.ReconciliationRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+reconciliationColumns+` FROM reconciliation_log WHERE status = $1 ORDER BY created_at LIMIT $2`,
		string(status), int64(limit), //nolint:gosec
	)
	if err != nil {
		return nil, convertErr(err, "listing reconciliation records")
	}
	defer rows.Close()

	var records []domain.ReconciliationRecord
	for rows.Next() {
		rec, scanErr := scanReconciliation(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning reconciliation record")
		}
		records = append(records, *rec)
	}
	return records, convertErr(rows.Err(), "iterating reconciliation records")
}

// Resolve закрывает открытую запись. Повторное закрытие дает domain.ErrReconciliationNotFound.
func (r *ReconciliationRepository) Resolve(
	ctx context.Context,
	id int64,
	adminID int64,
	note string,
) (*domain.ReconciliationRecord, error) {
	rec, err := scanReconciliation(r.db.QueryRow(ctx,
		`UPDATE reconciliation_log
		 SET status = 'resolved', resolved_by = $2, resolved_at = now(), resolution_note = $3
		 WHERE id = $1 AND status = 'open'
		 RETURNING `+reconciliationColumns,
		id, adminID, note,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErr(domain.ErrReconciliationNotFound, "resolving reconciliation record %d", id)
		}
		return nil, convertErr(err, "resolving reconciliation record %d", id)
	}
	return rec, nil
}
