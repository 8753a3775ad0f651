package pgrepo

import (
	"context"
	"errors"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const voucherColumns = "code, amount, expires_at, used, used_by, used_at, created_by, description, created_at"

type VoucherRepository struct {
	db uow.DBTX
}

func NewVoucherRepository(db uow.DBTX) *VoucherRepository {
	return &VoucherRepository{db: db}
}

func scanVoucher(row pgx.Row) (*domain.Voucher, error) {
	var v domain.Voucher
	if err := row.Scan(
		&v.Code, &v.Amount, &v.ExpiresAt, &v.Used, &v.UsedBy, &v.UsedAt, &v.CreatedBy, &v.Description, &v.CreatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &v, nil
}

func (r *VoucherRepository) Create(ctx context.Context, args repoargs.VoucherCreate) (*domain.Voucher, error) {
	voucher, err := scanVoucher(r.db.QueryRow(ctx,
		`INSERT INTO vouchers (code, amount, expires_at, created_by, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+voucherColumns,
		args.Code, args.Amount, args.ExpiresAt, args.CreatedBy, args.Description,
	))
	if err != nil {
		return nil, convertErr(err, "creating voucher `%s`", args.Code)
	}
	return voucher, nil
}

// MarkUsed атомарно помечает ваучер использованным: проверка "не использован и не истек" и запись
// выполняются одним UPDATE. Если условие не выполнилось, возвращается domain.ErrRecordNotFound,
// а причину определяет вызывающий по FindByCode.
func (r *VoucherRepository) MarkUsed(ctx context.Context, args repoargs.VoucherRedeem) (*domain.Voucher, error) {
	voucher, err := scanVoucher(r.db.QueryRow(ctx,
		`UPDATE vouchers SET used = true, used_by = $2, used_at = $3
		 WHERE code = $1 AND used = false AND (expires_at IS NULL OR expires_at > $3)
		 RETURNING `+voucherColumns,
		args.Code, args.UserID, args.Now,
	))
	if err != nil {
		return nil, convertErr(err, "marking voucher `%s` used", args.Code)
	}
	return voucher, nil
}

func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	voucher, err := scanVoucher(r.db.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErr(domain.ErrVoucherNotFound, "finding voucher `%s`", code)
		}
		return nil, convertErr(err, "finding voucher `%s`", code)
	}
	return voucher, nil
}

func (r *VoucherRepository) List(ctx context.Context, limit uint) ([]domain.Voucher, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+voucherColumns+` FROM vouchers ORDER BY created_at DESC LIMIT $1`,
		int64(limit), //nolint:gosec
	)
	if err != nil {
		return nil, convertErr(err, "listing vouchers")
	}
	defer rows.Close()

	var vouchers []domain.Voucher
	for rows.Next() {
		v, scanErr := scanVoucher(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning voucher")
		}
		vouchers = append(vouchers, *v)
	}
	return vouchers, convertErr(rows.Err(), "iterating vouchers")
}
