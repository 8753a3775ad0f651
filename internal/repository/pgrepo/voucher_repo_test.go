package pgrepo

import (
	"testing"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var voucherRowColumns = []string{
	"code", "amount", "expires_at", "used", "used_by", "used_at", "created_by", "description", "created_at",
}

func TestVoucherRepository_MarkUsed(t *testing.T) {
	t.Parallel()

	now := time.Now()
	userID := int64(10)

	cases := []struct {
		name      string
		prepareFn func(t *testing.T, mock pgxmock.PgxConnIface, args repoargs.VoucherRedeem)
		wantErr   error
	}{
		{
			name: "redeemed",
			prepareFn: func(t *testing.T, mock pgxmock.PgxConnIface, args repoargs.VoucherRedeem) {
				t.Helper()
				mock.ExpectQuery("UPDATE vouchers SET used = true").
					WithArgs(args.Code, args.UserID, args.Now).
					WillReturnRows(pgxmock.NewRows(voucherRowColumns).AddRow(
						args.Code, decimal.NewFromInt(25), nil, true, &userID, &now, nil, "", now,
					))
			},
		},
		{
			name: "compare-and-set lost",
			prepareFn: func(t *testing.T, mock pgxmock.PgxConnIface, args repoargs.VoucherRedeem) {
				t.Helper()
				mock.ExpectQuery("UPDATE vouchers SET used = true").
					WithArgs(args.Code, args.UserID, args.Now).
					WillReturnRows(pgxmock.NewRows(voucherRowColumns))
			},
			wantErr: domain.ErrRecordNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mock, err := pgxmock.NewConn()
			require.NoError(t, err)
			defer mock.Close(t.Context())

			args := repoargs.VoucherRedeem{Code: "BK-ABCDEFGH", UserID: userID, Now: now}
			tc.prepareFn(t, mock, args)

			voucher, err := NewVoucherRepository(mock).MarkUsed(t.Context(), args)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				assert.True(t, voucher.Used)
				require.NotNil(t, voucher.UsedBy)
				assert.Equal(t, userID, *voucher.UsedBy)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestVoucherRepository_FindByCode_NotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer mock.Close(t.Context())

	mock.ExpectQuery("SELECT code").
		WithArgs("BK-MISSING1").
		WillReturnRows(pgxmock.NewRows(voucherRowColumns))

	_, err = NewVoucherRepository(mock).FindByCode(t.Context(), "BK-MISSING1")
	require.ErrorIs(t, err, domain.ErrVoucherNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
