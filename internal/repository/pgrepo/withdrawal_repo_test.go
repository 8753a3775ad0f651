package pgrepo

import (
	"testing"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var withdrawalRowColumns = []string{
	"id", "user_id", "amount", "status", "method", "notes", "admin_notes", "processed_by", "processed_at",
	"created_at", "updated_at",
}

func TestWithdrawalRepository_Transition(t *testing.T) {
	t.Parallel()

	now := time.Now()
	adminID := int64(99)

	cases := []struct {
		name    string
		found   bool
		wantErr error
	}{
		{name: "pending to approved", found: true},
		{name: "already processed", found: false, wantErr: domain.ErrRecordNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mock, err := pgxmock.NewConn()
			require.NoError(t, err)
			defer mock.Close(t.Context())

			args := repoargs.WithdrawalTransition{
				ID:          uuid.New(),
				From:        domain.WithdrawalStatusPending,
				To:          domain.WithdrawalStatusApproved,
				ProcessedBy: adminID,
				Now:         now,
			}
			rows := pgxmock.NewRows(withdrawalRowColumns)
			if tc.found {
				rows.AddRow(args.ID, int64(1), decimal.NewFromInt(50), domain.WithdrawalStatusApproved,
					"bank_transfer", "", "", &adminID, &now, now, now)
			}
			mock.ExpectQuery("UPDATE withdrawals").
				WithArgs(args.ID, "pending", "approved", adminID, now, args.AdminNotes).
				WillReturnRows(rows)

			w, err := NewWithdrawalRepository(mock).Transition(t.Context(), args)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, domain.WithdrawalStatusApproved, w.Status)
				assert.Equal(t, adminID, *w.ProcessedBy)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWithdrawalRepository_List(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer mock.Close(t.Context())

	status := domain.WithdrawalStatusPending
	now := time.Now()
	mock.ExpectQuery(`FROM withdrawals WHERE status = \$1 ORDER BY created_at LIMIT \$2`).
		WithArgs("pending", int64(20)).
		WillReturnRows(pgxmock.NewRows(withdrawalRowColumns).
			AddRow(uuid.New(), int64(1), decimal.NewFromInt(75), status, "bank_transfer", "", "", nil, nil, now, now))

	list, err := NewWithdrawalRepository(mock).List(t.Context(), repoargs.WithdrawalFilter{Status: &status, Limit: 20})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].ProcessedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}
