package pgrepo

import (
	"testing"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderRowColumns = []string{
	"id", "buyer_id", "seller_id", "listing_id", "price", "commission", "payment_method", "payment_txn", "status",
	"delivery_note", "purchase_key", "escrow_until", "delivered_at", "completed_at", "created_at", "updated_at",
}

func orderRow(o *domain.Order) []any {
	return []any{
		o.ID, o.BuyerID, o.SellerID, o.ListingID, o.Price, o.Commission, o.PaymentMethod, o.PaymentTxn, o.Status,
		o.DeliveryNote, o.PurchaseKey, o.EscrowUntil, o.DeliveredAt, o.CompletedAt, o.CreatedAt, o.UpdatedAt,
	}
}

func TestOrderRepository_Create(t *testing.T) {
	t.Parallel()

	now := time.Now()
	key := "1:retry-key"
	args := repoargs.OrderCreate{
		ID:            uuid.New(),
		BuyerID:       1,
		SellerID:      2,
		ListingID:     uuid.New(),
		Price:         decimal.NewFromInt(60),
		Commission:    decimal.NewFromInt(6),
		PaymentMethod: domain.PaymentMethodBalance,
		Status:        domain.OrderStatusPaid,
		PurchaseKey:   &key,
		EscrowUntil:   now.Add(72 * time.Hour),
		Now:           now,
	}

	cases := []struct {
		name      string
		prepareFn func(t *testing.T, mock pgxmock.PgxConnIface)
		wantErr   error
	}{
		{
			name: "created",
			prepareFn: func(t *testing.T, mock pgxmock.PgxConnIface) {
				t.Helper()
				order := &domain.Order{
					ID: args.ID, BuyerID: args.BuyerID, SellerID: args.SellerID, ListingID: args.ListingID,
					Price: args.Price, Commission: args.Commission, PaymentMethod: args.PaymentMethod,
					Status: args.Status, PurchaseKey: args.PurchaseKey, EscrowUntil: args.EscrowUntil,
					CreatedAt: now, UpdatedAt: now,
				}
				mock.ExpectQuery("INSERT INTO orders").
					WithArgs(args.ID, args.BuyerID, args.SellerID, args.ListingID, args.Price, args.Commission,
						"balance", "paid", args.PurchaseKey, args.EscrowUntil, args.Now).
					WillReturnRows(pgxmock.NewRows(orderRowColumns).AddRow(orderRow(order)...))
			},
		},
		{
			name: "duplicate purchase key",
			prepareFn: func(t *testing.T, mock pgxmock.PgxConnIface) {
				t.Helper()
				mock.ExpectQuery("INSERT INTO orders").
					WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})
			},
			wantErr: domain.ErrDuplicateKey,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mock, err := pgxmock.NewConn()
			require.NoError(t, err)
			defer mock.Close(t.Context())

			tc.prepareFn(t, mock)

			order, err := NewOrderRepository(mock).Create(t.Context(), args)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				assert.True(t, order.SellerNet().Equal(decimal.NewFromInt(54)))
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestOrderRepository_Transition(t *testing.T) {
	t.Parallel()

	now := time.Now()
	note := "key: AAAA-BBBB"

	cases := []struct {
		name    string
		found   bool
		wantErr error
	}{
		{name: "status matched", found: true},
		{name: "status changed concurrently", found: false, wantErr: domain.ErrRecordNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mock, err := pgxmock.NewConn()
			require.NoError(t, err)
			defer mock.Close(t.Context())

			args := repoargs.OrderTransition{
				ID:           uuid.New(),
				From:         domain.OrderStatusPaid,
				To:           domain.OrderStatusDelivered,
				DeliveryNote: &note,
				Now:          now,
			}
			rows := pgxmock.NewRows(orderRowColumns)
			if tc.found {
				rows.AddRow(orderRow(&domain.Order{
					ID: args.ID, Status: domain.OrderStatusDelivered, DeliveryNote: note, DeliveredAt: &now,
					Price: decimal.NewFromInt(60), Commission: decimal.NewFromInt(6),
					PaymentMethod: domain.PaymentMethodBalance,
				})...)
			}
			mock.ExpectQuery("UPDATE orders").
				WithArgs(args.ID, "paid", "delivered", args.DeliveryNote, args.PaymentTxn, args.Now).
				WillReturnRows(rows)

			order, err := NewOrderRepository(mock).Transition(t.Context(), args)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, domain.OrderStatusDelivered, order.Status)
				assert.Equal(t, note, order.DeliveryNote)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
