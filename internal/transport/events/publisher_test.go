package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fsdevblog/digimarket/internal/transport/events/mocks"
	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPaid struct {
	OrderID string `json:"orderId"`
	Price   string `json:"price"`
}

func TestPublisher_Publish(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConn(ctrl)
	logger, hook := test.NewNullLogger()

	p := NewPublisher(conn, logger)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("TRT", 3*60*60))
	p.now = func() time.Time { return now }

	var sent []byte
	conn.EXPECT().Publish("market.orders.paid", gomock.Any()).
		DoAndReturn(func(_ string, data []byte) error {
			sent = data
			return nil
		})

	p.Publish(t.Context(), "market.orders.paid", orderPaid{OrderID: "o-1", Price: "60"})

	var got struct {
		ID         string    `json:"id"`
		Subject    string    `json:"subject"`
		OccurredAt time.Time `json:"occurredAt"`
		Payload    orderPaid `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(sent, &got))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "market.orders.paid", got.Subject)
	assert.True(t, now.Equal(got.OccurredAt))
	assert.Equal(t, time.UTC, got.OccurredAt.Location())
	assert.Equal(t, orderPaid{OrderID: "o-1", Price: "60"}, got.Payload)
	assert.Empty(t, hook.AllEntries())
}

func TestPublisher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		pubErr  error
		wantMsg string
	}{
		{name: "connection closed", payload: orderPaid{}, pubErr: errors.New("nats: connection closed"), wantMsg: "publish event"},
		{name: "not encodable", payload: make(chan int), wantMsg: "encode event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			conn := mocks.NewMockConn(ctrl)
			logger, hook := test.NewNullLogger()

			if tt.pubErr != nil {
				conn.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(tt.pubErr)
			}

			NewPublisher(conn, logger).Publish(t.Context(), "market.withdrawals.approved", tt.payload)

			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
			assert.Equal(t, tt.wantMsg, hook.LastEntry().Message)
			assert.Equal(t, "market.withdrawals.approved", hook.LastEntry().Data["subject"])
		})
	}
}

func TestNoop(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	NewNoop(logger).Publish(t.Context(), "market.vouchers.redeemed", nil)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}
