package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func expectMessage(t *testing.T, check func(m Message)) mocks.ValueChecker {
	return func(val []byte) error {
		var m Message
		if err := json.Unmarshal(val, &m); err != nil {
			return err
		}
		assert.NotEqual(t, uuid.Nil, m.ID)
		assert.False(t, m.OccurredAt.IsZero())
		check(m)
		return nil
	}
}

func TestKafkaNotifier(t *testing.T) {
	ctx := context.Background()
	schoolID := uuid.New()
	invoiceID := uuid.New()
	paymentID := uuid.New()

	t.Run("publishes each notification kind", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(expectMessage(t, func(m Message) {
			assert.Equal(t, KindInvoiceGenerated, m.Type)
			assert.Equal(t, schoolID, m.SchoolID)
			assert.Equal(t, []uuid.UUID{invoiceID}, m.InvoiceIDs)
			assert.Nil(t, m.PaymentID)
		}))
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(expectMessage(t, func(m Message) {
			assert.Equal(t, KindPaymentReceived, m.Type)
			require.NotNil(t, m.PaymentID)
			assert.Equal(t, paymentID, *m.PaymentID)
		}))
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(expectMessage(t, func(m Message) {
			assert.Equal(t, KindInvoicesBulk, m.Type)
			assert.Len(t, m.InvoiceIDs, 2)
		}))

		n := NewKafkaNotifierWithProducer(producer, "schoolfees.ledger.notifications", nil)
		n.now = func() time.Time { return time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC) }

		require.NoError(t, n.NotifyInvoiceGenerated(ctx, schoolID, invoiceID))
		require.NoError(t, n.NotifyPaymentReceived(ctx, schoolID, paymentID))
		require.NoError(t, n.NotifyBulkInvoices(ctx, schoolID, []uuid.UUID{invoiceID, uuid.New()}))
		require.NoError(t, n.Close())
	})

	t.Run("empty bulk sends nothing", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		n := NewKafkaNotifierWithProducer(producer, "topic", nil)

		require.NoError(t, n.NotifyBulkInvoices(ctx, schoolID, nil))
		require.NoError(t, n.Close())
	})

	t.Run("broker errors are returned", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		n := NewKafkaNotifierWithProducer(producer, "topic", nil)

		err := n.NotifyInvoiceGenerated(ctx, schoolID, invoiceID)
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		require.NoError(t, n.Close())
	})

	t.Run("cancelled context is not published", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		n := NewKafkaNotifierWithProducer(producer, "topic", nil)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, n.NotifyPaymentReceived(cancelled, schoolID, paymentID), context.Canceled)
		require.NoError(t, n.Close())
	})
}

func TestNewKafkaNotifier_Validation(t *testing.T) {
	_, err := NewKafkaNotifier(KafkaConfig{Topic: "t"}, nil)
	assert.Error(t, err)

	_, err = NewKafkaNotifier(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))
	ctx := context.Background()
	schoolID := uuid.New()

	require.NoError(t, n.NotifyInvoiceGenerated(ctx, schoolID, uuid.New()))
	require.NoError(t, n.NotifyPaymentReceived(ctx, schoolID, uuid.New()))
	require.NoError(t, n.NotifyBulkInvoices(ctx, schoolID, []uuid.UUID{uuid.New(), uuid.New()}))

	require.Equal(t, 3, recorded.Len())
	bulk := recorded.FilterMessage("Invoices generated").All()
	require.Len(t, bulk, 1)
	assert.EqualValues(t, 2, bulk[0].ContextMap()["count"])
	assert.Equal(t, schoolID.String(), bulk[0].ContextMap()["school_id"])

	assert.NotPanics(t, func() {
		_ = NewLogNotifier(nil).NotifyInvoiceGenerated(ctx, schoolID, uuid.New())
	})
}
