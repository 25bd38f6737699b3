package event

import (
	"testing"

	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	t.Run("type specific handlers come before wildcards", func(t *testing.T) {
		registry := NewHandlerRegistry()
		payments := newRecordingHandler(finance.EventTypePaymentReceived)
		audit := newRecordingHandler()

		registry.Register(audit)
		registry.Register(payments, finance.EventTypePaymentReceived)

		handlers := registry.GetHandlers(finance.EventTypePaymentReceived)
		assert.Len(t, handlers, 2)
		assert.Same(t, payments, handlers[0])
		assert.Same(t, audit, handlers[1])

		assert.Len(t, registry.GetHandlers(finance.EventTypeInvoiceCancelled), 1)
	})

	t.Run("duplicate registration is ignored", func(t *testing.T) {
		registry := NewHandlerRegistry()
		h := newRecordingHandler()

		registry.Register(h, finance.EventTypeInvoiceGenerated)
		registry.Register(h, finance.EventTypeInvoiceGenerated)
		registry.Register(h)
		registry.Register(h)

		assert.Len(t, registry.GetHandlers(finance.EventTypeInvoiceGenerated), 2)
	})

	t.Run("unregister removes every subscription", func(t *testing.T) {
		registry := NewHandlerRegistry()
		h := newRecordingHandler()
		other := newRecordingHandler()

		registry.Register(h, finance.EventTypeInvoiceGenerated, finance.EventTypePaymentReceived)
		registry.Register(other, finance.EventTypePaymentReceived)
		registry.Register(h)

		registry.Unregister(h)

		assert.Empty(t, registry.GetHandlers(finance.EventTypeInvoiceGenerated))
		assert.Equal(t, 1, len(registry.GetHandlers(finance.EventTypePaymentReceived)))
		_, stillKeyed := registry.handlers[finance.EventTypeInvoiceGenerated]
		assert.False(t, stillKeyed)
	})
}
