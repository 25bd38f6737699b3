package finance

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApprovalRequest_Validation(t *testing.T) {
	schoolID, requester := uuid.New(), uuid.New()

	tests := []struct {
		name    string
		action  ApprovalAction
		reason  string
		wantErr bool
	}{
		{"cancellation", InvoiceCancellation{InvoiceID: uuid.New()}, "duplicate", false},
		{"adjustment", BalanceAdjustment{InvoiceID: uuid.New(), NewTotal: dec("900"), NewBalance: dec("400")}, "bursary", false},
		{"missing invoice", InvoiceCancellation{}, "x", true},
		{"balance above total", BalanceAdjustment{InvoiceID: uuid.New(), NewTotal: dec("100"), NewBalance: dec("400")}, "x", true},
		{"negative total", BalanceAdjustment{InvoiceID: uuid.New(), NewTotal: dec("-1"), NewBalance: dec("0")}, "x", true},
		{"missing reason", InvoiceCancellation{InvoiceID: uuid.New()}, "  ", true},
		{"nil action", nil, "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewApprovalRequest(schoolID, tt.action, tt.reason, requester)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ApprovalStatusPending, req.Status)
			assert.Equal(t, tt.action.Type(), req.Type())
		})
	}
}

func TestApprovalRequest_Decide(t *testing.T) {
	requester, approver := uuid.New(), uuid.New()
	newRequest := func() *ApprovalRequest {
		req, err := NewApprovalRequest(uuid.New(), InvoiceCancellation{InvoiceID: uuid.New()}, "duplicate", requester)
		require.NoError(t, err)
		return req
	}

	t.Run("self approval forbidden", func(t *testing.T) {
		req := newRequest()
		assert.ErrorIs(t, req.Decide(ApprovalDecisionApprove, requester, ""), ErrSelfApproval)
		assert.ErrorIs(t, req.Decide(ApprovalDecisionReject, requester, ""), ErrSelfApproval)
		assert.Equal(t, ApprovalStatusPending, req.Status)
		assert.Nil(t, req.ApprovedByID)
	})

	t.Run("approve", func(t *testing.T) {
		req := newRequest()
		require.NoError(t, req.Decide(ApprovalDecisionApprove, approver, "ok"))
		assert.True(t, req.IsApproved())
		assert.Equal(t, approver, *req.ApprovedByID)
		assert.NotEqual(t, req.RequestedByID, *req.ApprovedByID)
		assert.NotNil(t, req.DecidedAt)

		assert.ErrorIs(t, req.Decide(ApprovalDecisionReject, approver, ""), ErrApprovalNotPending)
	})

	t.Run("reject", func(t *testing.T) {
		req := newRequest()
		require.NoError(t, req.Decide(ApprovalDecisionReject, approver, "no"))
		assert.Equal(t, ApprovalStatusRejected, req.Status)
	})

	t.Run("unknown decision", func(t *testing.T) {
		req := newRequest()
		assert.Error(t, req.Decide(ApprovalDecision("MAYBE"), approver, ""))
		assert.Equal(t, ApprovalStatusPending, req.Status)
	})
}

func TestApprovalAction_EncodeDecode(t *testing.T) {
	adj := BalanceAdjustment{InvoiceID: uuid.New(), NewTotal: dec("900"), NewBalance: dec("400")}
	payload, err := EncodeApprovalAction(adj)
	require.NoError(t, err)

	decoded, err := DecodeApprovalAction(ApprovalTypeBalanceAdjustment, payload)
	require.NoError(t, err)
	got, ok := decoded.(BalanceAdjustment)
	require.True(t, ok)
	assert.Equal(t, adj.InvoiceID, got.InvoiceID)
	assert.True(t, got.NewTotal.Equal(adj.NewTotal))
	assert.True(t, got.NewBalance.Equal(adj.NewBalance))

	_, err = DecodeApprovalAction(ApprovalType("REFUND"), payload)
	assert.Error(t, err)
	_, err = DecodeApprovalAction(ApprovalTypeInvoiceCancellation, []byte("{"))
	assert.Error(t, err)
}
