package purchasing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompletionPercentage(t *testing.T) {
	po := &PurchaseOrder{Items: []LineItem{
		{Quantity: 10, ReceivedQuantity: 5},
		{Quantity: 10, ReceivedQuantity: 10},
	}}
	require.Equal(t, 75, po.CompletionPercentage())

	require.Equal(t, 0, (&PurchaseOrder{}).CompletionPercentage())
	require.Equal(t, 0, (&PurchaseOrder{Items: []LineItem{{Quantity: 0}}}).CompletionPercentage())
}

func TestDaysOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expected := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	po := &PurchaseOrder{Status: StatusSent, ExpectedDeliveryDate: &expected}
	require.Equal(t, 4, po.DaysOverdue(now))

	po.Status = StatusReceived
	require.Equal(t, 0, po.DaysOverdue(now))

	po.Status = StatusCancelled
	require.Equal(t, 0, po.DaysOverdue(now))

	future := now.AddDate(0, 0, 3)
	po = &PurchaseOrder{Status: StatusSent, ExpectedDeliveryDate: &future}
	require.Equal(t, 0, po.DaysOverdue(now))

	po = &PurchaseOrder{Status: StatusSent}
	require.Equal(t, 0, po.DaysOverdue(now))
}

func TestStatusValidity(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusSent, StatusConfirmed, StatusPartiallyReceived, StatusReceived, StatusCancelled} {
		require.True(t, s.IsValid(), s)
	}
	require.False(t, Status("shipped").IsValid())
	require.True(t, StatusReceived.Terminal())
	require.True(t, StatusCancelled.Terminal())
	require.False(t, StatusDraft.Terminal())
}
