package history_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysi-go/polysi/history"
)

func TestWithInitialTxn_SeedsReadKeys(t *testing.T) {
	sessions := []history.Session{
		{SID: 1, Transactions: []history.Transaction{
			{TID: 2, SID: 1, Events: []history.Event{
				{Key: 1, Value: 1, Kind: history.Write},
				{Key: 2, Value: 1, Kind: history.Read},
			}},
		}},
	}

	h := history.WithInitialTxn(sessions)
	require.NotEmpty(t, h.Sessions)
	init := h.Sessions[0].Transactions[0]
	assert.Equal(t, h.InitialTID, init.TID)
	assert.Less(t, init.TID, int64(2))

	var sawKey2 bool
	for _, ev := range init.Events {
		if ev.Key == 2 {
			sawKey2 = true
			assert.Equal(t, int64(0), ev.Value)
		}
	}
	assert.True(t, sawKey2, "initial txn must seed every read-touched key")
}

func TestValidate_RejectsDuplicateWriteValue(t *testing.T) {
	sessions := []history.Session{
		{SID: 1, Transactions: []history.Transaction{
			{TID: 1, SID: 1, Events: []history.Event{{Key: 1, Value: 7, Kind: history.Write}}},
		}},
		{SID: 2, Transactions: []history.Transaction{
			{TID: 2, SID: 2, Events: []history.Event{{Key: 1, Value: 7, Kind: history.Write}}},
		}},
	}
	h := history.History{Sessions: sessions}
	err := history.Validate(h)
	assert.ErrorIs(t, err, history.ErrMalformedHistory)
}

func TestValidate_AcceptsWellFormedHistory(t *testing.T) {
	sessions := []history.Session{
		{SID: 1, Transactions: []history.Transaction{
			{TID: 1, SID: 1, Events: []history.Event{{Key: 1, Value: 1, Kind: history.Write}}},
		}},
	}
	h := history.WithInitialTxn(sessions)
	assert.NoError(t, history.Validate(h))
}
