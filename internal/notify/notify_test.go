package notify

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lasergun-protocol/sdk-sub000/internal/model"
)

func TestTransactionFiresRegisteredCallback(t *testing.T) {
	h := NewHub()
	var got model.Transaction
	calls := 0
	h.OnTransaction(func(tx model.Transaction) {
		got = tx
		calls++
	})

	tx := model.Transaction{Nonce: 1, Type: model.TxShield, Amount: big.NewInt(10)}
	h.Transaction(tx)

	assert.Equal(t, 1, calls)
	assert.Equal(t, tx, got)
}

func TestTransactionIsNoOpWithoutSubscriber(t *testing.T) {
	h := NewHub()
	assert.NotPanics(t, func() {
		h.Transaction(model.Transaction{Nonce: 1})
	})
}

func TestErrorFiresRegisteredCallbackAndIgnoresNil(t *testing.T) {
	h := NewHub()
	var got error
	h.OnError(func(err error) { got = err })

	h.Error(nil)
	assert.Nil(t, got)

	want := errors.New("boom")
	h.Error(want)
	assert.Equal(t, want, got)
}

func TestStateFiresRegisteredCallback(t *testing.T) {
	h := NewHub()
	var got string
	h.OnState(func(state string) { got = state })

	h.State("running")
	assert.Equal(t, "running", got)
}

func TestLatestRegistrationWinsSingleConsumer(t *testing.T) {
	h := NewHub()
	var first, second bool
	h.OnState(func(string) { first = true })
	h.OnState(func(string) { second = true })

	h.State("idle")
	assert.False(t, first)
	assert.True(t, second)
}
