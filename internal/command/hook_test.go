package command

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kaspanet/kaspad/util/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etoken-wallet/internal/address"
	"etoken-wallet/internal/amount"
	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/wallet/stub"
)

var validator = address.Validator{Prefix: address.DefaultPrefix}

func testAddr(b byte) string {
	return bech32.Encode(address.DefaultPrefix, bytes.Repeat([]byte{b}, 20), byte(address.P2PKH))
}

func TestSend_EndToEnd(t *testing.T) {
	w := stub.NewWallet("abc123")
	h := NewSend(w, validator)

	txid, err := h.Execute(context.Background(), SendInput{
		TokenID:  "tok",
		Address:  testAddr(0x01),
		Amount:   "10",
		Decimals: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", txid)

	got, ok := TxID(h.State())
	require.True(t, ok)
	assert.Equal(t, "abc123", got)

	calls := w.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendToken", calls[0].Method)
	assert.Equal(t, "10", calls[0].Amount)
	assert.Equal(t, testAddr(0x01), calls[0].Address)
}

func TestSend_ValidationFailureSkipsWallet(t *testing.T) {
	tests := []struct {
		name string
		in   SendInput
		want error
	}{
		{"bad address", SendInput{TokenID: "tok", Address: "ecash:nope", Amount: "1"}, address.ErrInvalid},
		{"zero amount", SendInput{TokenID: "tok", Address: testAddr(1), Amount: "0"}, amount.ErrNotPositive},
		{"empty amount", SendInput{TokenID: "tok", Address: testAddr(1), Amount: ""}, amount.ErrEmpty},
		{"too precise", SendInput{TokenID: "tok", Address: testAddr(1), Amount: "1.5", Decimals: 0}, amount.ErrPrecision},
		{"missing token", SendInput{Address: testAddr(1), Amount: "1"}, ErrMissingToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := stub.NewWallet("abc123")
			h := NewSend(w, validator)

			_, err := h.Execute(context.Background(), tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
			assert.Equal(t, 0, w.CallCount())

			f, ok := h.State().(Failure)
			require.True(t, ok)
			assert.Equal(t, ValidationError, f.Kind)
			assert.NotEmpty(t, f.Message)
		})
	}
}

func TestSend_WalletErrorVerbatim(t *testing.T) {
	w := stub.NewWallet("")
	w.SetErr(errors.New("Insufficient funds"))
	h := NewSend(w, validator)

	_, err := h.Execute(context.Background(), SendInput{TokenID: "tok", Address: testAddr(2), Amount: "1"})
	require.Error(t, err)
	assert.True(t, IsWallet(err))
	assert.Equal(t, 1, w.CallCount())

	msg, ok := Message(h.State())
	require.True(t, ok)
	assert.Equal(t, "Insufficient funds", msg)
}

func TestExecute_EmptyTxIDIsWalletError(t *testing.T) {
	w := stub.NewWallet("")
	h := NewMint(w)

	_, err := h.Execute(context.Background(), SupplyInput{TokenID: "tok", Amount: "5"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.True(t, IsWallet(err))
}

func TestReset_ThenReexecuteBehavesTheSame(t *testing.T) {
	w := stub.NewWallet("abc123")
	h := NewBurn(w)
	in := SupplyInput{TokenID: "tok", Amount: "2.5", Decimals: 1}

	first, err := h.Execute(context.Background(), in)
	require.NoError(t, err)

	h.Reset()
	assert.Equal(t, StatusIdle, h.State().Status())

	second, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, w.CallCount())
	assert.Equal(t, "burnToken", w.Calls()[1].Method)
}

func TestExecute_RejectsReentryWhilePending(t *testing.T) {
	w := stub.NewWallet("abc123")
	w.Gate = make(chan struct{})
	h := NewMint(w)
	in := SupplyInput{TokenID: "tok", Amount: "1"}

	done := make(chan error, 1)
	go func() {
		_, err := h.Execute(context.Background(), in)
		done <- err
	}()

	require.Eventually(t, func() bool { return w.CallCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, IsPending(h.State()))

	_, err := h.Execute(context.Background(), in)
	assert.ErrorIs(t, err, ErrInFlight)

	h.Reset()
	assert.True(t, IsPending(h.State()))

	close(w.Gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, w.CallCount())
	assert.Equal(t, StatusSuccess, h.State().Status())
}

func TestExecute_CancelledContextDoesNotAbandonBroadcast(t *testing.T) {
	w := stub.NewWallet("abc123")
	w.Gate = make(chan struct{})
	h := NewSend(w, validator)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan string, 1)
	go func() {
		txid, _ := h.Execute(ctx, SendInput{TokenID: "tok", Address: testAddr(3), Amount: "1"})
		done <- txid
	}()

	require.Eventually(t, func() bool { return w.CallCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	close(w.Gate)

	assert.Equal(t, "abc123", <-done)
}

func TestAirdrop_ValidatesEveryRecipient(t *testing.T) {
	w := stub.NewWallet("drop")
	h := NewAirdrop(w, validator)

	_, err := h.Execute(context.Background(), AirdropInput{
		TokenID: "tok",
		Recipients: []domain.Recipient{
			{Address: testAddr(4), Amount: "1"},
			{Address: testAddr(5), Amount: "0.001"},
		},
		Decimals: 2,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient 2")
	assert.Equal(t, 0, w.CallCount())

	_, err = h.Execute(context.Background(), AirdropInput{TokenID: "tok"})
	assert.ErrorIs(t, err, ErrNoRecipients)

	txid, err := h.Execute(context.Background(), AirdropInput{
		TokenID: "tok",
		Recipients: []domain.Recipient{
			{Address: testAddr(4), Amount: "1.50"},
			{Address: testAddr(5), Amount: "0.01"},
		},
		Decimals: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "drop", txid)

	calls := w.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "1.5", calls[0].Recipients[0].Amount)
}

func TestSubscribe_ObservesTransitions(t *testing.T) {
	w := stub.NewWallet("abc123")
	h := NewMint(w)
	ch, cancel := h.Subscribe()
	defer cancel()

	_, err := h.Execute(context.Background(), SupplyInput{TokenID: "tok", Amount: "1"})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, (<-ch).Status())
	assert.Equal(t, StatusSuccess, (<-ch).Status())
}
