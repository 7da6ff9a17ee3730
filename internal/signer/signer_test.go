package signer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/openbuilders/ft-multisender/internal/near"
	"github.com/openbuilders/ft-multisender/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRequester struct {
	queue   queue.QueueName
	request []byte
	reply   string
	block   bool
}

func (f *fakeRequester) Call(ctx context.Context, queueName queue.QueueName,
	message []byte) ([]byte, error) {

	f.queue = queueName
	f.request = message

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return []byte(f.reply), nil
}

func TestSigner_Call(t *testing.T) {
	requester := &fakeRequester{reply: `{"ok":true,"tx_hash":"8xQf"}`}
	s := New(&Config{}, requester)

	outcome, err := s.Call(context.Background(), near.FunctionCall{
		SignerID:   "alice.testnet",
		ContractID: "ft.testnet",
		Method:     "ft_transfer",
		Args:       json.RawMessage(`{"receiver_id":"m.testnet","amount":"1"}`),
		Gas:        near.DefaultGas,
		Deposit:    near.OneYocto,
	})
	require.NoError(t, err)

	assert.True(t, outcome.OK)
	assert.Equal(t, "8xQf", outcome.TxHash)
	assert.Equal(t, queue.QueueSigner, requester.queue)
	assert.JSONEq(t, `{
		"signer_id": "alice.testnet",
		"contract_id": "ft.testnet",
		"method": "ft_transfer",
		"args": {"receiver_id": "m.testnet", "amount": "1"},
		"gas": 300000000000000,
		"deposit": "1"
	}`, string(requester.request))
}

func TestSigner_RejectedOutcome(t *testing.T) {
	s := New(&Config{}, &fakeRequester{reply: `{"ok":false,"error":"Smart contract panicked"}`})

	outcome, err := s.Call(context.Background(), near.FunctionCall{Method: "deposit"})
	require.NoError(t, err)
	assert.False(t, outcome.OK)
	assert.Equal(t, "Smart contract panicked", outcome.Error)
}

func TestSigner_MalformedReply(t *testing.T) {
	s := New(&Config{}, &fakeRequester{reply: `not json`})

	_, err := s.Call(context.Background(), near.FunctionCall{Method: "deposit"})
	assert.Error(t, err)
}

func TestSigner_Timeout(t *testing.T) {
	s := New(&Config{Timeout: 20 * time.Millisecond}, &fakeRequester{block: true})

	_, err := s.Call(context.Background(), near.FunctionCall{Method: "deposit"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
