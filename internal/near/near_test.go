package near

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

func newRPCServer(t *testing.T, handler func(req recordedRequest) string) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(req)))
	}))
	t.Cleanup(srv.Close)

	return NewClient(&ClientConfig{URL: srv.URL})
}

// bytesJSON encodes s the way nearcore returns call_function results.
func bytesJSON(s string) string {
	parts := make([]string, len(s))
	for i := 0; i < len(s); i++ {
		parts[i] = strconv.Itoa(int(s[i]))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestAccountExists(t *testing.T) {
	client := newRPCServer(t, func(req recordedRequest) string {
		assert.Equal(t, "query", req.Method)
		assert.Equal(t, "view_account", req.Params["request_type"])

		switch req.Params["account_id"] {
		case "alice.testnet":
			return `{"jsonrpc":"2.0","id":"dontcare","result":{"amount":"1","block_height":1}}`
		case "ghost.testnet":
			return `{"jsonrpc":"2.0","id":"dontcare","error":{"name":"HANDLER_ERROR",` +
				`"cause":{"name":"UNKNOWN_ACCOUNT","info":{}},"code":-32000,"message":"Server error"}}`
		default:
			return `{"jsonrpc":"2.0","id":"dontcare","error":{"name":"INTERNAL_ERROR",` +
				`"cause":{"name":"INTERNAL_ERROR","info":{}},"code":-32000,"message":"Server error"}}`
		}
	})

	ctx := context.Background()

	ok, err := client.AccountExists(ctx, "alice.testnet")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.AccountExists(ctx, "ghost.testnet")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.AccountExists(ctx, "broken.testnet")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "INTERNAL_ERROR", rpcErr.Cause.Name)
}

func TestAccountExists_ImplicitAccount(t *testing.T) {
	client := NewClient(&ClientConfig{URL: "http://127.0.0.1:1"})

	ok, err := client.AccountExists(context.Background(), strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAccountExists_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(&ClientConfig{URL: srv.URL})

	_, err := client.AccountExists(context.Background(), "alice.testnet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 502")
}

func TestViewFunction(t *testing.T) {
	client := newRPCServer(t, func(req recordedRequest) string {
		assert.Equal(t, "call_function", req.Params["request_type"])
		assert.Equal(t, "multisender.testnet", req.Params["account_id"])
		assert.Equal(t, "get_deposit", req.Params["method_name"])

		args, err := base64.StdEncoding.DecodeString(req.Params["args_base64"].(string))
		require.NoError(t, err)
		assert.JSONEq(t, `{"account_id":"alice.testnet"}`, string(args))

		return `{"jsonrpc":"2.0","id":"dontcare","result":{"result":` +
			bytesJSON(`"2500000000000000000"`) + `,"logs":[]}}`
	})

	m := NewMultisender(&ContractConfig{MultisenderID: "multisender.testnet"}, client, nil)

	deposit, err := m.GetDeposit(context.Background(), "alice.testnet")
	require.NoError(t, err)
	assert.Equal(t, "2500000000000000000", deposit)
}

func TestToken_FtBalanceOf(t *testing.T) {
	client := newRPCServer(t, func(req recordedRequest) string {
		assert.Equal(t, "ft.testnet", req.Params["account_id"])
		assert.Equal(t, "ft_balance_of", req.Params["method_name"])

		args, err := base64.StdEncoding.DecodeString(req.Params["args_base64"].(string))
		require.NoError(t, err)
		assert.JSONEq(t, `{"account_id":"alice.testnet"}`, string(args))

		return `{"jsonrpc":"2.0","id":"dontcare","result":{"result":` +
			bytesJSON(`"7500000000000000000"`) + `,"logs":[]}}`
	})

	token := NewToken(testConfig(), client, nil)

	balance, err := token.FtBalanceOf(context.Background(), "alice.testnet")
	require.NoError(t, err)
	assert.Equal(t, "7500000000000000000", balance)
}

func TestViewFunction_ExecutionError(t *testing.T) {
	client := newRPCServer(t, func(req recordedRequest) string {
		return `{"jsonrpc":"2.0","id":"dontcare","result":{"error":"wasm execution failed","logs":[]}}`
	})

	var out string
	err := client.ViewFunction(context.Background(), "c.testnet", "get_deposit", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wasm execution failed")
}

type fakeCaller struct {
	calls   []FunctionCall
	outcome *CallOutcome
	err     error
}

func (f *fakeCaller) Call(ctx context.Context, call FunctionCall) (*CallOutcome, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &CallOutcome{OK: true, TxHash: "hash"}, nil
}

func testConfig() *ContractConfig {
	return &ContractConfig{
		SignerID:      "alice.testnet",
		MultisenderID: "multisender.testnet",
		TokenID:       "ft.testnet",
	}
}

func TestMultisender_Calls(t *testing.T) {
	caller := &fakeCaller{}
	m := NewMultisender(testConfig(), nil, caller)
	ctx := context.Background()

	transfers := []types.Transfer{{AccountID: "bob.testnet", Amount: "1000"}}

	require.NoError(t, m.MultisendFromBalanceUnsafe(ctx, transfers))
	require.NoError(t, m.MultisendFromBalance(ctx, transfers))
	require.NoError(t, m.Deposit(ctx, "alice.testnet", "42"))
	require.NoError(t, m.WithdrawAll(ctx, "alice.testnet"))
	require.NoError(t, m.FtOnTransfer(ctx, "bob.testnet", "7"))
	require.NoError(t, m.RefreshBalance(ctx, "alice.testnet"))

	require.Len(t, caller.calls, 6)

	unsafe := caller.calls[0]
	assert.Equal(t, "multisend_from_balance_unsafe", unsafe.Method)
	assert.Equal(t, "multisender.testnet", unsafe.ContractID)
	assert.Equal(t, "alice.testnet", unsafe.SignerID)
	assert.Equal(t, DefaultGas, unsafe.Gas)
	assert.JSONEq(t, `{"accounts":[{"account_id":"bob.testnet","amount":"1000"}]}`, string(unsafe.Args))

	assert.Equal(t, "multisend_from_balance", caller.calls[1].Method)
	assert.JSONEq(t, `{"account_id":"alice.testnet","deposit_amount":"42"}`, string(caller.calls[2].Args))
	assert.Equal(t, "withdraw_all", caller.calls[3].Method)

	transfer := caller.calls[4]
	assert.Equal(t, "ft_on_transfer", transfer.Method)
	assert.Equal(t, OneYocto, transfer.Deposit)

	assert.Equal(t, "get_balance", caller.calls[5].Method)
}

func TestToken_Calls(t *testing.T) {
	caller := &fakeCaller{}
	token := NewToken(testConfig(), nil, caller)
	ctx := context.Background()

	require.NoError(t, token.StorageDeposit(ctx, "alice.testnet"))
	require.NoError(t, token.FtTransfer(ctx, "multisender.testnet", "5"))

	require.Len(t, caller.calls, 2)
	assert.Equal(t, "ft.testnet", caller.calls[0].ContractID)
	assert.Equal(t, StorageDepositFee, caller.calls[0].Deposit)
	assert.Equal(t, "ft_transfer", caller.calls[1].Method)
	assert.Equal(t, OneYocto, caller.calls[1].Deposit)
	assert.JSONEq(t, `{"receiver_id":"multisender.testnet","amount":"5"}`, string(caller.calls[1].Args))
}

func TestContract_Failures(t *testing.T) {
	ctx := context.Background()

	rejected := &fakeCaller{outcome: &CallOutcome{OK: false, Error: "Not enough deposited tokens"}}
	err := NewMultisender(testConfig(), nil, rejected).MultisendFromBalanceUnsafe(ctx, nil)

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "multisend_from_balance_unsafe", callErr.Method)

	cause := errors.New("signer timeout")
	unreachable := &fakeCaller{err: cause}
	err = NewToken(testConfig(), nil, unreachable).FtTransfer(ctx, "x", "1")
	assert.ErrorIs(t, err, cause)
}
