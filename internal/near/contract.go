package near

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openbuilders/ft-multisender/internal/metrics"
	"github.com/openbuilders/ft-multisender/internal/types"
)

const (
	// DefaultGas is the 300 TGas budget attached to every change call.
	DefaultGas uint64 = 300_000_000_000_000
	// OneYocto is the minimal deposit NEAR token standards require on
	// transfers.
	OneYocto = "1"
	// StorageDepositFee registers an account on the token contract.
	StorageDepositFee = "1250000000000000000000"
)

// FunctionCall is a change method call that has to be signed by the sender's
// wallet.
type FunctionCall struct {
	SignerID   string          `json:"signer_id"`
	ContractID string          `json:"contract_id"`
	Method     string          `json:"method"`
	Args       json.RawMessage `json:"args"`
	Gas        uint64          `json:"gas"`
	Deposit    string          `json:"deposit"`
}

// CallOutcome is reported by the signer once the transaction is final.
type CallOutcome struct {
	OK     bool   `json:"ok"`
	TxHash string `json:"tx_hash,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Caller signs and submits change calls.
type Caller interface {
	Call(ctx context.Context, call FunctionCall) (*CallOutcome, error)
}

// Viewer runs read-only contract methods.
type Viewer interface {
	ViewFunction(ctx context.Context, contractID, method string, args any, out any) error
}

// CallError is a call the chain executed and rejected.
type CallError struct {
	Method string
	Reason string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Method, e.Reason)
}

type ContractConfig struct {
	// SignerID is the account the calls are signed by.
	SignerID      string
	MultisenderID string
	TokenID       string
	Gas           uint64
}

type contract struct {
	config *ContractConfig
	id     string
	viewer Viewer
	caller Caller
	log    *slog.Logger
}

func (c *contract) call(ctx context.Context, method string, args any, deposit string) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal %s args: %w", method, err)
	}

	gas := c.config.Gas
	if gas == 0 {
		gas = DefaultGas
	}

	c.log.Debug("Calling contract", "method", method, "deposit", deposit)

	outcome, err := c.caller.Call(ctx, FunctionCall{
		SignerID:   c.config.SignerID,
		ContractID: c.id,
		Method:     method,
		Args:       argsJSON,
		Gas:        gas,
		Deposit:    deposit,
	})
	if err != nil {
		metrics.ContractCalls.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%s: %w", method, err)
	}

	if !outcome.OK {
		metrics.ContractCalls.WithLabelValues(method, "rejected").Inc()
		return &CallError{Method: method, Reason: outcome.Error}
	}

	metrics.ContractCalls.WithLabelValues(method, "ok").Inc()
	c.log.Debug("Contract call confirmed", "method", method, "tx", outcome.TxHash)

	return nil
}

func (c *contract) view(ctx context.Context, method string, args any) (string, error) {
	var amount string

	err := c.viewer.ViewFunction(ctx, c.id, method, args, &amount)
	if err != nil {
		return "", err
	}

	return amount, nil
}

// Multisender is the proxy of the multisender contract.
type Multisender struct {
	contract
}

func NewMultisender(config *ContractConfig, viewer Viewer, caller Caller) *Multisender {
	return &Multisender{contract{
		config: config,
		id:     config.MultisenderID,
		viewer: viewer,
		caller: caller,
		log:    slog.With("component", "multisender-contract"),
	}}
}

func (m *Multisender) Deposit(ctx context.Context, accountID, amount string) error {
	return m.call(ctx, "deposit", map[string]string{
		"account_id":     accountID,
		"deposit_amount": amount,
	}, "0")
}

func (m *Multisender) WithdrawAll(ctx context.Context, accountID string) error {
	return m.call(ctx, "withdraw_all", map[string]string{"account_id": accountID}, "0")
}

func (m *Multisender) MultisendFromBalance(ctx context.Context,
	transfers []types.Transfer) error {

	return m.call(ctx, "multisend_from_balance",
		map[string][]types.Transfer{"accounts": transfers}, "0")
}

func (m *Multisender) MultisendFromBalanceUnsafe(ctx context.Context,
	transfers []types.Transfer) error {

	return m.call(ctx, "multisend_from_balance_unsafe",
		map[string][]types.Transfer{"accounts": transfers}, "0")
}

// FtOnTransfer sends a single transfer out of the deposit.
func (m *Multisender) FtOnTransfer(ctx context.Context, receiverID, amount string) error {
	return m.call(ctx, "ft_on_transfer", map[string]string{
		"receiver_id": receiverID,
		"amount":      amount,
	}, OneYocto)
}

// RefreshBalance asks the multisender to cache the token balance of the
// account, read afterwards with GetUserBalance.
func (m *Multisender) RefreshBalance(ctx context.Context, accountID string) error {
	return m.call(ctx, "get_balance", map[string]string{"account_id": accountID}, "0")
}

func (m *Multisender) GetDeposit(ctx context.Context, accountID string) (string, error) {
	return m.view(ctx, "get_deposit", map[string]string{"account_id": accountID})
}

func (m *Multisender) GetUserBalance(ctx context.Context, accountID string) (string, error) {
	return m.view(ctx, "get_user_balance", map[string]string{"account_id": accountID})
}

// Token is the proxy of the fungible token contract.
type Token struct {
	contract
}

func NewToken(config *ContractConfig, viewer Viewer, caller Caller) *Token {
	return &Token{contract{
		config: config,
		id:     config.TokenID,
		viewer: viewer,
		caller: caller,
		log:    slog.With("component", "token-contract"),
	}}
}

func (t *Token) StorageDeposit(ctx context.Context, accountID string) error {
	return t.call(ctx, "storage_deposit", map[string]string{"account_id": accountID},
		StorageDepositFee)
}

func (t *Token) FtTransfer(ctx context.Context, receiverID, amount string) error {
	return t.call(ctx, "ft_transfer", map[string]string{
		"receiver_id": receiverID,
		"amount":      amount,
	}, OneYocto)
}

func (t *Token) FtBalanceOf(ctx context.Context, accountID string) (string, error) {
	return t.view(ctx, "ft_balance_of", map[string]string{"account_id": accountID})
}
