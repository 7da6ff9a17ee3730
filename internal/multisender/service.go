// Package multisender holds the state of one sender's session and the
// operations a client drives it with: edit the recipient list, verify it,
// fund the deposit, send and resume.
package multisender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/openbuilders/ft-multisender/internal/batcher"
	"github.com/openbuilders/ft-multisender/internal/errors"
	"github.com/openbuilders/ft-multisender/internal/helpers"
	"github.com/openbuilders/ft-multisender/internal/parser"
	"github.com/openbuilders/ft-multisender/internal/reconciler"
	"github.com/openbuilders/ft-multisender/internal/session"
	"github.com/openbuilders/ft-multisender/internal/store"
	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/shopspring/decimal"
)

var ErrBusy = errors.New(errors.Busy, "another operation is in progress", nil)

// Contract is the custodial side of the multisender contract.
type Contract interface {
	GetDeposit(ctx context.Context, accountID string) (string, error)
	GetUserBalance(ctx context.Context, accountID string) (string, error)
	RefreshBalance(ctx context.Context, accountID string) error
	WithdrawAll(ctx context.Context, accountID string) error
	FtOnTransfer(ctx context.Context, receiverID, amount string) error
}

// Token registers accounts on the token contract and reads wallet balances.
type Token interface {
	StorageDeposit(ctx context.Context, accountID string) error
	FtBalanceOf(ctx context.Context, accountID string) (string, error)
}

type Sender interface {
	ChunkSize(mode types.SendMode) int
	Send(ctx context.Context, key string, list *types.RecipientList, mode types.SendMode,
		progress batcher.ProgressFunc) (*types.SendResult, error)
	Resume(ctx context.Context, key string, mode types.SendMode,
		progress batcher.ProgressFunc) (*types.SendResult, error)
	Pending(ctx context.Context, key string) ([]types.Transfer, error)
}

type Validator interface {
	Validate(ctx context.Context, list *types.RecipientList) (*types.RecipientList, int, error)
}

type Funder interface {
	EnsureFunded(ctx context.Context, accountID string,
		required, current decimal.Decimal) (*reconciler.Funding, error)
}

type Notifier interface {
	NotifySend(accountID string, result *types.SendResult, err error)
}

type Config struct {
	Decimals int32
}

// Dependencies are the collaborators of the service. Notifier is optional.
type Dependencies struct {
	Session   session.Provider
	Contract  Contract
	Token     Token
	Sender    Sender
	Validator Validator
	Funder    Funder
	Notifier  Notifier
}

type Status struct {
	AccountID        string            `json:"account_id"`
	SignedIn         bool              `json:"signed_in"`
	Recipients       int               `json:"recipients"`
	Total            decimal.Decimal   `json:"total"`
	Deposit          decimal.Decimal   `json:"deposit"`
	Balance          decimal.Decimal   `json:"balance"`
	WalletBalance    decimal.Decimal   `json:"wallet_balance"`
	ProcessedBatches int               `json:"processed_batches"`
	TotalBatches     int               `json:"total_batches"`
	Running          bool              `json:"running"`
	Operation        string            `json:"operation,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
	LastErrorCode    errors.ErrorCode  `json:"last_error_code,omitempty"`
	LastRun          *types.SendResult `json:"last_run,omitempty"`
	Fingerprint      string            `json:"fingerprint,omitempty"`
}

type Service struct {
	config *Config
	deps   Dependencies

	mu        sync.Mutex
	list      *types.RecipientList
	deposit   decimal.Decimal
	balance   decimal.Decimal
	wallet    decimal.Decimal
	processed int
	batches   int
	operation string
	lastErr   error
	lastRun   *types.SendResult

	wg  sync.WaitGroup
	log *slog.Logger
}

func New(config *Config, deps Dependencies) *Service {
	return &Service{
		config: config,
		deps:   deps,
		list:   types.NewRecipientList(),
		log:    slog.With("component", "multisender"),
	}
}

// SetText replaces the list with the recipients parsed from text.
func (s *Service) SetText(text string) (*types.RecipientList, error) {
	list := parser.Parse(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.operation != "" {
		return nil, ErrBusy
	}

	s.list = list
	s.processed, s.batches = 0, 0

	s.log.Debug("Recipients replaced", "recipients", list.Len(), "total", list.Total())

	return list, nil
}

func (s *Service) List() *types.RecipientList {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.list
}

// Clear drops the in-memory list. The persisted progress is kept.
func (s *Service) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.operation != "" {
		return ErrBusy
	}

	s.list = types.NewRecipientList()
	s.processed, s.batches = 0, 0

	return nil
}

// Verify removes the recipients whose accounts do not exist.
func (s *Service) Verify(ctx context.Context) (int, *types.RecipientList, error) {
	if err := s.acquire("verify"); err != nil {
		return 0, nil, err
	}
	defer s.release()

	list := s.List()
	if list.Len() == 0 {
		return 0, list, errors.New(errors.EmptyList, "no recipients to verify", nil)
	}

	valid, removed, err := s.deps.Validator.Validate(ctx, list)
	if err != nil {
		return 0, list, err
	}

	s.mu.Lock()
	s.list = valid
	s.mu.Unlock()

	s.log.Info("Recipients verified", "valid", valid.Len(), "removed", removed)

	return removed, valid, nil
}

// RefreshDeposit reads the deposit of the signed-in account.
func (s *Service) RefreshDeposit(ctx context.Context) (decimal.Decimal, error) {
	account, err := s.account()
	if err != nil {
		return decimal.Zero, err
	}

	native, err := s.deps.Contract.GetDeposit(ctx, account)
	if err != nil {
		return decimal.Zero, errors.New(errors.ContractCallFailure, "couldn't get the deposit", err)
	}

	deposit, err := types.FromNative(native, s.config.Decimals)
	if err != nil {
		return decimal.Zero, errors.New(errors.ContractCallFailure, "couldn't get the deposit", err)
	}

	s.mu.Lock()
	s.deposit = deposit
	s.mu.Unlock()

	return deposit, nil
}

// RefreshBalance makes the multisender cache the token balance of the
// signed-in account and reads it back. The wallet's own balance on the token
// contract is read alongside and shown in Status.
func (s *Service) RefreshBalance(ctx context.Context) (decimal.Decimal, error) {
	account, err := s.account()
	if err != nil {
		return decimal.Zero, err
	}

	err = s.deps.Contract.RefreshBalance(ctx, account)
	if err != nil {
		return decimal.Zero, errors.New(errors.ContractCallFailure, "couldn't refresh the balance", err)
	}

	native, err := s.deps.Contract.GetUserBalance(ctx, account)
	if err != nil {
		return decimal.Zero, errors.New(errors.ContractCallFailure, "couldn't get the balance", err)
	}

	balance, err := types.FromNative(native, s.config.Decimals)
	if err != nil {
		return decimal.Zero, errors.New(errors.ContractCallFailure, "couldn't get the balance", err)
	}

	native, err = s.deps.Token.FtBalanceOf(ctx, account)
	if err != nil {
		return decimal.Zero, errors.New(errors.ContractCallFailure, "couldn't get the wallet balance", err)
	}

	wallet, err := types.FromNative(native, s.config.Decimals)
	if err != nil {
		return decimal.Zero, errors.New(errors.ContractCallFailure, "couldn't get the wallet balance", err)
	}

	s.mu.Lock()
	s.balance = balance
	s.wallet = wallet
	s.mu.Unlock()

	return balance, nil
}

// Fund tops the deposit up to the list total.
func (s *Service) Fund(ctx context.Context) (*reconciler.Funding, error) {
	run, err := s.prepareFund(ctx)
	if err != nil {
		return nil, err
	}
	return run(ctx)
}

// StartFund checks the preconditions of Fund and runs it in the background.
func (s *Service) StartFund(ctx context.Context) error {
	run, err := s.prepareFund(ctx)
	if err != nil {
		return err
	}

	s.background(func() {
		_, _ = run(ctx)
	})
	return nil
}

// Send sends the whole list out of the deposit.
func (s *Service) Send(ctx context.Context, mode types.SendMode) (*types.SendResult, error) {
	run, err := s.prepareSend(ctx, mode)
	if err != nil {
		return nil, err
	}
	return run(ctx)
}

func (s *Service) StartSend(ctx context.Context, mode types.SendMode) error {
	run, err := s.prepareSend(ctx, mode)
	if err != nil {
		return err
	}

	s.background(func() {
		_, _ = run(ctx)
	})
	return nil
}

// Resume sends the persisted remainder of an interrupted run.
func (s *Service) Resume(ctx context.Context, mode types.SendMode) (*types.SendResult, error) {
	run, err := s.prepareResume(ctx, mode)
	if err != nil {
		return nil, err
	}
	return run(ctx)
}

func (s *Service) StartResume(ctx context.Context, mode types.SendMode) error {
	run, err := s.prepareResume(ctx, mode)
	if err != nil {
		return err
	}

	s.background(func() {
		_, _ = run(ctx)
	})
	return nil
}

// LoadPending restores the list from the persisted remainder of an
// interrupted run and returns the number of pending recipients.
func (s *Service) LoadPending(ctx context.Context) (int, error) {
	account, err := s.account()
	if err != nil {
		return 0, err
	}

	pending, err := s.deps.Sender.Pending(ctx, store.KeyFor(account))
	if err != nil {
		return 0, err
	}

	if len(pending) == 0 {
		return 0, nil
	}

	list, err := types.FromTransfers(pending, s.config.Decimals)
	if err != nil {
		return 0, errors.New(errors.StoreFailure, "pending transfers are corrupted", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.operation != "" {
		return 0, ErrBusy
	}
	s.list = list

	s.log.Info("Restored pending recipients", "account", account, "recipients", list.Len())

	return list.Len(), nil
}

// WithdrawAll returns the whole deposit to the signed-in account.
func (s *Service) WithdrawAll(ctx context.Context) error {
	if err := s.acquire("withdraw"); err != nil {
		return err
	}
	defer s.release()

	account, err := s.account()
	if err != nil {
		return err
	}

	err = s.deps.Contract.WithdrawAll(ctx, account)
	if err != nil {
		return errors.New(errors.ContractCallFailure, "couldn't withdraw the deposit", err)
	}

	s.refreshDepositQuietly(ctx)

	return nil
}

// Transfer sends a single amount out of the deposit.
func (s *Service) Transfer(ctx context.Context, receiverID string, amount decimal.Decimal) error {
	receiverID = strings.ToLower(strings.TrimSpace(receiverID))
	if receiverID == "" || !amount.IsPositive() {
		return errors.New(errors.InvalidRequest, "receiver and a positive amount are required", nil)
	}

	if err := s.acquire("transfer"); err != nil {
		return err
	}
	defer s.release()

	if _, err := s.account(); err != nil {
		return err
	}

	err := s.deps.Contract.FtOnTransfer(ctx, receiverID, types.ToNative(amount, s.config.Decimals))
	if err != nil {
		return errors.New(errors.ContractCallFailure, "couldn't transfer", err)
	}

	s.refreshDepositQuietly(ctx)

	return nil
}

// StorageDeposit registers the signed-in account on the token contract.
func (s *Service) StorageDeposit(ctx context.Context) error {
	account, err := s.account()
	if err != nil {
		return err
	}

	err = s.deps.Token.StorageDeposit(ctx, account)
	if err != nil {
		return errors.New(errors.ContractCallFailure, "couldn't register the account", err)
	}

	return nil
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Recipients:       s.list.Len(),
		Total:            s.list.Total(),
		Deposit:          s.deposit,
		Balance:          s.balance,
		WalletBalance:    s.wallet,
		ProcessedBatches: s.processed,
		TotalBatches:     s.batches,
		Running:          s.operation != "",
		Operation:        s.operation,
		LastRun:          s.lastRun,
	}

	if s.deps.Session != nil && s.deps.Session.IsSignedIn() {
		status.SignedIn = true
		status.AccountID = s.deps.Session.AccountID()
	}

	if s.list.Len() > 0 {
		status.Fingerprint = helpers.TinyHash(parser.Format(s.list))
	}

	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
		status.LastErrorCode = errors.CodeOf(s.lastErr)
	}

	return status
}

// Wait blocks until the background operations are done.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) prepareFund(ctx context.Context) (
	func(context.Context) (*reconciler.Funding, error), error) {

	if err := s.acquire("fund"); err != nil {
		return nil, err
	}

	account, list, deposit, err := s.checkSendable(ctx)
	if err != nil {
		s.release()
		return nil, err
	}

	return func(ctx context.Context) (*reconciler.Funding, error) {
		defer s.release()

		funding, err := s.deps.Funder.EnsureFunded(ctx, account, list.Total(), deposit)

		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		if err != nil {
			return funding, err
		}

		s.refreshDepositQuietly(ctx)

		return funding, nil
	}, nil
}

func (s *Service) prepareSend(ctx context.Context, mode types.SendMode) (
	func(context.Context) (*types.SendResult, error), error) {

	if err := s.acquire("send"); err != nil {
		return nil, err
	}

	account, list, deposit, err := s.checkSendable(ctx)
	if err == nil {
		err = checkDeposit(list, deposit)
	}
	if err != nil {
		s.release()
		return nil, err
	}

	progress := s.progress(list, mode)

	return func(ctx context.Context) (*types.SendResult, error) {
		defer s.release()

		result, err := s.deps.Sender.Send(ctx, store.KeyFor(account), list, mode, progress)
		return s.finish(ctx, account, result, err)
	}, nil
}

func (s *Service) prepareResume(ctx context.Context, mode types.SendMode) (
	func(context.Context) (*types.SendResult, error), error) {

	if err := s.acquire("resume"); err != nil {
		return nil, err
	}

	list, account, err := s.loadResumable(ctx)
	if err != nil {
		s.release()
		return nil, err
	}

	progress := s.progress(list, mode)

	return func(ctx context.Context) (*types.SendResult, error) {
		defer s.release()

		result, err := s.deps.Sender.Resume(ctx, store.KeyFor(account), mode, progress)
		return s.finish(ctx, account, result, err)
	}, nil
}

func (s *Service) loadResumable(ctx context.Context) (*types.RecipientList, string, error) {
	account, err := s.account()
	if err != nil {
		return nil, "", err
	}

	pending, err := s.deps.Sender.Pending(ctx, store.KeyFor(account))
	if err != nil {
		return nil, "", err
	}
	if len(pending) == 0 {
		return nil, "", errors.New(errors.EmptyList, "nothing to resume", nil)
	}

	list, err := types.FromTransfers(pending, s.config.Decimals)
	if err != nil {
		return nil, "", errors.New(errors.StoreFailure, "pending transfers are corrupted", err)
	}

	deposit, err := s.RefreshDeposit(ctx)
	if err != nil {
		return nil, "", err
	}
	if err := checkDeposit(list, deposit); err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	s.list = list
	s.mu.Unlock()

	return list, account, nil
}

// checkSendable returns the signed-in account, a non-empty list and the
// current deposit.
func (s *Service) checkSendable(ctx context.Context) (string, *types.RecipientList,
	decimal.Decimal, error) {

	account, err := s.account()
	if err != nil {
		return "", nil, decimal.Zero, err
	}

	list := s.List()
	if list.Len() == 0 {
		return "", nil, decimal.Zero, errors.New(errors.EmptyList, "no recipients", nil)
	}

	deposit, err := s.RefreshDeposit(ctx)
	if err != nil {
		return "", nil, decimal.Zero, err
	}

	return account, list, deposit, nil
}

func checkDeposit(list *types.RecipientList, deposit decimal.Decimal) error {
	if deposit.LessThan(list.Total()) {
		return errors.New(errors.InsufficientDeposit,
			fmt.Sprintf("deposit %s is below the total %s", deposit, list.Total()), nil)
	}
	return nil
}

// progress shrinks the in-memory list as batches get confirmed so it always
// shows what is left to send.
func (s *Service) progress(list *types.RecipientList, mode types.SendMode) batcher.ProgressFunc {
	accounts := list.Accounts()
	chunkSize := s.deps.Sender.ChunkSize(mode)

	s.mu.Lock()
	s.processed = 0
	s.batches = (len(accounts) + chunkSize - 1) / chunkSize
	s.mu.Unlock()

	return func(processed, total int) {
		sent := min(processed*chunkSize, len(accounts))

		remaining := make(map[string]struct{}, len(accounts)-sent)
		for _, account := range accounts[sent:] {
			remaining[account] = struct{}{}
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		s.list = list.Filter(func(accountID string) bool {
			_, ok := remaining[accountID]
			return ok
		})
		s.processed = processed
		s.batches = total
	}
}

func (s *Service) finish(ctx context.Context, account string, result *types.SendResult,
	err error) (*types.SendResult, error) {

	s.mu.Lock()
	s.lastRun = result
	s.lastErr = err
	if err == nil {
		s.list = types.NewRecipientList()
	}
	s.mu.Unlock()

	if s.deps.Notifier != nil {
		s.deps.Notifier.NotifySend(account, result, err)
	}

	if err != nil {
		s.log.Error("Send stopped", "account", account, "error", err)
		return result, err
	}

	s.refreshDepositQuietly(ctx)

	return result, nil
}

func (s *Service) refreshDepositQuietly(ctx context.Context) {
	if _, err := s.RefreshDeposit(ctx); err != nil {
		s.log.Warn("couldn't refresh the deposit", "error", err)
	}
}

func (s *Service) account() (string, error) {
	if s.deps.Session == nil || !s.deps.Session.IsSignedIn() {
		return "", errors.New(errors.NotSignedIn, "sign in first", nil)
	}
	return s.deps.Session.AccountID(), nil
}

// acquire makes the service single-flight: long operations never overlap.
func (s *Service) acquire(operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.operation != "" {
		return ErrBusy
	}
	s.operation = operation

	return nil
}

func (s *Service) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.operation = ""
}

func (s *Service) background(run func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run()
	}()
}
