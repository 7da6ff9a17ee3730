package reconciler

import (
	"context"
	"log/slog"

	"github.com/openbuilders/ft-multisender/internal/errors"
	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/shopspring/decimal"
)

// Token moves tokens on the fungible token contract.
type Token interface {
	FtTransfer(ctx context.Context, receiverID, amount string) error
}

// Depositor records incoming tokens in the multisender's custodial balance.
type Depositor interface {
	Deposit(ctx context.Context, accountID, amount string) error
}

type Config struct {
	// MultisenderID is the account the tokens are transferred to.
	MultisenderID string
	Decimals      int32
}

// Funding describes what EnsureFunded did.
type Funding struct {
	Shortfall   decimal.Decimal `json:"shortfall"`
	Native      string          `json:"native"`
	Transferred bool            `json:"transferred"`
	Deposited   bool            `json:"deposited"`
}

type Reconciler struct {
	config    *Config
	token     Token
	depositor Depositor
	log       *slog.Logger
}

func New(config *Config, token Token, depositor Depositor) *Reconciler {
	return &Reconciler{
		config:    config,
		token:     token,
		depositor: depositor,
		log:       slog.With("component", "reconciler"),
	}
}

// EnsureFunded tops the deposit of accountID up to required. The tokens are
// transferred to the multisender first and the deposit is recorded after
// that, so a failure in between leaves tokens in custody that are not
// credited yet. That case is reported as PartialReconciliationFailure and is
// never retried here.
func (r *Reconciler) EnsureFunded(ctx context.Context, accountID string,
	required, current decimal.Decimal) (*Funding, error) {

	funding := &Funding{Shortfall: required.Sub(current)}
	if !funding.Shortfall.IsPositive() {
		r.log.Debug("Deposit covers the total", "required", required, "deposit", current)
		funding.Shortfall = decimal.Zero
		return funding, nil
	}

	funding.Native = types.ToNative(funding.Shortfall, r.config.Decimals)

	log := r.log.With("account", accountID, "shortfall", funding.Shortfall)
	log.Info("Funding the multisender deposit")

	err := r.token.FtTransfer(ctx, r.config.MultisenderID, funding.Native)
	if err != nil {
		log.Error("token transfer failed", "error", err)
		return funding, errors.New(errors.ContractCallFailure,
			"couldn't transfer tokens to the multisender", err)
	}
	funding.Transferred = true

	err = r.depositor.Deposit(ctx, accountID, funding.Native)
	if err != nil {
		log.Error(
			"tokens transferred but the deposit was not recorded",
			"amount", funding.Native,
			"error", err,
		)
		return funding, errors.New(errors.PartialReconciliationFailure,
			"tokens were transferred to the multisender but the deposit was not recorded",
			err)
	}
	funding.Deposited = true

	log.Info("Deposit funded", "amount", funding.Native)

	return funding, nil
}
