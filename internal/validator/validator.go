package validator

import (
	"context"
	"log/slog"

	"github.com/openbuilders/ft-multisender/internal/metrics"
	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const DefaultGroupSize = 500

// AccountChecker reports whether an account is registered on the network.
type AccountChecker interface {
	AccountExists(ctx context.Context, accountID string) (bool, error)
}

type Config struct {
	GroupSize int
}

type Validator struct {
	config  *Config
	checker AccountChecker
	log     *slog.Logger
}

func New(config *Config, checker AccountChecker) *Validator {
	return &Validator{
		config:  config,
		checker: checker,
		log:     slog.With("component", "validator"),
	}
}

// Validate drops the accounts that do not exist. Groups are checked one after
// another, the accounts of a group concurrently. A failed check counts as a
// missing account. The only error returned is the context's.
func (v *Validator) Validate(ctx context.Context, list *types.RecipientList) (
	*types.RecipientList, int, error) {

	groupSize := v.config.GroupSize
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}

	valid := types.NewRecipientList()

	for i, group := range lo.Chunk(list.Accounts(), groupSize) {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		v.log.Debug("Checking account group", "group", i, "size", len(group))

		exists := v.checkGroup(ctx, group)

		// checks cut short by cancellation say nothing about the accounts
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		for j, accountID := range group {
			if !exists[j] {
				v.log.Info("Invalid account", "account", accountID)
				continue
			}

			amount, _ := list.Get(accountID)
			valid.Add(accountID, amount)
		}
	}

	removed := list.Len() - valid.Len()
	metrics.AccountsRemoved.Add(float64(removed))

	v.log.Info("Accounts validated", "valid", valid.Len(), "removed", removed)

	return valid, removed, nil
}

func (v *Validator) checkGroup(ctx context.Context, group []string) []bool {
	exists := make([]bool, len(group))

	var eg errgroup.Group
	for i, accountID := range group {
		eg.Go(func() error {
			ok, err := v.checker.AccountExists(ctx, accountID)
			if err != nil {
				v.log.Debug("account check failed", "account", accountID, "error", err)
				return nil
			}

			exists[i] = ok
			return nil
		})
	}

	// checks never return errors, failures are folded into exists
	_ = eg.Wait()

	return exists
}
