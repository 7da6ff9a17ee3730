// Package signer relays contract change calls to the wallet signer service
// over the message queue and waits for the final outcome.
package signer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbuilders/ft-multisender/internal/near"
	"github.com/openbuilders/ft-multisender/internal/queue"
)

const DefaultTimeout = time.Minute

// Requester is the request/reply side of the queue.
type Requester interface {
	Call(ctx context.Context, queueName queue.QueueName, message []byte) ([]byte, error)
}

type Config struct {
	Queue queue.QueueName
	// Timeout bounds a call from publishing to the final outcome.
	Timeout time.Duration
}

type Signer struct {
	config    *Config
	requester Requester
	log       *slog.Logger
}

func New(config *Config, requester Requester) *Signer {
	if config.Queue == "" {
		config.Queue = queue.QueueSigner
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &Signer{
		config:    config,
		requester: requester,
		log:       slog.With("component", "signer"),
	}
}

// Call implements near.Caller.
func (s *Signer) Call(ctx context.Context, call near.FunctionCall) (*near.CallOutcome, error) {
	payload, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("marshal call: %w", err)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	s.log.Debug("Relaying call", "contract", call.ContractID, "method", call.Method)

	reply, err := s.requester.Call(ctxWithTimeout, s.config.Queue, payload)
	if err != nil {
		return nil, fmt.Errorf("signer call %s: %w", call.Method, err)
	}

	var outcome near.CallOutcome
	err = json.Unmarshal(reply, &outcome)
	if err != nil {
		s.log.Error("malformed signer reply", "reply", string(reply), "error", err)
		return nil, fmt.Errorf("decode signer reply: %w", err)
	}

	return &outcome, nil
}
