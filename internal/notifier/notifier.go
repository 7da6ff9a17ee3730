package notifier

import (
	"encoding/json"
	"log/slog"

	"github.com/openbuilders/ft-multisender/internal/queue"
	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/google/uuid"
)

const (
	PatternMultisendStatus = "multisend-status"
)

type Config struct {
	Queue queue.QueueName
}

// Publisher puts a message on a queue.
type Publisher interface {
	Publish(queueName queue.QueueName, message []byte) error
}

type SendResultData struct {
	RunID       uuid.UUID         `json:"run_id"`
	AccountID   string            `json:"account_id"`
	Mode        types.SendMode    `json:"mode"`
	Status      types.BatchStatus `json:"status"`
	Batches     int               `json:"batches"`
	Sent        int               `json:"sent"`
	FailedBatch int               `json:"failed_batch"`
	Error       string            `json:"error,omitempty"`
}

type SendResultNotification struct {
	Pattern string         `json:"pattern"`
	Data    SendResultData `json:"data"`
}

type Notifier struct {
	config    *Config
	publisher Publisher
	log       *slog.Logger
}

func New(config *Config, publisher Publisher) *Notifier {
	if config.Queue == "" {
		config.Queue = queue.QueueStatus
	}

	return &Notifier{
		config:    config,
		publisher: publisher,
		log:       slog.With("component", "notifier"),
	}
}

// NotifySend publishes the outcome of a send run. A nil runErr means every
// batch was confirmed. Publishing failures are logged only, the run itself
// already happened.
func (n *Notifier) NotifySend(accountID string, result *types.SendResult, runErr error) {
	if result == nil {
		return
	}

	payload := SendResultNotification{
		Pattern: PatternMultisendStatus,
		Data: SendResultData{
			RunID:       result.RunID,
			AccountID:   accountID,
			Mode:        result.Mode,
			Status:      types.StatusSuccess,
			Batches:     result.Batches,
			Sent:        result.Sent,
			FailedBatch: result.FailedBatch,
		},
	}

	if runErr != nil {
		payload.Data.Status = types.StatusError
		payload.Data.Error = runErr.Error()
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("error marshaling JSON", "payload", payload, "error", err)
		return
	}

	n.log.Debug("Sending notification", "payload", string(jsonData))

	err = n.publisher.Publish(n.config.Queue, jsonData)
	if err != nil {
		n.log.Error(
			"couldn't enqueue message",
			"message", string(jsonData),
			"error", err,
		)
	}
}
