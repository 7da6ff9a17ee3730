package model

import (
	"time"
)

type BatchLogEntry struct {
	RunID      string    `db:"run_id" json:"run_id"`
	BatchIndex int       `db:"batch_index" json:"batch_index"`
	Status     string    `db:"status" json:"status"`
	Recipients int       `db:"recipients" json:"recipients"`
	Total      string    `db:"total" json:"total"`
	Reason     string    `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
