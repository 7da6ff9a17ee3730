package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "multisender"

var (
	BatchesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_sent_total",
		Help:      "Batches confirmed by the multisender contract.",
	}, []string{"mode"})

	BatchesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_failed_total",
		Help:      "Batches rejected by the multisender contract.",
	}, []string{"mode"})

	RecipientsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recipients_sent_total",
		Help:      "Recipients included in confirmed batches.",
	})

	PendingRecipients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_recipients",
		Help:      "Recipients persisted as not yet sent.",
	})

	AccountsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "accounts_removed_total",
		Help:      "Accounts dropped by validation because they do not exist.",
	})

	ContractCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contract_calls_total",
		Help:      "Contract calls by method and result.",
	}, []string{"method", "result"})
)
