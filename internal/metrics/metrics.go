// Package metrics объявляет метрики Prometheus для журнала кредитов,
// бронирований и платёжных событий. Метрики отдаются через /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mentor_exchange"

var (
	// LedgerOperations считает операции журнала по типу и исходу.
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "operations_total",
		Help:      "Wallet ledger operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// LedgerConflicts считает повторы из-за конкурентного изменения кошелька.
	LedgerConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "conflicts_total",
		Help:      "Optimistic wallet update conflicts that caused a retry.",
	})

	// BookingAttempts считает попытки бронирования по конечному состоянию.
	BookingAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "booking",
		Name:      "attempts_total",
		Help:      "Booking attempts by terminal state.",
	}, []string{"state"})

	// PaymentEvents считает платёжные события по типу и исходу.
	PaymentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "events_total",
		Help:      "Payment provider events by type and outcome.",
	}, []string{"type", "outcome"})
)
