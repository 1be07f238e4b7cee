package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ResponseTime tracks request latency separated by route and status code.
	ResponseTime *prometheus.HistogramVec

	// TransactionsTotal counts fresh successful mutations by type.
	TransactionsTotal *prometheus.CounterVec

	// IdempotentReplays counts requests answered from the idempotency store.
	IdempotentReplays prometheus.Counter
)

func init() {
	ResponseTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "okapi",
		Subsystem: "wallets",
		Name:      "response_time_seconds",
		Help:      "Response time separated by route and status code",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status_code"})

	TransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "okapi",
		Subsystem: "wallets",
		Name:      "transactions_total",
		Help:      "Successful mutations by type",
	}, []string{"type"})

	IdempotentReplays = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "okapi",
		Subsystem: "wallets",
		Name:      "idempotent_replays_total",
		Help:      "Requests answered by replaying a stored outcome",
	})

	prometheus.MustRegister(ResponseTime, TransactionsTotal, IdempotentReplays)
}
