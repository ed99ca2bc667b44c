package metrics

import (
	"net/http"
	"sync"

	"github.com/joripage/utxo-orderbook/pkg/batch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// utxo_batch_index
	//
	// gauge holding the index of the last accepted batch
	BatchIndexMetricName = "utxo_batch_index"

	// utxo_batch_build_duration_seconds
	//
	// histogram of the time spent building one batch
	BatchBuildDurationMetricName = "utxo_batch_build_duration_seconds"

	// utxo_batch_fills_total
	//
	// counter of fills emitted by accepted batches
	FillsMetricName = "utxo_batch_fills_total"

	// utxo_batch_volume_total
	//
	// counter of base quantity traded by accepted batches
	VolumeMetricName = "utxo_batch_volume_total"

	// utxo_batch_orders_total
	//
	// counter of orders seen by accepted batches
	//
	// Has the following labels:
	// * outcome - rejected, expired, dropped, self_trade_skip
	OrdersMetricName = "utxo_batch_orders_total"

	// utxo_live_set_size
	//
	// gauge holding the number of live UTXOs after the last batch
	LiveSetSizeMetricName = "utxo_live_set_size"

	// utxo_batch_errors_total
	//
	// counter of batches that failed to build or were rejected on submit
	//
	// Has the following labels:
	// * stage - build, prove, submit, store
	BatchErrorsMetricName = "utxo_batch_errors_total"

	BatchIndexGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: BatchIndexMetricName,
			Help: "index of the last accepted batch",
		},
	)

	BatchBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    BatchBuildDurationMetricName,
			Help:    "time spent building one batch",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	FillsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: FillsMetricName,
			Help: "fills emitted by accepted batches",
		},
	)

	VolumeCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: VolumeMetricName,
			Help: "base quantity traded by accepted batches",
		},
	)

	OrdersCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: OrdersMetricName,
			Help: "orders seen by accepted batches, by outcome",
		},
		[]string{"outcome"},
	)

	LiveSetSizeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: LiveSetSizeMetricName,
			Help: "number of live UTXOs after the last batch",
		},
	)

	BatchErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: BatchErrorsMetricName,
			Help: "batches that failed, by stage",
		},
		[]string{"stage"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			BatchIndexGauge,
			BatchBuildDuration,
			FillsCounter,
			VolumeCounter,
			OrdersCounter,
			LiveSetSizeGauge,
			BatchErrorsCounter,
		)
	})
}

// ObserveBatch records an accepted batch.
func ObserveBatch(batchIndex uint64, stats batch.Stats, liveSet int, seconds float64) {
	BatchIndexGauge.Set(float64(batchIndex))
	BatchBuildDuration.Observe(seconds)
	FillsCounter.Add(float64(stats.Fills))
	VolumeCounter.Add(float64(stats.Volume))
	OrdersCounter.WithLabelValues("rejected").Add(float64(stats.Rejected))
	OrdersCounter.WithLabelValues("expired").Add(float64(stats.Expired))
	OrdersCounter.WithLabelValues("dropped").Add(float64(stats.DroppedIncoming))
	OrdersCounter.WithLabelValues("self_trade_skip").Add(float64(stats.SelfTradeSkips))
	LiveSetSizeGauge.Set(float64(liveSet))
}

func ObserveError(stage string) {
	BatchErrorsCounter.WithLabelValues(stage).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
