// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricType представляет тип метрики
type MetricType string

const (
	OperationCounterType   MetricType = "operation_counter"
	OperationDurationType  MetricType = "operation_duration"
	FeeReserveType         MetricType = "fee_reserve"
	CustodyBalanceType     MetricType = "custody_balance"
	OpenPositionsType      MetricType = "open_positions"
	KeeperLiquidationsType MetricType = "keeper_liquidations"
)

const namespace = "leverage_engine"

// Outcome labels for operation counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
)

// Collector owns the engine's collectors and the registry they live in.
// A nil *Collector is valid and records nothing.
type Collector struct {
	metrics  sync.Map
	registry *prometheus.Registry

	operations         *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	feeReserve         prometheus.Gauge
	custodyBalance     prometheus.Gauge
	openPositions      prometheus.Gauge
	keeperLiquidations prometheus.Counter
}

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_operations_total",
				Help:      "Total number of engine operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_operation_duration_seconds",
				Help:      "Engine operation duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"op"},
		),
		feeReserve: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_fee_reserve",
			Help:      "Current fee reserve balance",
		}),
		custodyBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_custody_balance",
			Help:      "Token balance held in engine custody",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_open_positions",
			Help:      "Number of open positions",
		}),
		keeperLiquidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keeper_liquidations_total",
			Help:      "Positions liquidated by the keeper",
		}),
	}
	c.initializeMetrics()
	return c
}

func (c *Collector) initializeMetrics() {
	metricsMap := map[MetricType]prometheus.Collector{
		OperationCounterType:   c.operations,
		OperationDurationType:  c.duration,
		FeeReserveType:         c.feeReserve,
		CustodyBalanceType:     c.custodyBalance,
		OpenPositionsType:      c.openPositions,
		KeeperLiquidationsType: c.keeperLiquidations,
	}

	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		c.registry.MustRegister(metric)
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		case prometheus.Gauge:
			m.Set(0)
		}
		return true
	})
}
