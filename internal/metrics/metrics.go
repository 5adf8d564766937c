// Package metrics содержит счётчики Prometheus для автопродления и CSV-импорта.
// Методы безопасно вызывать на nil *Metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "tracker"

// Metrics — набор счётчиков жизненного цикла сервисов.
type Metrics struct {
	sweeps        prometheus.Counter
	sweepServices *prometheus.CounterVec
	importRows    *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Number of auto-renewal sweeps executed.",
		}),
		sweepServices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_services_total",
			Help:      "Services processed by auto-renewal sweeps, by outcome.",
		}, []string{"outcome"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "CSV import rows, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.sweeps, m.sweepServices, m.importRows)
	return m
}

// SweepStarted учитывает один проход автопродления.
func (m *Metrics) SweepStarted() {
	if m == nil {
		return
	}
	m.sweeps.Inc()
}

// SweepService учитывает обработанный сервис с исходом outcome.
func (m *Metrics) SweepService(outcome string) {
	if m == nil {
		return
	}
	m.sweepServices.WithLabelValues(outcome).Inc()
}

// ImportRow учитывает строку импорта: "imported" или "rejected".
func (m *Metrics) ImportRow(result string) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(result).Inc()
}
