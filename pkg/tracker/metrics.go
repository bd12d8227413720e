package tracker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agile-defense/vesselwatch/pkg/target"
)

// Metrics holds the tracker's Prometheus collectors
type Metrics struct {
	tickLatency    prometheus.Histogram
	ticksTotal     *prometheus.CounterVec
	targets        prometheus.Gauge
	alarmStates    *prometheus.GaugeVec
	classifyErrors prometheus.Counter
	updatesTotal   *prometheus.CounterVec
	removedTotal   prometheus.Counter
	notifiedTotal  prometheus.Counter
}

// NewMetrics creates the tracker collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_tick_duration_seconds",
			Help:    "Time spent recomputing all targets in one tick",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		}),
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_ticks_total",
			Help: "Total recompute ticks by outcome",
		}, []string{"status"}),
		targets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_targets",
			Help: "Targets currently held in the store",
		}),
		alarmStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracker_alarm_targets",
			Help: "Targets in each alarm state after the last tick",
		}, []string{"state"}),
		classifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_classification_failures_total",
			Help: "Targets whose classification failed and kept previous alarm fields",
		}),
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_updates_total",
			Help: "Delta updates applied to the store",
		}, []string{"status"}),
		removedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_targets_removed_total",
			Help: "Targets removed by age-out",
		}),
		notifiedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_danger_notifications_total",
			Help: "Danger notifications raised",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.tickLatency,
			m.ticksTotal,
			m.targets,
			m.alarmStates,
			m.classifyErrors,
			m.updatesTotal,
			m.removedTotal,
			m.notifiedTotal,
		)
	}
	return m
}

func (m *Metrics) recordTick(status string, d time.Duration) {
	m.ticksTotal.WithLabelValues(status).Inc()
	m.tickLatency.Observe(d.Seconds())
}

func (m *Metrics) recordStates(total int, counts map[target.AlarmState]int) {
	m.targets.Set(float64(total))
	m.alarmStates.WithLabelValues("danger").Set(float64(counts[target.StateDanger]))
	m.alarmStates.WithLabelValues("warning").Set(float64(counts[target.StateWarning]))
	m.alarmStates.WithLabelValues("none").Set(float64(counts[target.StateNone]))
}
