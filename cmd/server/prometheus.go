package main

import (
	"github.com/miretskiy/mm1sim/simulator"
	"github.com/prometheus/client_golang/prometheus"
)

// serverMetrics exports the report of the most recently finished run
type serverMetrics struct {
	utilization            prometheus.Gauge
	theoreticalUtilization prometheus.Gauge
	meanQueueLength        prometheus.Gauge
	theoreticalQueueLength prometheus.Gauge
	meanResidenceTime      prometheus.Gauge
	theoreticalResidence   prometheus.Gauge
	arrivals               prometheus.Gauge
	departures             prometheus.Gauge
	maxQueueLength         prometheus.Gauge
	runsCompleted          prometheus.Counter
	runsStopped            prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mm1_utilization",
			Help: "Measured server utilization of the last run",
		}),
		theoreticalUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mm1_theoretical_utilization",
			Help: "Closed-form utilization lambda/mu of the last run",
		}),
		meanQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mm1_mean_queue_length",
			Help: "Time-averaged number of waiting jobs in the last run",
		}),
		theoreticalQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mm1_theoretical_mean_queue_length",
			Help: "Closed-form mean queue length of the last run",
		}),
		meanResidenceTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mm1_mean_residence_time",
			Help: "Mean time in system of departed jobs in the last run",
		}),
		theoreticalResidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mm1_theoretical_mean_residence_time",
			Help: "Closed-form mean residence time 1/(mu-lambda) of the last run",
		}),
		arrivals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mm1_arrivals",
			Help: "Jobs arrived in the last run",
		}),
		departures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mm1_departures",
			Help: "Jobs departed in the last run",
		}),
		maxQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mm1_max_queue_length",
			Help: "Largest queue length observed in the last run",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mm1_runs_completed_total",
			Help: "Simulations that reached their horizon",
		}),
		runsStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mm1_runs_stopped_total",
			Help: "Simulations stopped before their horizon",
		}),
	}

	reg.MustRegister(
		m.utilization,
		m.theoreticalUtilization,
		m.meanQueueLength,
		m.theoreticalQueueLength,
		m.meanResidenceTime,
		m.theoreticalResidence,
		m.arrivals,
		m.departures,
		m.maxQueueLength,
		m.runsCompleted,
		m.runsStopped,
	)
	return m
}

func (m *serverMetrics) observe(report *simulator.Report) {
	m.utilization.Set(report.Utilization)
	m.theoreticalUtilization.Set(report.Theory.Utilization)
	m.meanQueueLength.Set(report.MeanQueueLength)
	m.theoreticalQueueLength.Set(report.Theory.MeanQueueLength)
	m.meanResidenceTime.Set(report.MeanResidenceTime)
	m.theoreticalResidence.Set(report.Theory.MeanResidenceTime)
	m.arrivals.Set(float64(report.Arrivals))
	m.departures.Set(float64(report.Departures))
	m.maxQueueLength.Set(float64(report.MaxQueueLength))
	m.runsCompleted.Inc()
}
