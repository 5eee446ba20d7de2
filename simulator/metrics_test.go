package simulator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics()

	m.observe(2, 0, false) // idle, empty
	m.observe(3, 0, true)  // busy, empty
	m.observe(5, 3, true)  // three waiting
	m.observe(4, 1, true)  // late observation adds nothing

	require.Equal(t, 5.0, m.Timestamp)
	require.Equal(t, 3.0, m.EmptyQueueTime)
	require.Equal(t, 2.0, m.IdleTime)
	require.Equal(t, 6.0, m.QueueLengthArea)
	require.Equal(t, 9.0, m.SystemSizeArea)
	require.Equal(t, []float64{3, 0, 0, 2}, m.Occupancy)
	require.Equal(t, 0.0, m.TimeAtLength(-1))
	require.Equal(t, 0.0, m.TimeAtLength(10))
}

func TestMetricsCloneIsDeep(t *testing.T) {
	m := NewMetrics()
	m.observe(1, 2, true)
	m.recordQueueLength(2)

	c := m.Clone()
	m.observe(2, 2, true)

	require.Equal(t, 1.0, c.TimeAtLength(2))
	require.Equal(t, 2.0, m.TimeAtLength(2))
	require.Equal(t, 1.0, c.TimeAtMaxLength())
}

func TestRecordDeparture(t *testing.T) {
	m := NewMetrics()
	m.recordDeparture(1, 3, 1)
	m.recordDeparture(2, 4, 3)

	require.Equal(t, 2, m.Departures)
	require.Equal(t, 8.0, m.TotalResidenceTime)
	require.Equal(t, 4.0, m.TotalWaitingTime)
	require.Equal(t, 4.0, m.TotalServiceTime)
}

func TestNewReportEmptyMetrics(t *testing.T) {
	report := NewReport(DefaultConfig(), NewMetrics())

	require.Equal(t, 0.0, report.Denominator)
	require.Equal(t, 0.0, report.Utilization)
	require.Equal(t, 0.0, report.MeanResidenceTime)
	require.Equal(t, 0.0, report.Throughput)
	require.Equal(t, 0.5, report.Theory.Utilization)
}

func TestMM1Theory(t *testing.T) {
	theory := MM1Theory(3, 4)

	require.InDelta(t, 0.75, theory.Utilization, 1e-12)
	require.InDelta(t, 2.25, theory.MeanQueueLength, 1e-12)
	require.InDelta(t, 3.0, theory.MeanSystemSize, 1e-12)
	require.InDelta(t, 1.0, theory.MeanResidenceTime, 1e-12)
	require.InDelta(t, 0.75, theory.MeanWaitingTime, 1e-12)
	require.InDelta(t, 0.25, theory.MeanServiceTime, 1e-12)

	// Little's law: L = lambda W and Lq = lambda Wq; W = Wq + 1/mu
	require.InDelta(t, theory.MeanSystemSize, 3*theory.MeanResidenceTime, 1e-12)
	require.InDelta(t, theory.MeanQueueLength, 3*theory.MeanWaitingTime, 1e-12)
	require.InDelta(t, theory.MeanResidenceTime, theory.MeanWaitingTime+theory.MeanServiceTime, 1e-12)
}

func TestRelativeError(t *testing.T) {
	require.Equal(t, 0.0, RelativeError(0, 0))
	require.True(t, math.IsInf(RelativeError(1, 0), 1))
	require.InDelta(t, 0.1, RelativeError(1.1, 1.0), 1e-12)
	require.InDelta(t, 0.1, RelativeError(0.9, 1.0), 1e-12)
}
