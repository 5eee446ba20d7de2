package simulator

import "math"

// Metrics holds the accumulators of a run. Only the simulator mutates them;
// everything time-weighted is integrated up to Timestamp.
type Metrics struct {
	Timestamp float64 `json:"timestamp" yaml:"timestamp"` // Last bookkeeping time

	// Counters
	Arrivals       int `json:"arrivals" yaml:"arrivals"`
	Departures     int `json:"departures" yaml:"departures"`
	MaxQueueLength int `json:"maxQueueLength" yaml:"maxQueueLength"`

	// Time-weighted accumulators
	EmptyQueueTime  float64 `json:"emptyQueueTime" yaml:"emptyQueueTime"`   // Time with nobody waiting
	IdleTime        float64 `json:"idleTime" yaml:"idleTime"`               // Time with the server idle
	QueueLengthArea float64 `json:"queueLengthArea" yaml:"queueLengthArea"` // Sum of queue length x duration
	SystemSizeArea  float64 `json:"systemSizeArea" yaml:"systemSizeArea"`   // Sum of jobs in system x duration

	// Occupancy[k] is the total time the waiting queue held exactly k jobs.
	// Grows on first observation of a length; the partition sums to Timestamp.
	Occupancy []float64 `json:"occupancy" yaml:"occupancy"`

	// Per-job sums, finalized at departure
	TotalResidenceTime float64 `json:"totalResidenceTime" yaml:"totalResidenceTime"`
	TotalWaitingTime   float64 `json:"totalWaitingTime" yaml:"totalWaitingTime"`
	TotalServiceTime   float64 `json:"totalServiceTime" yaml:"totalServiceTime"`
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{
		Occupancy: make([]float64, 0, 16),
	}
}

// observe integrates the state that held since Timestamp up to until
func (m *Metrics) observe(until float64, queueLen int, busy bool) {
	elapsed := until - m.Timestamp
	if elapsed < 0 {
		elapsed = 0
	}

	if queueLen == 0 {
		m.EmptyQueueTime += elapsed
	}
	inSystem := queueLen
	if busy {
		inSystem++
	} else {
		m.IdleTime += elapsed
	}
	m.QueueLengthArea += float64(queueLen) * elapsed
	m.SystemSizeArea += float64(inSystem) * elapsed

	for len(m.Occupancy) <= queueLen {
		m.Occupancy = append(m.Occupancy, 0)
	}
	m.Occupancy[queueLen] += elapsed

	m.Timestamp = max(m.Timestamp, until)
}

func (m *Metrics) recordQueueLength(n int) {
	if n > m.MaxQueueLength {
		m.MaxQueueLength = n
	}
}

func (m *Metrics) recordDeparture(arrival, serviceStart, serviceTime float64) {
	m.TotalResidenceTime += serviceStart + serviceTime - arrival
	m.TotalWaitingTime += serviceStart - arrival
	m.TotalServiceTime += serviceTime
	m.Departures++
}

// TimeAtLength returns the accumulated time the queue held exactly k jobs
func (m *Metrics) TimeAtLength(k int) float64 {
	if k < 0 || k >= len(m.Occupancy) {
		return 0
	}
	return m.Occupancy[k]
}

// TimeAtMaxLength returns the accumulated time at the maximum observed length
func (m *Metrics) TimeAtMaxLength() float64 {
	return m.TimeAtLength(m.MaxQueueLength)
}

// Clone returns a deep copy
func (m *Metrics) Clone() *Metrics {
	c := *m
	c.Occupancy = append([]float64(nil), m.Occupancy...)
	return &c
}

// Report holds the derived measures of a run next to their theoretical values
type Report struct {
	Config SimConfig `json:"config" yaml:"config"`

	Arrivals             int     `json:"arrivals" yaml:"arrivals"`
	Departures           int     `json:"departures" yaml:"departures"`
	ElapsedTime          float64 `json:"elapsedTime" yaml:"elapsedTime"`
	EmptyQueueTime       float64 `json:"emptyQueueTime" yaml:"emptyQueueTime"`
	IdleTime             float64 `json:"idleTime" yaml:"idleTime"`
	MaxQueueLength       int     `json:"maxQueueLength" yaml:"maxQueueLength"`
	TimeAtMaxQueueLength float64 `json:"timeAtMaxQueueLength" yaml:"timeAtMaxQueueLength"`
	Denominator          float64 `json:"denominator" yaml:"denominator"` // Normalizer of utilization and queue length

	Utilization       float64 `json:"utilization" yaml:"utilization"`
	MeanQueueLength   float64 `json:"meanQueueLength" yaml:"meanQueueLength"`
	MeanSystemSize    float64 `json:"meanSystemSize" yaml:"meanSystemSize"`
	MeanResidenceTime float64 `json:"meanResidenceTime" yaml:"meanResidenceTime"`
	MeanWaitingTime   float64 `json:"meanWaitingTime" yaml:"meanWaitingTime"`
	MeanServiceTime   float64 `json:"meanServiceTime" yaml:"meanServiceTime"`
	Throughput        float64 `json:"throughput" yaml:"throughput"`

	Theory Theory `json:"theory" yaml:"theory"`
}

// NewReport derives the performance measures from a metrics snapshot.
// The horizon normalization uses the elapsed simulated time, which equals
// EndTime once a run has finished.
func NewReport(config SimConfig, m *Metrics) *Report {
	r := &Report{
		Config:               config,
		Arrivals:             m.Arrivals,
		Departures:           m.Departures,
		ElapsedTime:          m.Timestamp,
		EmptyQueueTime:       m.EmptyQueueTime,
		IdleTime:             m.IdleTime,
		MaxQueueLength:       m.MaxQueueLength,
		TimeAtMaxQueueLength: m.TimeAtMaxLength(),
		Theory:               MM1Theory(config.ArrivalRate, config.ServiceRate),
	}

	switch config.Normalization {
	case NormalizationMaxLengthTime:
		r.Denominator = r.TimeAtMaxQueueLength
	default:
		r.Denominator = m.Timestamp
	}

	// Drift (or a short max-length interval) can push idle time past the
	// denominator; floor both ratios instead of reporting negatives.
	if r.Denominator > 0 && m.IdleTime <= r.Denominator {
		r.Utilization = 1 - m.IdleTime/r.Denominator
		r.MeanQueueLength = m.QueueLengthArea / r.Denominator
		r.MeanSystemSize = m.SystemSizeArea / r.Denominator
	}

	if m.Departures > 0 {
		n := float64(m.Departures)
		r.MeanResidenceTime = m.TotalResidenceTime / n
		r.MeanWaitingTime = m.TotalWaitingTime / n
		r.MeanServiceTime = m.TotalServiceTime / n
	}
	if m.Timestamp > 0 {
		r.Throughput = float64(m.Departures) / m.Timestamp
	}
	return r
}

// RelativeError returns |computed - theoretical| / theoretical, or +Inf when theoretical is 0
func RelativeError(computed, theoretical float64) float64 {
	if theoretical == 0 {
		if computed == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(computed-theoretical) / math.Abs(theoretical)
}
