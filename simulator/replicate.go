package simulator

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// z-score of a two-sided 95% normal confidence interval
const confidenceZ95 = 1.959964

// MetricSummary aggregates one measure across replications
type MetricSummary struct {
	Mean        float64 `json:"mean" yaml:"mean"`
	StdDev      float64 `json:"stdDev" yaml:"stdDev"`
	CIHalfWidth float64 `json:"ciHalfWidth" yaml:"ciHalfWidth"` // 95% normal approximation
	Theoretical float64 `json:"theoretical" yaml:"theoretical"`
}

// Lower returns the lower bound of the confidence interval
func (m MetricSummary) Lower() float64 { return m.Mean - m.CIHalfWidth }

// Upper returns the upper bound of the confidence interval
func (m MetricSummary) Upper() float64 { return m.Mean + m.CIHalfWidth }

// ContainsTheory reports whether the theoretical value lies inside the interval
func (m MetricSummary) ContainsTheory() bool {
	return m.Theoretical >= m.Lower() && m.Theoretical <= m.Upper()
}

// RelativeError of the replication mean against theory
func (m MetricSummary) RelativeError() float64 {
	return RelativeError(m.Mean, m.Theoretical)
}

func summarize(samples []float64, theoretical float64) MetricSummary {
	summary := MetricSummary{Theoretical: theoretical}
	if len(samples) == 0 {
		return summary
	}
	if len(samples) == 1 {
		summary.Mean = samples[0]
		return summary
	}
	mean, std := stat.MeanStdDev(samples, nil)
	summary.Mean = mean
	summary.StdDev = std
	summary.CIHalfWidth = confidenceZ95 * stat.StdErr(std, float64(len(samples)))
	return summary
}

// ReplicationSummary holds independent replications of one configuration
type ReplicationSummary struct {
	Config       SimConfig `json:"config" yaml:"config"`
	Replications int       `json:"replications" yaml:"replications"`

	Utilization       MetricSummary `json:"utilization" yaml:"utilization"`
	MeanQueueLength   MetricSummary `json:"meanQueueLength" yaml:"meanQueueLength"`
	MeanSystemSize    MetricSummary `json:"meanSystemSize" yaml:"meanSystemSize"`
	MeanResidenceTime MetricSummary `json:"meanResidenceTime" yaml:"meanResidenceTime"`
	MeanWaitingTime   MetricSummary `json:"meanWaitingTime" yaml:"meanWaitingTime"`

	Reports []*Report `json:"-" yaml:"-"` // Per-replication reports, in replication order
}

// replicationRuns builds the config and source of every replication up front
// so the assignment of streams to replications does not depend on scheduling.
// Replications take consecutive seeds from the base seed, skipping 0 since
// it means a time-based seed.
func replicationRuns(config SimConfig, n int) ([]SimConfig, []Source) {
	configs := make([]SimConfig, n)
	sources := make([]Source, n)
	seed := config.RandomSeed
	if seed == 0 {
		seed = rand.Int63() | 1
	}
	for i := range sources {
		if seed == 0 {
			seed++
		}
		configs[i] = config
		configs[i].RandomSeed = seed
		sources[i] = NewSource(configs[i].Source, configs[i].RandomSeed)
		seed++
	}
	return configs, sources
}

// Replicate runs n independent replications of config on up to parallelism
// workers. Each replication is a single-threaded Simulator with its own
// source. Cancelling ctx stops scheduling further replications.
func Replicate(ctx context.Context, config SimConfig, n, parallelism int) (*ReplicationSummary, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, ErrInvalidConfig("replications must be >= 1")
	}
	if parallelism < 1 {
		parallelism = 1
	}
	parallelism = min(parallelism, n)

	configs, sources := replicationRuns(config, n)
	reports := make([]*Report, n)

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				sim := newSimulator(configs[i], sources[i])
				reports[i] = sim.Run()
			}
		}()
	}

	var ctxErr error
feed:
	for i := 0; i < n; i++ {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break feed
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()

	if ctxErr != nil {
		return nil, ctxErr
	}
	return summarizeReports(config, reports), nil
}

func summarizeReports(config SimConfig, reports []*Report) *ReplicationSummary {
	n := len(reports)
	utilization := make([]float64, n)
	queueLength := make([]float64, n)
	systemSize := make([]float64, n)
	residence := make([]float64, n)
	waiting := make([]float64, n)
	for i, r := range reports {
		utilization[i] = r.Utilization
		queueLength[i] = r.MeanQueueLength
		systemSize[i] = r.MeanSystemSize
		residence[i] = r.MeanResidenceTime
		waiting[i] = r.MeanWaitingTime
	}

	theory := MM1Theory(config.ArrivalRate, config.ServiceRate)
	return &ReplicationSummary{
		Config:            config,
		Replications:      n,
		Utilization:       summarize(utilization, theory.Utilization),
		MeanQueueLength:   summarize(queueLength, theory.MeanQueueLength),
		MeanSystemSize:    summarize(systemSize, theory.MeanSystemSize),
		MeanResidenceTime: summarize(residence, theory.MeanResidenceTime),
		MeanWaitingTime:   summarize(waiting, theory.MeanWaitingTime),
		Reports:           reports,
	}
}

// MaxRelativeError returns the largest relative error of the replication
// means of utilization and residence time against theory
func (s *ReplicationSummary) MaxRelativeError() float64 {
	return math.Max(s.Utilization.RelativeError(), s.MeanResidenceTime.RelativeError())
}
