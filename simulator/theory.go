package simulator

// Theory holds the closed-form steady-state measures of an M/M/1 queue.
// Queue length counts waiting jobs only; residence time includes service.
type Theory struct {
	Utilization       float64 `json:"utilization" yaml:"utilization"`             // rho = lambda/mu
	MeanQueueLength   float64 `json:"meanQueueLength" yaml:"meanQueueLength"`     // Lq = lambda^2 / (mu^2 - lambda*mu)
	MeanSystemSize    float64 `json:"meanSystemSize" yaml:"meanSystemSize"`       // L = lambda / (mu - lambda)
	MeanResidenceTime float64 `json:"meanResidenceTime" yaml:"meanResidenceTime"` // W = 1 / (mu - lambda)
	MeanWaitingTime   float64 `json:"meanWaitingTime" yaml:"meanWaitingTime"`     // Wq = lambda / (mu * (mu - lambda))
	MeanServiceTime   float64 `json:"meanServiceTime" yaml:"meanServiceTime"`     // 1/mu
	Throughput        float64 `json:"throughput" yaml:"throughput"`               // lambda
}

// MM1Theory evaluates the M/M/1 formulas. Requires 0 < lambda < mu.
func MM1Theory(lambda, mu float64) Theory {
	return Theory{
		Utilization:       lambda / mu,
		MeanQueueLength:   lambda * lambda / (mu*mu - lambda*mu),
		MeanSystemSize:    lambda / (mu - lambda),
		MeanResidenceTime: 1 / (mu - lambda),
		MeanWaitingTime:   lambda / (mu * (mu - lambda)),
		MeanServiceTime:   1 / mu,
		Throughput:        lambda,
	}
}
