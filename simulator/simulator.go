package simulator

import (
	"fmt"
	"math"
)

// job is a customer identified by its arrival time
type job struct {
	arrival float64
}

// Snapshot is a point-in-time view of the simulation for progress reporting
type Snapshot struct {
	VirtualTime    float64 `json:"virtualTime"`
	Arrivals       int     `json:"arrivals"`
	Departures     int     `json:"departures"`
	QueueLength    int     `json:"queueLength"`
	ServerBusy     bool    `json:"serverBusy"`
	MaxQueueLength int     `json:"maxQueueLength"`
}

// Simulator is a PURE discrete event simulator of a single-server FIFO queue
// with NO concurrency primitives. All state is accessed single-threaded via
// Step(), StepUntil() and Run(); callers running several simulations in
// parallel must give each its own Simulator.
type Simulator struct {
	config      SimConfig
	src         Source
	arrivalDist ExponentialDistribution
	serviceDist ExponentialDistribution
	metrics     *Metrics
	queue       *EventQueue // Pending arrival and (at most one) departure
	virtualTime float64
	waiting     []float64 // Arrival times of waiting jobs, head is served next
	inService   *job      // nil when the server is idle

	// Event logging callback (optional, for tracing)
	LogEvent func(msg string)
}

// NewSimulator creates a simulator whose source is built from the config
func NewSimulator(config SimConfig) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newSimulator(config, NewSource(config.Source, config.RandomSeed)), nil
}

// NewSimulatorWithSource creates a simulator drawing from an explicit source.
// A nil source falls back to the one described by the config.
func NewSimulatorWithSource(config SimConfig, src Source) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = NewSource(config.Source, config.RandomSeed)
	}
	return newSimulator(config, src), nil
}

func newSimulator(config SimConfig, src Source) *Simulator {
	s := &Simulator{
		config:      config,
		src:         src,
		arrivalDist: ExponentialDistribution{Rate: config.ArrivalRate},
		serviceDist: ExponentialDistribution{Rate: config.ServiceRate},
		metrics:     NewMetrics(),
		queue:       NewEventQueue(),
		waiting:     make([]float64, 0, 16),
	}

	firstArrival := 0.0
	if config.FirstArrival == FirstArrivalDrawn {
		firstArrival = s.arrivalDist.Sample(s.src)
	}
	s.queue.Push(NewArrivalEvent(firstArrival))
	return s
}

// Reset returns the simulator to its initial state with the same config.
// The source is rebuilt from the config, so a fixed seed replays the same run.
func (s *Simulator) Reset() error {
	newSim, err := NewSimulator(s.config)
	if err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	logEvent := s.LogEvent
	*s = *newSim
	s.LogEvent = logEvent
	return nil
}

// Step processes the next event if it falls before the horizon and reports
// whether one was processed. When the next event is at or past the horizon
// the open interval is closed at EndTime and Step returns false from then on.
func (s *Simulator) Step() bool {
	if s.Done() {
		return false
	}

	next := s.queue.Peek()
	if next == nil {
		panic("BUG: event queue is empty! The next arrival must always be pending.")
	}
	if next.Timestamp() >= s.config.EndTime {
		s.advance(s.config.EndTime)
		s.logEvent("[t=%.4f] horizon reached: arrivals=%d departures=%d queue=%d",
			s.virtualTime, s.metrics.Arrivals, s.metrics.Departures, len(s.waiting))
		return false
	}

	event := s.queue.Pop()
	s.advance(event.Timestamp())
	s.processEvent(event)
	return true
}

// StepUntil processes every event before targetTime (capped at the horizon)
// and integrates the state up to it. Returns the new virtual time.
func (s *Simulator) StepUntil(targetTime float64) float64 {
	target := min(targetTime, s.config.EndTime)
	for !s.Done() && s.queue.Peek().Timestamp() < target {
		s.Step()
	}
	if target >= s.config.EndTime {
		// Lets Step close out the horizon and log it
		s.Step()
	} else {
		s.advance(target)
	}
	return s.virtualTime
}

// Run drives the simulation to the horizon and returns the derived report
func (s *Simulator) Run() *Report {
	for s.Step() {
	}
	return s.Report()
}

// advance integrates the current state up to t and moves the clock there.
// The clock never goes backwards.
func (s *Simulator) advance(t float64) {
	s.metrics.observe(t, len(s.waiting), s.inService != nil)
	s.virtualTime = max(s.virtualTime, t)
}

func (s *Simulator) processEvent(event Event) {
	switch e := event.(type) {
	case *ArrivalEvent:
		s.processArrival(e)
	case *DepartureEvent:
		s.processDeparture(e)
	default:
		panic(fmt.Sprintf("BUG: unknown event type %s", event.Type()))
	}
}

func (s *Simulator) processArrival(event *ArrivalEvent) {
	now := s.virtualTime

	if s.inService == nil {
		s.startService(&job{arrival: now})
	} else {
		s.waiting = append(s.waiting, now)
		s.metrics.recordQueueLength(len(s.waiting))
	}

	nextArrival := now + s.arrivalDist.Sample(s.src)
	s.queue.Push(NewArrivalEvent(nextArrival))
	s.metrics.Arrivals++

	s.logEvent("[t=%.4f] %s: queue=%d busy=%v next arrival at %.4f",
		now, event, len(s.waiting), s.inService != nil, nextArrival)
}

func (s *Simulator) processDeparture(event *DepartureEvent) {
	now := s.virtualTime

	done := s.inService
	if done == nil {
		panic(fmt.Sprintf("BUG: %s with an idle server", event))
	}
	s.metrics.recordDeparture(done.arrival, event.ServiceStart(), event.ServiceTime())
	s.inService = nil

	if len(s.waiting) > 0 {
		arrival := s.waiting[0]
		s.waiting = s.waiting[1:]
		s.startService(&job{arrival: arrival})
	}

	s.logEvent("[t=%.4f] %s: residence=%.4f wait=%.4f queue=%d busy=%v",
		now, event, now-done.arrival, event.ServiceStart()-done.arrival, len(s.waiting), s.inService != nil)
}

// startService puts j on the server and schedules its departure.
// The departure event carries the service start and duration.
func (s *Simulator) startService(j *job) {
	s.inService = j
	s.queue.Push(NewDepartureEvent(s.virtualTime, s.serviceDist.Sample(s.src)))
}

func (s *Simulator) logEvent(format string, args ...interface{}) {
	if s.LogEvent != nil {
		s.LogEvent(fmt.Sprintf(format, args...))
	}
}

// Config returns the simulation configuration
func (s *Simulator) Config() SimConfig {
	return s.config
}

// VirtualTime returns the current simulated time
func (s *Simulator) VirtualTime() float64 {
	return s.virtualTime
}

// Done reports whether the clock has reached the horizon
func (s *Simulator) Done() bool {
	return s.virtualTime >= s.config.EndTime
}

// QueueLength returns the number of jobs waiting (excluding the one in service)
func (s *Simulator) QueueLength() int {
	return len(s.waiting)
}

// ServerBusy reports whether a job is in service
func (s *Simulator) ServerBusy() bool {
	return s.inService != nil
}

// NextArrival returns the time of the pending arrival
func (s *Simulator) NextArrival() float64 {
	if e := s.queue.FindNext(EventTypeArrival); e != nil {
		return e.Timestamp()
	}
	return math.Inf(1)
}

// NextDeparture returns the time of the pending departure, or +Inf when idle
func (s *Simulator) NextDeparture() float64 {
	if e := s.queue.FindNext(EventTypeDeparture); e != nil {
		return e.Timestamp()
	}
	return math.Inf(1)
}

// Metrics returns a copy of the accumulators
func (s *Simulator) Metrics() *Metrics {
	return s.metrics.Clone()
}

// Report derives performance measures from the accumulators so far
func (s *Simulator) Report() *Report {
	return NewReport(s.config, s.metrics)
}

// Snapshot returns the current progress view
func (s *Simulator) Snapshot() Snapshot {
	return Snapshot{
		VirtualTime:    s.virtualTime,
		Arrivals:       s.metrics.Arrivals,
		Departures:     s.metrics.Departures,
		QueueLength:    len(s.waiting),
		ServerBusy:     s.inService != nil,
		MaxQueueLength: s.metrics.MaxQueueLength,
	}
}
