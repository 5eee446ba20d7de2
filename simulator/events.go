package simulator

import "fmt"

// EventType represents the type of simulation event
type EventType int

const (
	EventTypeArrival EventType = iota
	EventTypeDeparture
)

func (et EventType) String() string {
	switch et {
	case EventTypeArrival:
		return "arrival"
	case EventTypeDeparture:
		return "departure"
	default:
		return "unknown"
	}
}

// Event is the base interface for all simulation events
type Event interface {
	Timestamp() float64 // Simulated time
	Type() EventType
	String() string
}

// ArrivalEvent represents a job entering the system
type ArrivalEvent struct {
	timestamp float64
}

func NewArrivalEvent(timestamp float64) *ArrivalEvent {
	return &ArrivalEvent{timestamp: timestamp}
}

func (e *ArrivalEvent) Timestamp() float64 { return e.timestamp }
func (e *ArrivalEvent) Type() EventType    { return EventTypeArrival }
func (e *ArrivalEvent) String() string {
	return fmt.Sprintf("Arrival(t=%.4f)", e.timestamp)
}

// DepartureEvent represents service completion of the job at the server
type DepartureEvent struct {
	timestamp    float64
	serviceStart float64 // When the departing job entered service
	serviceTime  float64 // Drawn service duration
}

func NewDepartureEvent(serviceStart, serviceTime float64) *DepartureEvent {
	return &DepartureEvent{
		timestamp:    serviceStart + serviceTime,
		serviceStart: serviceStart,
		serviceTime:  serviceTime,
	}
}

func (e *DepartureEvent) Timestamp() float64    { return e.timestamp }
func (e *DepartureEvent) Type() EventType       { return EventTypeDeparture }
func (e *DepartureEvent) ServiceStart() float64 { return e.serviceStart }
func (e *DepartureEvent) ServiceTime() float64  { return e.serviceTime }
func (e *DepartureEvent) String() string {
	return fmt.Sprintf("Departure(t=%.4f, service=%.4f)", e.timestamp, e.serviceTime)
}
