package simulator

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Normalization selects the denominator used for utilization and mean queue length
type Normalization int

const (
	NormalizationHorizon       Normalization = iota // Configured end time T
	NormalizationMaxLengthTime                      // Time accumulated at the maximum observed queue length
)

// String returns the string representation of Normalization
func (n Normalization) String() string {
	switch n {
	case NormalizationHorizon:
		return "horizon"
	case NormalizationMaxLengthTime:
		return "max-length-time"
	default:
		return fmt.Sprintf("unknown(%d)", int(n))
	}
}

// ParseNormalization parses a string into Normalization
func ParseNormalization(s string) (Normalization, error) {
	switch s {
	case "horizon", "":
		return NormalizationHorizon, nil
	case "max-length-time":
		return NormalizationMaxLengthTime, nil
	default:
		return NormalizationHorizon, fmt.Errorf("invalid normalization: %s (must be 'horizon' or 'max-length-time')", s)
	}
}

// MarshalJSON implements json.Marshaler for Normalization
func (n Normalization) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// UnmarshalJSON implements json.Unmarshaler for Normalization
func (n *Normalization) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseNormalization(s)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for Normalization
func (n Normalization) MarshalYAML() (interface{}, error) {
	return n.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Normalization
func (n *Normalization) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseNormalization(value.Value)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// FirstArrival selects when the first job arrives
type FirstArrival int

const (
	FirstArrivalAtZero FirstArrival = iota // First job arrives at t=0
	FirstArrivalDrawn                      // First job arrives after a drawn inter-arrival offset
)

// String returns the string representation of FirstArrival
func (f FirstArrival) String() string {
	switch f {
	case FirstArrivalAtZero:
		return "at-zero"
	case FirstArrivalDrawn:
		return "drawn"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// ParseFirstArrival parses a string into FirstArrival
func ParseFirstArrival(s string) (FirstArrival, error) {
	switch s {
	case "at-zero", "":
		return FirstArrivalAtZero, nil
	case "drawn":
		return FirstArrivalDrawn, nil
	default:
		return FirstArrivalAtZero, fmt.Errorf("invalid first arrival policy: %s (must be 'at-zero' or 'drawn')", s)
	}
}

// MarshalJSON implements json.Marshaler for FirstArrival
func (f FirstArrival) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON implements json.Unmarshaler for FirstArrival
func (f *FirstArrival) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFirstArrival(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for FirstArrival
func (f FirstArrival) MarshalYAML() (interface{}, error) {
	return f.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for FirstArrival
func (f *FirstArrival) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseFirstArrival(value.Value)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// SimConfig holds all parameters of one M/M/1 run
type SimConfig struct {
	ArrivalRate float64 `json:"arrivalRate" yaml:"arrivalRate"` // lambda: mean arrivals per unit time
	ServiceRate float64 `json:"serviceRate" yaml:"serviceRate"` // mu: mean completions per unit of busy time
	EndTime     float64 `json:"endTime" yaml:"endTime"`         // Simulation horizon T

	// Random stream
	RandomSeed int64      `json:"randomSeed" yaml:"randomSeed"` // 0 = time-based seed (non-deterministic)
	Source     SourceKind `json:"source" yaml:"source"`         // Uniform source implementation

	// Conventions
	Normalization Normalization `json:"normalization" yaml:"normalization"`
	FirstArrival  FirstArrival  `json:"firstArrival" yaml:"firstArrival"`
}

// DefaultConfig returns the textbook lambda=1, mu=2 queue over 1000 time units
func DefaultConfig() SimConfig {
	return SimConfig{
		ArrivalRate:   1.0,
		ServiceRate:   2.0,
		EndTime:       1000.0,
		RandomSeed:    0,
		Source:        SourceMathRand,
		Normalization: NormalizationHorizon,
		FirstArrival:  FirstArrivalAtZero,
	}
}

// Validate checks that the queue is well defined and stable
func (c *SimConfig) Validate() error {
	if !isPositiveFinite(c.ArrivalRate) {
		return ErrInvalidConfig("arrivalRate must be a positive number")
	}
	if !isPositiveFinite(c.ServiceRate) {
		return ErrInvalidConfig("serviceRate must be a positive number")
	}
	if !isPositiveFinite(c.EndTime) {
		return ErrInvalidConfig("endTime must be a positive number")
	}
	if c.ArrivalRate >= c.ServiceRate {
		return ErrUnstable(c.ArrivalRate, c.ServiceRate)
	}
	return nil
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1) && !math.IsNaN(v)
}

// ParseConfig decodes a YAML scenario on top of DefaultConfig without validating it
func ParseConfig(data []byte) (SimConfig, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// ReadConfig parses a YAML scenario file without validating it
func ReadConfig(filename string) (SimConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// LoadConfig reads a YAML scenario file and validates it
func LoadConfig(filename string) (SimConfig, error) {
	config, err := ReadConfig(filename)
	if err != nil {
		return config, err
	}

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
