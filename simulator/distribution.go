package simulator

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/iti/rngstream"
	"gopkg.in/yaml.v3"
)

// SourceKind represents the uniform random number generator backing a run
type SourceKind int

const (
	SourceMathRand SourceKind = iota // math/rand, seeded from RandomSeed
	SourceMRG32k3a                   // L'Ecuyer MRG32k3a stream seeded from RandomSeed
)

// String returns the string representation of SourceKind
func (k SourceKind) String() string {
	switch k {
	case SourceMathRand:
		return "math-rand"
	case SourceMRG32k3a:
		return "mrg32k3a"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseSourceKind parses a string into a SourceKind
func ParseSourceKind(s string) (SourceKind, error) {
	switch s {
	case "math-rand", "":
		return SourceMathRand, nil
	case "mrg32k3a":
		return SourceMRG32k3a, nil
	default:
		return SourceMathRand, fmt.Errorf("invalid source: %s (must be 'math-rand' or 'mrg32k3a')", s)
	}
}

// MarshalJSON implements json.Marshaler for SourceKind
func (k SourceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler for SourceKind
func (k *SourceKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSourceKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for SourceKind
func (k SourceKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for SourceKind
func (k *SourceKind) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseSourceKind(value.Value)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Source produces uniform samples in [0, 1)
type Source interface {
	Float64() float64
}

// streamSource adapts an MRG32k3a stream to Source
type streamSource struct {
	stream *rngstream.RngStream
}

func (s *streamSource) Float64() float64 {
	return s.stream.RandU01()
}

// MRG32k3a moduli. Seed words must be below them and not all zero.
const (
	mrgModulus1 = 4294967087
	mrgModulus2 = 4294944443
)

// rngstream.New advances a package-level seed
var streamMu sync.Mutex

func newStreamSource(seed int64) *streamSource {
	for seed == 0 {
		seed = rand.Int63()
	}
	streamMu.Lock()
	stream := rngstream.New(fmt.Sprintf("mm1-%d", seed))
	streamMu.Unlock()
	stream.SetSeed(streamSeed(seed))
	return &streamSource{stream: stream}
}

// streamSeed expands seed into six valid MRG32k3a seed words (splitmix64)
func streamSeed(seed int64) []uint64 {
	x := uint64(seed)
	words := make([]uint64, 6)
	for i := range words {
		x += 0x9e3779b97f4a7c15
		z := x
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31

		modulus := uint64(mrgModulus1)
		if i >= 3 {
			modulus = mrgModulus2
		}
		words[i] = 1 + z%(modulus-1)
	}
	return words
}

// NewSource creates the uniform source for a run.
// A seed of 0 picks a time-based seed, breaking reproducibility; any other
// seed yields the same sequence on every call for either kind.
func NewSource(kind SourceKind, seed int64) Source {
	switch kind {
	case SourceMRG32k3a:
		return newStreamSource(seed)
	default:
		if seed == 0 {
			return rand.New(rand.NewSource(rand.Int63()))
		}
		return rand.New(rand.NewSource(seed))
	}
}

// ExponentialDistribution samples event offsets for a Poisson process
type ExponentialDistribution struct {
	Rate float64 // Events per unit time; must be > 0
}

// Sample draws one value by inverse transform: X = -ln(1 - U) / rate.
// U is in [0, 1), so 1-U is in (0, 1] and the log is always finite.
func (d ExponentialDistribution) Sample(src Source) float64 {
	return -math.Log(1.0-src.Float64()) / d.Rate
}
