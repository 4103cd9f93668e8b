package metrics

import (
	"math"

	"github.com/san-kum/dynshot/internal/dynamo"
)

// Stability is the fraction of states whose positions and velocities all
// stay within threshold in magnitude.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(q, v, _ dynamo.State, _ float64) {
	s.samples++
	if exceeds(q, s.threshold) || exceeds(v, s.threshold) {
		s.violations++
	}
}

func exceeds(x dynamo.State, threshold float64) bool {
	for _, val := range x {
		if math.Abs(val) > threshold || math.IsNaN(val) {
			return true
		}
	}
	return false
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Samples() int { return s.samples }

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
