package metrics

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/stat"
)

// minSpectrumSamples is the shortest trace worth transforming.
const minSpectrumSamples = 4

// DominantFrequency is the frequency, in Hz, of the strongest non-constant
// component of one position coordinate. Samples are assumed evenly spaced.
type DominantFrequency struct {
	name   string
	dof    int
	trace  []float64
	t0, t1 float64
}

func NewDominantFrequency(dof int) *DominantFrequency {
	name := "dominant_frequency"
	if dof > 0 {
		name = fmt.Sprintf("dominant_frequency_%d", dof)
	}
	return &DominantFrequency{name: name, dof: dof}
}

func (d *DominantFrequency) Name() string { return d.name }

func (d *DominantFrequency) Observe(q, _, _ dynamo.State, t float64) {
	if d.dof >= len(q) {
		return
	}
	if len(d.trace) == 0 {
		d.t0 = t
	}
	d.t1 = t
	d.trace = append(d.trace, q[d.dof])
}

func (d *DominantFrequency) Value() float64 {
	n := len(d.trace)
	if n < minSpectrumSamples || d.t1 <= d.t0 {
		return 0
	}
	dt := (d.t1 - d.t0) / float64(n-1)

	mean := stat.Mean(d.trace, nil)
	centered := make([]float64, n)
	for i, x := range d.trace {
		centered[i] = x - mean
	}

	coeff := fft.FFTReal(centered)
	best, peak := 0, 0.0
	for i := 1; i <= n/2; i++ {
		if p := cmplx.Abs(coeff[i]); p > peak {
			best, peak = i, p
		}
	}
	return float64(best) / (float64(n) * dt)
}

func (d *DominantFrequency) Samples() int {
	if len(d.trace) < minSpectrumSamples {
		return 0
	}
	return len(d.trace)
}

func (d *DominantFrequency) Reset() {
	d.trace = d.trace[:0]
	d.t0, d.t1 = 0, 0
}
