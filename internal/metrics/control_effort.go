package metrics

import (
	"math"

	"github.com/san-kum/dynshot/internal/dynamo"
)

// ControlEffort is the mean over steps of the summed absolute forces.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(_, _, f dynamo.State, _ float64) {
	if f == nil {
		return
	}
	for _, val := range f {
		c.sum += math.Abs(val)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Samples() int { return c.samples }

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
