package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/trajectory"
	"gonum.org/v1/gonum/mat"
)

// Quantity selects which part of a rollout to plot.
type Quantity int

const (
	Positions Quantity = iota
	Velocities
	Forces
)

func (q Quantity) String() string {
	switch q {
	case Positions:
		return "positions"
	case Velocities:
		return "velocities"
	case Forces:
		return "forces"
	default:
		return fmt.Sprintf("Quantity(%d)", int(q))
	}
}

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Cyan, asciigraph.Yellow, asciigraph.Green, asciigraph.Magenta, asciigraph.Red, asciigraph.Blue,
}

// Series extracts one row per dof. Positions and velocities are prefixed
// with the start state so the curve begins at t = 0.
func Series(start dynamo.State, r *trajectory.Rollout, q Quantity) [][]float64 {
	dofs, steps := r.Dims()
	var m *mat.Dense
	offset := 0
	switch q {
	case Positions:
		m = r.Poses
	case Velocities:
		m, offset = r.Vels, dofs
	default:
		m = r.Forces
	}

	out := make([][]float64, dofs)
	for i := range out {
		row := make([]float64, 0, steps+1)
		if q != Forces && start != nil {
			row = append(row, start[offset+i])
		}
		out[i] = append(row, mat.Row(nil, i, m)...)
	}
	return out
}

// PlotRollout renders every dof of one quantity on a shared axis.
func PlotRollout(start dynamo.State, r *trajectory.Rollout, names []string, q Quantity, width, height int) string {
	data := Series(start, r, q)
	colors := make([]asciigraph.AnsiColor, len(data))
	for i := range colors {
		colors[i] = seriesColors[i%len(seriesColors)]
	}
	caption := q.String()
	if len(names) > 0 {
		caption += ": " + strings.Join(names, ", ")
	}
	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption))
}
