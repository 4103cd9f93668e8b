package storage

import (
	"bufio"
	"fmt"
	"io"
)

var svgColors = []string{"#00ccff", "#ffcc00", "#00ff88", "#ff44cc", "#ff4444", "#8888ff"}

// ExportSVG draws every position coordinate of traj against time, one
// polyline per dof, in a width x height image.
func ExportSVG(w io.Writer, traj *Trajectory, width, height int) error {
	n, steps := traj.Rollout.Dims()
	series := make([][]float64, n)
	lo, hi := traj.Start[0], traj.Start[0]
	for i := range series {
		s := make([]float64, steps+1)
		s[0] = traj.Start[i]
		for k := 0; k < steps; k++ {
			s[k+1] = traj.Rollout.Poses.At(i, k)
		}
		for _, y := range s {
			lo, hi = min(lo, y), max(hi, y)
		}
		series[i] = s
	}

	// 10% padding, and a unit range for flat traces
	span := hi - lo
	if span == 0 {
		span = 1
	}
	lo -= span * 0.1
	span *= 1.2
	t0, t1 := traj.Times[0], traj.Times[len(traj.Times)-1]
	tspan := t1 - t0
	if tspan == 0 {
		tspan = 1
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for i, s := range series {
		name := fmt.Sprintf("dof%d", i)
		if i < len(traj.Names) {
			name = traj.Names[i]
		}
		fmt.Fprintf(bw, `<path id="%s" fill="none" stroke="%s" stroke-width="1.5" d="M`, name, svgColors[i%len(svgColors)])
		for k, y := range s {
			px := (traj.Times[k] - t0) / tspan * float64(width)
			py := float64(height) - (y-lo)/span*float64(height)
			if k == 0 {
				fmt.Fprintf(bw, "%.1f,%.1f", px, py)
			} else {
				fmt.Fprintf(bw, " L%.1f,%.1f", px, py)
			}
		}
		bw.WriteString("\"/>\n")
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}
