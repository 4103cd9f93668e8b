package storage

import (
	"encoding/json"
	"io"
	"time"

	"gonum.org/v1/gonum/mat"
)

type ExportData struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Integrator string             `json:"integrator"`
	Shot       string             `json:"shot"`
	Dt         float64            `json:"dt"`
	Steps      int                `json:"steps"`
	Loss       float64            `json:"loss"`
	Timestamp  time.Time          `json:"timestamp"`
	Names      []string           `json:"names"`
	Times      []float64          `json:"times"`
	Start      []float64          `json:"start"`
	Positions  [][]float64        `json:"positions"`
	Velocities [][]float64        `json:"velocities"`
	Forces     [][]float64        `json:"forces"`
	Metrics    map[string]float64 `json:"metrics"`
}

// ExportJSON writes a run as indented JSON. Positions, velocities and
// forces are indexed [step][dof].
func ExportJSON(w io.Writer, meta *RunMetadata, traj *Trajectory) error {
	r := traj.Rollout
	data := ExportData{
		ID:         meta.ID,
		Model:      meta.Model,
		Integrator: meta.Integrator,
		Shot:       meta.Shot,
		Dt:         meta.Dt,
		Steps:      meta.Steps,
		Loss:       meta.Loss,
		Timestamp:  meta.Timestamp,
		Names:      traj.Names,
		Times:      traj.Times,
		Start:      traj.Start,
		Positions:  columns(r.Poses),
		Velocities: columns(r.Vels),
		Forces:     columns(r.Forces),
		Metrics:    meta.Metrics,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func columns(m *mat.Dense) [][]float64 {
	_, c := m.Dims()
	out := make([][]float64, c)
	for t := range out {
		out[t] = mat.Col(nil, t, m)
	}
	return out
}
