package metrics

import (
	"math"

	"github.com/san-kum/dynshot/internal/dynamo"
)

// Energy is the mean total energy over the observed states.
type Energy struct {
	name        string
	model       dynamo.Hamiltonian
	samples     int
	totalEnergy float64
}

func NewEnergy(model dynamo.Hamiltonian) *Energy {
	return &Energy{
		name:  "energy",
		model: model,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(q, v, _ dynamo.State, _ float64) {
	e.totalEnergy += e.model.Energy(q, v)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Samples() int { return e.samples }

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest relative departure from the first observed
// energy. Models without an energy are ignored.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
	dyn           dynamo.Dynamics
}

func NewEnergyDrift(dyn dynamo.Dynamics) *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
		dyn:  dyn,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(q, v, _ dynamo.State, _ float64) {
	ec, ok := e.dyn.(dynamo.Hamiltonian)
	if !ok {
		return
	}

	energy := ec.Energy(q, v)

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Samples() int { return e.samples }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
