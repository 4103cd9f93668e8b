package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const suiteYAML = `
name: smoke
problems:
  - name: small
    model: pendulum
    preset: small
    steps: 12
  - model: coupled_pendulums
    steps: 5
    init_state:
      positions: [0.1, 0.2]
sweeps:
  - name: length
    base:
      model: pendulum
      preset: small
    param: length
    min: 0.5
    max: 1.5
    count: 3
`

func writeSuite(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestSuiteExpand(t *testing.T) {
	s, err := LoadSuite(writeSuite(t, suiteYAML))
	require.NoError(t, err)
	assert.Equal(t, DefaultTolerance, s.Tolerance)

	problems, err := s.Expand()
	require.NoError(t, err)

	var names []string
	for _, p := range problems {
		names = append(names, p.Name)
	}
	want := []string{"small", "coupled_pendulums#1", "length/length=0.5", "length/length=1", "length/length=1.5"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("problem names (-want +got):\n%s", diff)
	}

	// preset fields survive, explicit fields win
	assert.Equal(t, 12, problems[0].Steps)
	assert.Equal(t, "rk4", problems[0].Integrator)
	// no preset: defaults fill the gaps
	assert.Equal(t, DefaultDt, problems[1].Dt)
	assert.Equal(t, []float64{0.1, 0.2}, problems[1].InitState.Positions)

	assert.Equal(t, 1.0, problems[3].Params["length"])
}

func TestSuiteExpandReportsAllErrors(t *testing.T) {
	s := &Suite{
		Problems: []Problem{
			{Name: "a", Preset: "missing", Config: Config{Model: "pendulum"}},
			{Name: "b", Config: Config{Model: "pendulum", Steps: 3, ShotLength: 9}},
		},
		Sweeps: []Sweep{{Name: "empty"}},
	}
	_, err := s.Expand()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preset")
	assert.Contains(t, err.Error(), "shot_length")
	assert.Contains(t, err.Error(), "positive count")
}
