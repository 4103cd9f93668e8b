package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/dynshot/internal/batch"
	"github.com/san-kum/dynshot/internal/metrics"
	"github.com/san-kum/dynshot/internal/trajectory"
)

func row(label, value string) string {
	return MetricLabel.Render(label) + MetricValue.Render(value) + "\n"
}

// RenderVerification formats the comparison of analytic and
// finite-difference derivatives.
func RenderVerification(name string, v *trajectory.Verification) string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(name) + "\n")
	s.WriteString(row("flat dim", fmt.Sprintf("%d", v.FlatDim)))
	s.WriteString(row("constraints", fmt.Sprintf("%d", v.ConstraintDim)))
	s.WriteString(row("steps", fmt.Sprintf("%d", v.Steps)))
	s.WriteString(row("non-zeros", fmt.Sprintf("%d", v.NonZeros)))
	s.WriteString("\n")

	s.WriteString(Subtle.Render(fmt.Sprintf("%-16s%12s%12s", "", "max abs", "max rel")) + "\n")
	for _, c := range []struct {
		name     string
		abs, rel float64
	}{
		{"jacobian", v.JacobianMaxAbs, v.JacobianMaxRel},
		{"gradient", v.GradientMaxAbs, v.GradientMaxRel},
		{"start state", v.StartMaxAbs, v.StartMaxRel},
	} {
		s.WriteString(MetricLabel.Render(c.name) +
			MetricValue.Render(fmt.Sprintf("%12.3e%12.3e", c.abs, c.rel)) + "  " +
			Verdict(c.rel <= v.Tolerance) + "\n")
	}
	s.WriteString(row("sparse = dense", fmt.Sprintf("%t", v.SparseMatchesDense)))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("tolerance %.1e  ", v.Tolerance) + Verdict(v.Passed) + "\n")
	return Panel.Render(strings.TrimRight(s.String(), "\n"))
}

// RenderMetrics lists metric results; metrics that saw no samples show n/a.
func RenderMetrics(results []metrics.Result) string {
	var s strings.Builder
	for _, r := range results {
		value := "n/a"
		if r.Samples > 0 {
			value = fmt.Sprintf("%.6g", r.Value)
		}
		s.WriteString(row(r.Name, value))
	}
	return s.String()
}

// RenderSuite is a one-line-per-job summary of a batch run.
func RenderSuite(results []batch.Result) string {
	var s strings.Builder
	passed := 0
	for _, r := range results {
		status := Verdict(r.Passed())
		detail := ""
		switch {
		case r.Err != nil:
			detail = Fail.Render(r.Err.Error())
		case r.Verification != nil:
			detail = fmt.Sprintf("max rel %.2e  %s", r.Verification.MaxRel(), r.Duration.Round(time.Millisecond))
		}
		if r.Passed() {
			passed++
		}
		s.WriteString(fmt.Sprintf("%s  %-32s %s\n", status, r.Name, detail))
	}
	s.WriteString(Separator(60) + "\n")
	s.WriteString(fmt.Sprintf("%d/%d passed\n", passed, len(results)))
	return s.String()
}

// RenderSparsity draws the non-zero pattern of a shot's constraint
// Jacobian, scaled into a braille canvas of at most width x height cells.
func RenderSparsity(s trajectory.Shot, width, height int) string {
	rowsN, colsN := s.ConstraintDim(), s.FlatProblemDim()
	nnz := s.NumberNonZeroJacobian()
	header := fmt.Sprintf("%d x %d, %d non-zeros", rowsN, colsN, nnz)
	if rowsN == 0 || nnz == 0 {
		return header + "\n"
	}

	rows := make([]int, nnz)
	cols := make([]int, nnz)
	s.JacobianSparsityStructure(rows, cols)

	c := NewCanvas(min(width, (colsN+1)/2), min(height, (rowsN+3)/4))
	w, h := c.Size()
	for k := range rows {
		c.Set(cols[k]*w/colsN, rows[k]*h/rowsN)
	}
	density := float64(nnz) / float64(rowsN*colsN)
	return header + fmt.Sprintf(" (%.1f%% dense)\n", 100*density) +
		lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Render(strings.TrimRight(c.String(), "\n")) + "\n"
}
