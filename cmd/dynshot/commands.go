package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/dynshot/internal/batch"
	"github.com/san-kum/dynshot/internal/config"
	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/storage"
	"github.com/san-kum/dynshot/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	plotWidth  = 70
	plotHeight = 12
)

func runRollout(cmd *cobra.Command, args []string) error {
	p, err := buildProblem(cmd, args)
	if err != nil {
		return err
	}

	start := time.Now()
	r, err := p.Rollout()
	if err != nil {
		return err
	}
	loss, err := p.Shot.Loss(p.World)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	results := p.Metrics(r, registry.DefaultMetrics(p.World.Dynamics()))
	n, steps := r.Dims()
	names := make([]string, n)
	for i := range names {
		names[i] = p.World.DofName(i)
	}

	fmt.Printf("%s: %d steps of %gs, %s shot, %s\n", p.Config.Model, steps, p.World.TimeStep(), shotKind(p.Config), p.World.Integrator().Name())
	fmt.Printf("completed in %v\n\n", elapsed)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOF\tQ\tV")
	for i, name := range names {
		fmt.Fprintf(w, "%s\t%.6f\t%.6f\n", name, r.Poses.At(i, steps-1), r.Vels.At(i, steps-1))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nloss: %.6g\n\n", loss)
	fmt.Print(viz.RenderMetrics(results))
	fmt.Println()
	fmt.Println(viz.PlotRollout(p.Shot.StartState(), r, names, viz.Positions, plotWidth, plotHeight))

	if !save {
		return nil
	}
	saved := make(map[string]float64, len(results))
	for _, res := range results {
		if res.Samples > 0 {
			saved[res.Name] = res.Value
		}
	}
	id, err := saveRollout(cmd.Context(), p, r, loss, saved)
	if err != nil {
		return err
	}
	fmt.Printf("\nrun id: %s\n", id)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	p, err := buildProblem(cmd, args)
	if err != nil {
		return err
	}
	v, err := p.Verify(tolerance)
	if err != nil {
		return err
	}
	log.Info("verification",
		zap.String("model", p.Config.Model),
		zap.Float64("max_rel", v.MaxRel()),
		zap.Bool("passed", v.Passed))

	fmt.Println(viz.RenderVerification(p.Config.Model, v))
	if !v.Passed {
		return fmt.Errorf("derivatives disagree: max rel %.2e over tolerance %.1e", v.MaxRel(), v.Tolerance)
	}
	return nil
}

func runSuite(cmd *cobra.Command, args []string) error {
	suite, err := config.LoadSuite(args[0])
	if err != nil {
		return err
	}
	problems, err := suite.Expand()
	if err != nil {
		return err
	}
	tol := suite.Tolerance
	if cmd.Flags().Changed("tol") {
		tol = suiteTol
	}

	jobs := make([]batch.Job, 0, len(problems))
	for _, prob := range problems {
		cfg := prob.Config
		settings.Apply(&cfg)
		p, err := registry.Build(&cfg, log)
		if err != nil {
			return fmt.Errorf("problem %q: %w", prob.Name, err)
		}
		jobs = append(jobs, batch.Job{Name: prob.Name, World: p.World, Shot: p.Shot, FD: p.FD, Tolerance: tol})
	}

	n := settings.Workers
	if cmd.Flags().Changed("workers") {
		n = workers
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runner := batch.NewRunner(batch.WithWorkers(n), batch.WithLogger(log))
	results, err := runner.Run(ctx, jobs)
	if suite.Name != "" {
		fmt.Println(viz.Title.Render(suite.Name))
	}
	fmt.Print(viz.RenderSuite(results))
	if err != nil {
		return err
	}
	for _, res := range results {
		if !res.Passed() {
			return errors.New("suite failed")
		}
	}
	return nil
}

func runSparsity(cmd *cobra.Command, args []string) error {
	p, err := buildProblem(cmd, args)
	if err != nil {
		return err
	}
	s := p.Shot
	fmt.Printf("flat dim %d, constraint dim %d\n", s.FlatProblemDim(), s.ConstraintDim())
	fmt.Print(viz.RenderSparsity(s, 60, 20))

	nnz := s.NumberNonZeroJacobian()
	if nnz == 0 {
		return nil
	}
	rows := make([]int, nnz)
	cols := make([]int, nnz)
	s.JacobianSparsityStructure(rows, cols)

	const sample = 12
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nROW\tCOL\tVARIABLE")
	for k := 0; k < min(nnz, sample); k++ {
		fmt.Fprintf(w, "%d\t%d\t%s\n", rows[k], cols[k], s.FlatDimName(cols[k]))
	}
	if nnz > sample {
		fmt.Fprintf(w, "...\t\t(%d more)\n", nnz-sample)
	}
	return w.Flush()
}

func openStore() (*storage.Store, error) {
	return storage.Open(dataDir)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tSHOT\tSTEPS\tDT\tINTEG\tLOSS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4fs\t%s\t%.4g\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Shot,
			run.Steps,
			run.Dt,
			run.Integrator,
			run.Loss,
		)
	}
	return w.Flush()
}

func loadRun(ctx context.Context, id string) (*storage.RunMetadata, *storage.Trajectory, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()

	meta, err := st.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	traj, err := st.LoadTrajectory(id)
	if err != nil {
		return nil, nil, err
	}
	return meta, traj, nil
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s (%d dofs)\n", meta.Model, meta.Dofs)
	fmt.Printf("integrator: %s, dt %gs, %d steps, %s shot\n", meta.Integrator, meta.Dt, meta.Steps, meta.Shot)
	fmt.Printf("saved: %s\n", meta.Timestamp.Format(time.RFC3339))
	fmt.Printf("loss: %.6g\n", meta.Loss)

	if len(meta.Metrics) > 0 {
		names := make([]string, 0, len(meta.Metrics))
		for name := range meta.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("\nmetrics:")
		for _, name := range names {
			fmt.Printf("  %s: %.6f\n", name, meta.Metrics[name])
		}
	}

	for _, q := range []viz.Quantity{viz.Positions, viz.Velocities, viz.Forces} {
		fmt.Println()
		fmt.Println(viz.PlotRollout(traj.Start, traj.Rollout, traj.Names, q, plotWidth, plotHeight))
	}
	return nil
}

func playRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	frames := viz.Frames(traj.Times, traj.Start, traj.Rollout)

	var energy []float64
	if p, err := registry.Build(meta.Config, log); err != nil {
		log.Warn("no energy trace", zap.String("run", meta.ID), zap.Error(err))
	} else if h, ok := p.World.Dynamics().(dynamo.Hamiltonian); ok {
		energy = make([]float64, len(frames))
		for i, f := range frames {
			energy[i] = h.Energy(f.Q, f.V)
		}
	}

	player := viz.NewPlayer(meta.Model, traj.Names, frames, energy)
	_, err = tea.NewProgram(player, tea.WithAltScreen()).Run()
	return err
}

func exportRun(cmd *cobra.Command, args []string) (err error) {
	meta, traj, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outFile != "" {
		f, cerr := os.Create(outFile)
		if cerr != nil {
			return cerr
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}
	switch exportFormat {
	case "json":
		err = storage.ExportJSON(out, meta, traj)
	case "svg":
		err = storage.ExportSVG(out, traj, 800, 400)
	default:
		err = fmt.Errorf("unknown export format: %s", exportFormat)
	}
	if err != nil {
		return err
	}
	if outFile != "" {
		fmt.Fprintf(os.Stderr, "exported to %s\n", outFile)
	}
	return nil
}

func deleteRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	models := registry.ListModels()
	if len(args) > 0 {
		models = args
	}
	found := false
	for _, model := range models {
		presets := config.ListPresets(model)
		if len(presets) == 0 {
			continue
		}
		found = true
		fmt.Printf("presets for %s:\n", model)
		for _, p := range presets {
			fmt.Printf("  %s\n", p)
		}
	}
	if !found {
		fmt.Printf("no presets for model: %s\n", strings.Join(models, ", "))
	}
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tDESCRIPTION\tPRESETS")
	for _, name := range registry.ListModels() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, registry.Describe(name), strings.Join(config.ListPresets(name), ", "))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nintegrators: %s (default %s)\n", strings.Join(registry.ListIntegrators(), ", "), config.DefaultIntegrator)
	return nil
}
