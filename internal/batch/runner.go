// Package batch verifies independent trajectory problems concurrently.
//
// Every job runs against its own World, kept in a worker map that is
// synchronised from the job templates before each run, and its own Shot.
// Nothing is shared between goroutines.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/dynshot/internal/cloneable"
	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/trajectory"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// Job is one verification. World is a template: it is never stepped.
// The Shot must not be shared with another job.
type Job struct {
	Name      string
	World     dynamo.World
	Shot      trajectory.Shot
	FD        trajectory.FiniteDifference
	Tolerance float64
}

type Result struct {
	Name         string
	Verification *trajectory.Verification
	Duration     time.Duration
	Err          error
}

func (r Result) Passed() bool {
	return r.Err == nil && r.Verification != nil && r.Verification.Passed
}

type Runner struct {
	workers int
	log     *zap.Logger
	worlds  *cloneable.Map[string, dynamo.World]
}

type Option func(*Runner)

func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		workers: DefaultWorkers,
		log:     zap.NewNop(),
		worlds:  cloneable.NewMap[string, dynamo.World](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// sync brings the worker worlds in line with the jobs: worlds of jobs seen
// in an earlier run are overwritten in place, new jobs get a clone and
// worlds of vanished jobs are released.
func (r *Runner) sync(jobs []Job) error {
	templates := cloneable.NewMap[string, dynamo.World]()
	for _, j := range jobs {
		if templates.Has(j.Name) {
			return fmt.Errorf("%w: duplicate job name %q", dynamo.ErrInvalidConfig, j.Name)
		}
		templates.Set(j.Name, j.World)
	}
	stats := r.worlds.CopyFrom(templates)
	r.log.Debug("worker worlds synced",
		zap.Int("copied", stats.Copied),
		zap.Int("cloned", stats.Cloned),
		zap.Int("cleared", stats.Cleared),
		zap.Int("dropped", stats.Dropped))
	return nil
}

// Run verifies every job and returns results in job order. A failing job
// does not stop the others; its error is recorded in its Result.
// Cancellation is observed between jobs, never inside one.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	if err := r.sync(jobs); err != nil {
		return nil, err
	}

	results := make([]Result, len(jobs))
	for i, job := range jobs {
		results[i].Name = job.Name
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, job := range jobs {
		if err := gctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		w, _ := r.worlds.Get(job.Name)
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			start := time.Now()
			v, err := trajectory.Verify(job.Shot, w, job.FD, job.Tolerance)
			results[i].Duration = time.Since(start)
			results[i].Verification = v
			results[i].Err = err
			r.logResult(results[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func (r *Runner) logResult(res Result) {
	if res.Err != nil {
		r.log.Warn("verification failed", zap.String("job", res.Name), zap.Error(res.Err))
		return
	}
	r.log.Info("verified",
		zap.String("job", res.Name),
		zap.Bool("passed", res.Verification.Passed),
		zap.Float64("max_rel", res.Verification.MaxRel()),
		zap.Duration("took", res.Duration))
}
