package stress

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xbst/lib/tree"
	"github.com/benz9527/xbst/xlog"
)

const (
	TrialContextKey  xlog.ContextKey = "trial"
	EngineContextKey xlog.ContextKey = "engine"
	SeedContextKey   xlog.ContextKey = "seed"
)

type runnerOption struct {
	workers  int
	trials   int
	keys     int
	seed     uint64
	engines  []tree.Engine
	logger   xlog.XLogger
	observer tree.Observer[int]
}

type RunnerOption func(opt *runnerOption) error

// WithWorkers sizes the pool. Zero means GOMAXPROCS.
func WithWorkers(workers int) RunnerOption {
	return func(opt *runnerOption) error {
		if workers < 0 {
			return fmt.Errorf("[stress] invalid workers %d", workers)
		}
		opt.workers = workers
		return nil
	}
}

func WithTrials(trials int) RunnerOption {
	return func(opt *runnerOption) error {
		if trials <= 0 {
			return fmt.Errorf("[stress] invalid trials %d", trials)
		}
		opt.trials = trials
		return nil
	}
}

func WithKeys(keys int) RunnerOption {
	return func(opt *runnerOption) error {
		if keys <= 0 {
			return fmt.Errorf("[stress] invalid keys %d", keys)
		}
		opt.keys = keys
		return nil
	}
}

// WithSeed fixes the base seed, trial i of every engine uses seed+i.
// Zero keeps the clock based seed.
func WithSeed(seed uint64) RunnerOption {
	return func(opt *runnerOption) error {
		if seed != 0 {
			opt.seed = seed
		}
		return nil
	}
}

func WithEngines(engines ...tree.Engine) RunnerOption {
	return func(opt *runnerOption) error {
		if len(engines) == 0 {
			return fmt.Errorf("[stress] no engine")
		}
		opt.engines = slices.Clone(engines)
		return nil
	}
}

func WithLogger(logger xlog.XLogger) RunnerOption {
	return func(opt *runnerOption) error {
		opt.logger = logger
		return nil
	}
}

// WithObserver attaches observers to every tree of every trial. They are
// called from several workers at once.
func WithObserver(observers ...tree.Observer[int]) RunnerOption {
	return func(opt *runnerOption) error {
		opt.observer = tree.MultiObserver[int](append([]tree.Observer[int]{opt.observer}, observers...)...)
		return nil
	}
}

// Runner spreads trials over an ants pool. Each trial owns its tree, the
// workers share nothing but the result slice.
type Runner struct {
	opt  runnerOption
	pool *ants.Pool
}

func NewRunner(opts ...RunnerOption) (*Runner, error) {
	opt := runnerOption{
		trials:  32,
		keys:    512,
		seed:    uint64(time.Now().UnixNano()),
		engines: []tree.Engine{tree.AVL, tree.RedBlack},
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(&opt); err != nil {
			return nil, err
		}
	}
	if opt.workers == 0 {
		opt.workers = runtime.GOMAXPROCS(0)
	}
	p, err := ants.NewPool(opt.workers, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}
	return &Runner{opt: opt, pool: p}, nil
}

func (r *Runner) Seed() uint64 {
	return r.opt.seed
}

// Report sums up a run. Results are ordered by engine, then trial ID.
type Report struct {
	Seed     uint64
	Results  []Result
	Ops      int
	Failed   int
	Canceled bool
	Elapsed  time.Duration
}

// Run blocks until every trial has finished or ctx is done. The returned
// error combines the failure of every trial.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	trials := make([]Trial, 0, r.opt.trials*len(r.opt.engines))
	for _, engine := range r.opt.engines {
		for i := 0; i < r.opt.trials; i++ {
			trials = append(trials, Trial{
				ID:     i,
				Engine: engine,
				Seed:   r.opt.seed + uint64(i),
				Keys:   r.opt.keys,
			})
		}
	}

	var treeOpts []tree.TreeOption[int]
	if r.opt.observer != nil {
		treeOpts = append(treeOpts, tree.WithObserver[int](r.opt.observer))
	}
	stop := func() bool {
		return ctx.Err() != nil
	}

	results := make([]Result, len(trials))
	var (
		wg        sync.WaitGroup
		submitErr error
	)
	for i := range trials {
		if stop() {
			break
		}
		trial := trials[i]
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			results[i] = trial.run(stop, treeOpts...)
			r.logResult(ctx, results[i])
		})
		if err != nil {
			wg.Done()
			submitErr = multierr.Append(submitErr, err)
			break
		}
	}
	wg.Wait()

	report := &Report{
		Seed:     r.opt.seed,
		Results:  make([]Result, 0, len(results)),
		Canceled: ctx.Err() != nil,
		Elapsed:  time.Since(start),
	}
	err := submitErr
	for _, res := range results {
		if res.Ops == 0 && res.Err == nil {
			// Never started.
			continue
		}
		report.Results = append(report.Results, res)
		report.Ops += res.Ops
		if res.Err != nil {
			report.Failed++
			err = multierr.Append(err, fmt.Errorf("%s trial %d seed %d: %w", res.Engine, res.ID, res.Seed, res.Err))
		}
	}
	if report.Canceled {
		err = multierr.Append(err, ctx.Err())
	}
	return report, err
}

func (r *Runner) logResult(ctx context.Context, res Result) {
	if r.opt.logger == nil {
		return
	}
	ctx = context.WithValue(ctx, TrialContextKey, res.ID)
	ctx = context.WithValue(ctx, EngineContextKey, res.Engine.String())
	ctx = context.WithValue(ctx, SeedContextKey, res.Seed)
	if res.Err != nil {
		r.opt.logger.ErrorContext(ctx, res.Err, "trial failed", zap.Int("ops", res.Ops))
		return
	}
	r.opt.logger.DebugContext(ctx, "trial passed",
		zap.Int("ops", res.Ops),
		zap.Int("inserted", res.Inserted),
		zap.Int("deleted", res.Deleted),
	)
}

// Release stops the pool. The runner cannot be used afterwards.
func (r *Runner) Release() {
	r.pool.Release()
}
