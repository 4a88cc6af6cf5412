package scenarios

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/config"
	"github.com/xkilldash9x/soundpuff-e2e/internal/observability"
	"github.com/xkilldash9x/soundpuff-e2e/internal/soundpuff"
)

// closeTimeout bounds closing a scenario's browser after it finished.
const closeTimeout = 10 * time.Second

// Result is the outcome of one scenario run.
type Result struct {
	Name        string
	Status      Status
	Duration    time.Duration
	Err         error
	Screenshots []string
	// PageSource is the saved DOM of a failed scenario, if any.
	PageSource string
	// PageErrors are uncaught exceptions the app threw before a failure.
	PageErrors []string
}

// Summary counts results by status.
type Summary struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Summarize counts results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// OK reports whether nothing failed.
func (s Summary) OK() bool { return s.Failed == 0 }

// SessionFactory starts the browser session a scenario runs in.
type SessionFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*session.Session, error)

// Runner executes scenarios, each in a fresh browser session.
type Runner struct {
	cfg        *config.Config
	logger     *zap.Logger
	newSession SessionFactory
	runID      string
}

// NewRunner builds a runner that launches Chrome per scenario.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return NewRunnerWithFactory(cfg, logger, session.New)
}

// NewRunnerWithFactory builds a runner with a custom session factory.
func NewRunnerWithFactory(cfg *config.Config, logger *zap.Logger, factory SessionFactory) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		logger:     logger.Named("runner"),
		newSession: factory,
		runID:      uuid.NewString(),
	}
}

// RunID identifies this runner's run in logs and reports.
func (r *Runner) RunID() string { return r.runID }

// Run executes the scenarios with up to run.parallelism at a time and
// returns their results in input order. A scenario failing never stops the
// others; only cancellation of ctx does, in which case ctx's error is
// returned alongside the results gathered so far.
func (r *Runner) Run(ctx context.Context, list []Scenario) ([]Result, error) {
	results := make([]Result, len(list))
	limit := r.cfg.Run.Parallelism
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	r.logger.Info("Starting run.", zap.String("run_id", r.runID), zap.Int("scenarios", len(list)), zap.Int("parallelism", limit))

	for i, sc := range list {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Go blocks while the limit is reached, so the run may have
			// been cancelled by the time this starts.
			if gctx.Err() != nil {
				return nil
			}
			results[i] = r.runOne(gctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].Name == "" {
				results[i] = Result{Name: list[i].Name, Status: StatusSkipped, Err: &SkipError{Reason: "run cancelled", Err: err}}
			}
		}
		return results, err
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, sc Scenario) Result {
	log := r.logger.With(zap.String("scenario", sc.Name))
	start := time.Now()
	run := ctx
	if r.cfg.Run.ScenarioTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Run.ScenarioTimeout)
		defer cancel()
	}

	env := &Env{Config: r.cfg, Logger: log}
	err := r.withSession(ctx, sc.Name, env, func() error {
		err := r.execute(ctx, sc, env)
		// A scenario that ran out of time still gets its artifacts; only a
		// cancelled run skips them.
		if statusOf(err) == StatusFailed && run.Err() == nil {
			env.captureFailure(ctx, sc.Name+"-failure", r.cfg.Artifacts.ScreenshotOnFailure)
		}
		return err
	})

	res := Result{
		Name:        sc.Name,
		Status:      statusOf(err),
		Duration:    time.Since(start),
		Err:         err,
		Screenshots: env.screenshots,
		PageSource:  env.pageSource,
		PageErrors:  env.pageErrors,
	}
	logResult(log, res)
	return res
}

// withSession starts the scenario's browser, runs fn and closes the browser
// on every path.
func (r *Runner) withSession(ctx context.Context, name string, env *Env, fn func() error) error {
	s, err := r.newSession(ctx, r.cfg, env.Logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	if s != nil {
		env.Logger = observability.ForScenario(r.logger, name, s.ID())
		env.App = soundpuff.New(s)
		defer func() {
			cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := s.Close(cctx); err != nil {
				env.Logger.Warn("Failed to close browser session.", zap.Error(err))
			}
		}()
	}
	return fn()
}

// execute logs in when needed and runs the scenario. A panic is recovered
// and reported as a failure.
func (r *Runner) execute(ctx context.Context, sc Scenario, env *Env) (err error) {
	defer func() {
		if p := recover(); p != nil {
			env.Logger.Error("Scenario panicked.", zap.Any("panicValue", p), zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("scenario panicked: %v", p)
		}
	}()

	if sc.NeedsLogin {
		if env.App == nil {
			return errors.New("scenario needs a browser to log in")
		}
		creds, err := env.App.Login(ctx)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		env.Credentials = creds
	}

	env.Logger.Info("Running scenario.")
	return sc.Run(ctx, env)
}

func logResult(log *zap.Logger, res Result) {
	fields := []zap.Field{zap.String("status", string(res.Status)), zap.Duration("duration", res.Duration)}
	switch res.Status {
	case StatusPassed:
		log.Info("Scenario passed.", fields...)
	case StatusSkipped:
		log.Info("Scenario skipped.", append(fields, zap.Error(res.Err))...)
	default:
		log.Error("Scenario failed.", append(fields, zap.Error(res.Err))...)
	}
}
