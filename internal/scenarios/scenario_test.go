package scenarios

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
	"github.com/xkilldash9x/soundpuff-e2e/internal/config"
)

func TestAbsence(t *testing.T) {
	timeout := &wait.TimeoutError{Message: "thing", Timeout: time.Second}
	notFound := &locate.NotFoundError{Timeout: time.Second, Cause: timeout}
	other := errors.New("click failed")

	tests := []struct {
		name   string
		err    error
		policy AbsencePolicy
		want   Status
	}{
		{"nil stays nil", nil, SkipOnAbsence, StatusPassed},
		{"not found skips", fmt.Errorf("open: %w", notFound), SkipOnAbsence, StatusSkipped},
		{"timeout skips", timeout, SkipOnAbsence, StatusSkipped},
		{"not found fails under fail policy", notFound, FailOnAbsence, StatusFailed},
		{"other errors never skip", other, SkipOnAbsence, StatusFailed},
		{"configuration errors never skip", &config.ConfigurationError{Reason: "x"}, SkipOnAbsence, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Absence(tt.err, tt.policy, "no data")
			assert.Equal(t, tt.want, statusOf(got))
			if tt.err != nil {
				assert.ErrorIs(t, got, tt.err)
			}
		})
	}
}

func TestSkipError(t *testing.T) {
	assert.Equal(t, "skipped: own profile", Skip("own profile").Error())
	assert.Equal(t, StatusSkipped, statusOf(fmt.Errorf("wrapped: %w", Skip("x"))))
	assert.Equal(t, StatusFailed, statusOf(Failf("count %d", 2)))

	// Absence only becomes a skip where a scenario asks for it.
	notFound := &locate.NotFoundError{Timeout: time.Second}
	assert.Equal(t, StatusFailed, statusOf(fmt.Errorf("add song to playlist: %w", notFound)))
}

func TestCatalogue(t *testing.T) {
	all := Catalogue()
	require.Len(t, all, 16)
	seen := make(map[string]bool)
	for _, sc := range all {
		assert.False(t, seen[sc.Name], "duplicate scenario %s", sc.Name)
		seen[sc.Name] = true
		assert.NotEmpty(t, sc.Description)
		assert.NotNil(t, sc.Run)
	}
	guest, err := Select(all, []string{"guest-protected-routes", "home-title"})
	require.NoError(t, err)
	for _, sc := range guest {
		assert.False(t, sc.NeedsLogin, "%s runs as a guest", sc.Name)
	}
}

func TestSelect(t *testing.T) {
	all := Catalogue()

	got, err := Select(all, []string{"search", "home-title"})
	require.NoError(t, err)
	names := func(list []Scenario) []string {
		var out []string
		for _, s := range list {
			out = append(out, s.Name)
		}
		return out
	}
	if diff := cmp.Diff([]string{"home-title", "search"}, names(got)); diff != "" {
		t.Errorf("selection not in catalogue order (-want +got):\n%s", diff)
	}

	got, err = Select(all, nil)
	require.NoError(t, err)
	assert.Len(t, got, len(all))

	_, err = Select(all, []string{"search", "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

// noBrowser runs scenarios without launching Chrome.
func noBrowser(context.Context, *config.Config, *zap.Logger) (*session.Session, error) {
	return nil, nil
}

func testRunner(t *testing.T, parallelism int, factory SessionFactory) *Runner {
	cfg := config.NewDefaultConfig()
	cfg.Run.Parallelism = parallelism
	cfg.Run.ScenarioTimeout = 5 * time.Second
	cfg.Artifacts.Dir = t.TempDir()
	return NewRunnerWithFactory(cfg, zaptest.NewLogger(t), factory)
}

func TestRunnerOutcomes(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := testRunner(t, 2, noBrowser)
	list := []Scenario{
		{Name: "passes", Run: func(context.Context, *Env) error { return nil }},
		{Name: "fails", Run: func(context.Context, *Env) error { return Failf("nope") }},
		{Name: "skips", Run: func(context.Context, *Env) error { return Skip("no data") }},
		{Name: "panics", Run: func(_ context.Context, env *Env) error {
			_ = env.App.Timeout()
			return nil
		}},
		{Name: "needs login", NeedsLogin: true, Run: func(context.Context, *Env) error { return nil }},
	}

	results, err := r.Run(t.Context(), list)
	require.NoError(t, err)
	require.Len(t, results, len(list))

	statuses := make(map[string]Status)
	for i, res := range results {
		assert.Equal(t, list[i].Name, res.Name, "results keep input order")
		statuses[res.Name] = res.Status
	}
	want := map[string]Status{
		"passes":      StatusPassed,
		"fails":       StatusFailed,
		"skips":       StatusSkipped,
		"panics":      StatusFailed,
		"needs login": StatusFailed,
	}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("statuses (-want +got):\n%s", diff)
	}
	assert.Contains(t, results[3].Err.Error(), "panicked")
	assert.Equal(t, Summary{Passed: 1, Failed: 3, Skipped: 1}, Summarize(results))
	assert.False(t, Summarize(results).OK())
	assert.NotEmpty(t, r.RunID())
}

func TestRunnerParallelismLimit(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := testRunner(t, 2, noBrowser)
	var running, peak atomic.Int32
	sc := Scenario{Run: func(context.Context, *Env) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		return nil
	}}
	list := make([]Scenario, 6)
	for i := range list {
		list[i] = sc
		list[i].Name = fmt.Sprintf("s%d", i)
	}

	results, err := r.Run(t.Context(), list)
	require.NoError(t, err)
	assert.True(t, Summarize(results).OK())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunnerSessionStartFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	boom := errors.New("chrome missing")
	r := testRunner(t, 1, func(context.Context, *config.Config, *zap.Logger) (*session.Session, error) {
		return nil, boom
	})
	ran := false
	results, err := r.Run(t.Context(), []Scenario{{Name: "x", Run: func(context.Context, *Env) error { ran = true; return nil }}})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, boom)
}

func TestRunnerCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := testRunner(t, 1, noBrowser)
	ctx, cancel := context.WithCancel(t.Context())
	list := []Scenario{
		{Name: "cancels", Run: func(ctx context.Context, _ *Env) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}},
		{Name: "never runs", Run: func(context.Context, *Env) error { return nil }},
	}

	results, err := r.Run(ctx, list)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, "never runs", results[1].Name)
	assert.Equal(t, StatusSkipped, results[1].Status)
}
