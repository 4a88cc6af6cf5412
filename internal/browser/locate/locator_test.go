package locate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
)

// fakeQuerier answers queries by matching a marker in the generated script.
type fakeQuerier struct {
	mu      sync.Mutex
	answer  func(script string, call int) ([]session.Element, error)
	calls   int
	scripts []string
	scoped  int
}

func (f *fakeQuerier) QueryAll(ctx context.Context, expression string) ([]session.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.scripts = append(f.scripts, expression)
	return f.answer(expression, f.calls)
}

func (f *fakeQuerier) QueryFrom(ctx context.Context, el session.Element, fn string) ([]session.Element, error) {
	f.mu.Lock()
	f.scoped++
	f.mu.Unlock()
	return f.QueryAll(ctx, fn)
}

func elems(ids ...string) []session.Element {
	out := make([]session.Element, len(ids))
	for i, id := range ids {
		out[i] = session.Element{ObjectID: runtime.RemoteObjectID("obj-" + id), Description: id}
	}
	return out
}

func fastOpts(t *testing.T, timeout time.Duration) Options {
	return Options{Timeout: timeout, Interval: 5 * time.Millisecond, Logger: zaptest.NewLogger(t)}
}

func TestLocate_FirstStrategyWins(t *testing.T) {
	q := &fakeQuerier{answer: func(script string, _ int) ([]session.Element, error) {
		switch {
		case strings.Contains(script, `"#primary"`):
			return elems("primary-a", "primary-b"), nil
		case strings.Contains(script, `"#fallback"`):
			return elems("fallback"), nil
		}
		return nil, nil
	}}
	el, err := Locate(context.Background(), q, fastOpts(t, time.Second), CSS("#primary"), CSS("#fallback"))
	require.NoError(t, err)
	assert.Equal(t, "primary-a", el.Description, "ties resolve to document order")
	assert.Equal(t, 1, q.calls, "fallbacks are not queried once the primary matches")
}

func TestLocate_FallsBackWithinOneRound(t *testing.T) {
	q := &fakeQuerier{answer: func(script string, _ int) ([]session.Element, error) {
		if strings.Contains(script, "My Playlists") {
			return elems("heading"), nil
		}
		return nil, nil
	}}
	res, err := Find(context.Background(), q, fastOpts(t, 0), CSS("h1.title"), Text("h1", "My Playlists"))
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, KindText, res.Strategy.Kind)
	assert.Equal(t, 2, q.calls)
}

func TestLocate_ErrorsCountAsNoMatch(t *testing.T) {
	q := &fakeQuerier{answer: func(script string, call int) ([]session.Element, error) {
		if strings.Contains(script, `"#flaky"`) {
			return nil, errors.New("Cannot find context with specified id")
		}
		if call >= 4 {
			return elems("late"), nil
		}
		return nil, nil
	}}
	el, err := Locate(context.Background(), q, fastOpts(t, time.Second), CSS("#flaky"), CSS("#late"))
	require.NoError(t, err)
	assert.Equal(t, "late", el.Description)
}

func TestLocate_NotFound(t *testing.T) {
	transient := errors.New("execution context was destroyed")
	q := &fakeQuerier{answer: func(script string, _ int) ([]session.Element, error) {
		if strings.Contains(script, `"#broken"`) {
			return nil, transient
		}
		return nil, nil
	}}
	start := time.Now()
	_, err := Locate(context.Background(), q, fastOpts(t, 80*time.Millisecond), CSS("#missing"), CSS("#broken"))
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Len(t, nf.Strategies, 2)
	assert.Equal(t, transient, nf.LastErrs["css=#broken"])
	assert.True(t, wait.IsTimeout(err), "NotFoundError unwraps to the poller timeout")
	assert.Contains(t, err.Error(), "css=#missing")
}

func TestLocate_PermanentErrors(t *testing.T) {
	t.Run("invalid xpath fails before querying", func(t *testing.T) {
		q := &fakeQuerier{answer: func(string, int) ([]session.Element, error) { return nil, nil }}
		_, err := Locate(context.Background(), q, fastOpts(t, time.Second), XPath("//div[("))
		var invalid *InvalidPatternError
		require.ErrorAs(t, err, &invalid)
		assert.Zero(t, q.calls)
	})

	t.Run("invalid css reported by the browser", func(t *testing.T) {
		q := &fakeQuerier{answer: func(string, int) ([]session.Element, error) {
			return nil, errors.New("SyntaxError: Failed to execute 'querySelectorAll': 'div[' is not a valid selector.")
		}}
		_, err := Locate(context.Background(), q, fastOpts(t, time.Second), CSS("div["))
		var invalid *InvalidPatternError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, 1, q.calls)
	})

	t.Run("stale scope", func(t *testing.T) {
		q := &fakeQuerier{answer: func(string, int) ([]session.Element, error) { return nil, session.ErrStaleElement }}
		scope := elems("form")[0]
		opts := fastOpts(t, time.Second)
		opts.Scope = &scope
		_, err := Locate(context.Background(), q, opts, XPath(".//button[@type='submit']"))
		assert.ErrorIs(t, err, session.ErrStaleElement)
		assert.Equal(t, 1, q.scoped)
	})
}

func TestLocate_InvalidPatternFallsBack(t *testing.T) {
	badCSS := errors.New("SyntaxError: Failed to execute 'querySelectorAll': 'div[' is not a valid selector.")

	t.Run("browser rejects the primary", func(t *testing.T) {
		q := &fakeQuerier{answer: func(script string, _ int) ([]session.Element, error) {
			if strings.Contains(script, `"div["`) {
				return nil, badCSS
			}
			if strings.Contains(script, `"#fallback"`) {
				return elems("fallback"), nil
			}
			return nil, nil
		}}
		el, err := Locate(context.Background(), q, fastOpts(t, time.Second), CSS("div["), CSS("#fallback"))
		require.NoError(t, err)
		assert.Equal(t, "fallback", el.Description)
		assert.Equal(t, 2, q.calls)
	})

	t.Run("primary fails to compile", func(t *testing.T) {
		q := &fakeQuerier{answer: func(script string, _ int) ([]session.Element, error) { return elems("button"), nil }}
		el, err := Locate(context.Background(), q, fastOpts(t, time.Second), XPath("//div[("), CSS("button"))
		require.NoError(t, err)
		assert.Equal(t, "button", el.Description)
		assert.Equal(t, 1, q.calls, "the uncompilable pattern never reaches the browser")
	})

	t.Run("invalid primary recorded when nothing matches", func(t *testing.T) {
		q := &fakeQuerier{answer: func(script string, _ int) ([]session.Element, error) {
			if strings.Contains(script, `"div["`) {
				return nil, badCSS
			}
			return nil, nil
		}}
		_, err := Locate(context.Background(), q, fastOpts(t, 40*time.Millisecond), CSS("div["), CSS("#missing"))
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		var invalid *InvalidPatternError
		require.ErrorAs(t, nf.LastErrs["css=div["], &invalid)
		assert.Greater(t, q.calls, 2, "the valid fallback keeps being polled")
	})

	t.Run("every strategy invalid", func(t *testing.T) {
		q := &fakeQuerier{answer: func(string, int) ([]session.Element, error) { return nil, badCSS }}
		_, err := Locate(context.Background(), q, fastOpts(t, time.Second), CSS("div["), XPath("//div[("))
		var invalid *InvalidPatternError
		require.ErrorAs(t, err, &invalid)
		assert.False(t, wait.IsTimeout(err))
		assert.Equal(t, 1, q.calls)
	})

	t.Run("gone ignores an invalid strategy", func(t *testing.T) {
		q := &fakeQuerier{answer: func(string, int) ([]session.Element, error) { return nil, nil }}
		require.NoError(t, Gone(context.Background(), q, fastOpts(t, time.Second), XPath("//div[("), Text("p", "hello")))
	})
}

func TestLocate_ScopeAndVisibility(t *testing.T) {
	q := &fakeQuerier{answer: func(string, int) ([]session.Element, error) { return elems("submit"), nil }}
	scope := elems("form")[0]
	opts := fastOpts(t, time.Second)
	opts.Scope = &scope
	opts.Visible = true

	_, err := Locate(context.Background(), q, opts, XPath(".//button[@type='submit']"))
	require.NoError(t, err)
	require.Len(t, q.scripts, 1)
	assert.Contains(t, q.scripts[0], "(this)", "scoped queries use the element as root")
	assert.Contains(t, q.scripts[0], ".filter(", "visible filter applied")
	assert.Equal(t, 1, q.scoped)
}

func TestAllAndCount(t *testing.T) {
	q := &fakeQuerier{answer: func(string, int) ([]session.Element, error) { return elems("a", "b", "c"), nil }}
	all, err := All(context.Background(), q, fastOpts(t, time.Second), CSS("div.flex.gap-3"))
	require.NoError(t, err)

	got := make([]string, len(all))
	for i, e := range all {
		got[i] = e.Description
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}

	n, err := Count(context.Background(), q, fastOpts(t, 0), CSS("div.flex.gap-3"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestGone(t *testing.T) {
	q := &fakeQuerier{answer: func(_ string, call int) ([]session.Element, error) {
		if call < 3 {
			return elems("comment"), nil
		}
		return nil, nil
	}}
	require.NoError(t, Gone(context.Background(), q, fastOpts(t, time.Second), Text("p", "hello")))

	stuck := &fakeQuerier{answer: func(string, int) ([]session.Element, error) { return elems("comment"), nil }}
	err := Gone(context.Background(), stuck, fastOpts(t, 30*time.Millisecond), Text("p", "hello"))
	assert.True(t, wait.IsTimeout(err))
}

func TestLocate_NoStrategies(t *testing.T) {
	_, err := Find(context.Background(), &fakeQuerier{}, Options{})
	assert.Error(t, err)
}
