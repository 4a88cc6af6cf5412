package locate_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/browsertest"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
)

const page = `<!doctype html>
<html><body>
  <h1 class="text-3xl">My Playlists</h1>
  <form id="login">
    <input id="login-email" type="email">
    <input id="login-password" type="password">
    <button type="button">Cancel</button>
    <button type="submit">Sign in</button>
  </form>
  <form id="other"><button type="submit">Other</button></form>
  <p class="hint" style="display:none">hidden hint</p>
  <p class="hint">visible hint</p>
  <div id="late-slot"></div>
  <script>
    setTimeout(() => {
      const s = document.createElement('span');
      s.setAttribute('data-slot', 'alert');
      s.textContent = 'Invalid credentials';
      document.getElementById('late-slot').appendChild(s);
    }, 300);
  </script>
</body></html>`

func TestLocateInBrowser(t *testing.T) {
	browsertest.Require(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	}))
	t.Cleanup(srv.Close)

	s := browsertest.NewSession(t, browsertest.Config(t, srv.URL))
	ctx := browsertest.Context(t)
	require.NoError(t, s.Navigate(ctx, srv.URL))
	opts := locate.Options{Timeout: 3 * time.Second, Interval: 50 * time.Millisecond}

	text := func(t *testing.T, res locate.Result) string {
		t.Helper()
		var out string
		require.NoError(t, s.CallOn(ctx, res.First(), "function() { return this.textContent.trim(); }", &out))
		return out
	}

	t.Run("each strategy kind", func(t *testing.T) {
		for _, st := range []locate.Strategy{
			locate.CSS("#login-email"),
			locate.ID("login-email"),
			locate.XPath("//input[@type='email']"),
			locate.Attr("input", "id", "login-email"),
		} {
			res, err := locate.Find(ctx, s, opts, st)
			require.NoError(t, err, st.String())
			assert.True(t, res.Found, st.String())
		}
		res, err := locate.Find(ctx, s, opts, locate.Text("h1", "My Playlists"))
		require.NoError(t, err)
		assert.Equal(t, "My Playlists", text(t, res))
	})

	t.Run("fallback after a miss", func(t *testing.T) {
		res, err := locate.Find(ctx, s, opts, locate.CSS("h1.page-title"), locate.ExactText("h1", "My Playlists"))
		require.NoError(t, err)
		require.True(t, res.Found)
		assert.Equal(t, locate.KindText, res.Strategy.Kind)
	})

	t.Run("submit button scoped to the enclosing form", func(t *testing.T) {
		email, err := locate.Locate(ctx, s, opts, locate.ID("login-email"))
		require.NoError(t, err)

		scoped := opts
		scoped.Scope = &email
		form, err := locate.Locate(ctx, s, scoped, locate.XPath("ancestor::form[1]"))
		require.NoError(t, err)

		scoped.Scope = &form
		res, err := locate.Find(ctx, s, scoped, locate.XPath(".//button[@type='submit']"))
		require.NoError(t, err)
		require.Len(t, res.Elements, 1)
		assert.Equal(t, "Sign in", text(t, res))
	})

	t.Run("visible filter", func(t *testing.T) {
		visible := opts
		visible.Visible = true
		res, err := locate.Find(ctx, s, visible, locate.CSS("p.hint"))
		require.NoError(t, err)
		require.Len(t, res.Elements, 1)
		assert.Equal(t, "visible hint", text(t, res))
	})

	t.Run("waits for late elements", func(t *testing.T) {
		require.NoError(t, s.Reload(ctx))
		el, err := locate.Locate(ctx, s, opts, locate.CSS("[data-slot='alert']"))
		require.NoError(t, err)
		assert.False(t, el.IsZero())
	})

	t.Run("invalid css is permanent", func(t *testing.T) {
		start := time.Now()
		_, err := locate.Locate(ctx, s, opts, locate.CSS("div["))
		var invalid *locate.InvalidPatternError
		require.ErrorAs(t, err, &invalid)
		assert.Less(t, time.Since(start), opts.Timeout)
	})

	t.Run("not found", func(t *testing.T) {
		short := opts
		short.Timeout = 200 * time.Millisecond
		_, err := locate.Locate(ctx, s, short, locate.CSS("#nope"), locate.Text("button", "Nope"))
		var nf *locate.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}
