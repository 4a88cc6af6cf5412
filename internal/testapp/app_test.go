package testapp

import (
	"bytes"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, opts Options) (*App, *client) {
	t.Helper()
	app, srv := Start(t, opts)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return app, &client{t: t, base: srv.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path, body string) (*http.Response, string) {
	c.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	require.NoError(c.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	return res, string(b)
}

func (c *client) page(path string) (*http.Response, *html.Node) {
	c.t.Helper()
	res, body := c.do(http.MethodGet, path, "")
	doc, err := htmlquery.Parse(bytes.NewBufferString(body))
	require.NoError(c.t, err)
	return res, doc
}

func (c *client) login(email, password string) *http.Response {
	c.t.Helper()
	res, _ := c.do(http.MethodPost, "/api/login", `{"email":"`+email+`","password":"`+password+`"}`)
	return res
}

func has(t *testing.T, doc *html.Node, expr string) *html.Node {
	t.Helper()
	n, err := htmlquery.Query(doc, expr)
	require.NoError(t, err, expr)
	require.NotNil(t, n, "expected a match for %s", expr)
	return n
}

func TestGuestRoutes(t *testing.T) {
	_, c := newClient(t, DefaultOptions())

	res, doc := c.page("/app/search")
	assert.Equal(t, "/auth", res.Request.URL.Path, "protected pages redirect guests to the login page")
	has(t, doc, "//input[@id='login-email']")
	has(t, doc, "//form[@data-form='login']//button[@type='submit']")

	_, doc = c.page("/")
	assert.Contains(t, htmlquery.InnerText(has(t, doc, "//title")), "SoundPuff")
	has(t, doc, "//h2[contains(text(), 'Share Your Music')]")
	has(t, doc, "//nav/button")

	res, _ = c.do(http.MethodPost, "/api/playlists", `{"title":"x","songs":[1]}`)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLogin(t *testing.T) {
	opts := DefaultOptions()
	_, c := newClient(t, opts)

	res := c.login(opts.Email, "wrong")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = c.login(strings.ToUpper(opts.Email), opts.Password)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, doc := c.page("/app/home")
	assert.Equal(t, "/app/home", res.Request.URL.Path)
	has(t, doc, "//h1[contains(text(), 'Your Feed')]/..//h3")
	has(t, doc, "//button[contains(normalize-space(), 'Play Now')]")
}

func TestPlaylistLifecycle(t *testing.T) {
	opts := DefaultOptions()
	app, c := newClient(t, opts)
	require.Equal(t, http.StatusOK, c.login(opts.Email, opts.Password).StatusCode)

	res, _ := c.do(http.MethodPost, "/api/playlists", `{"title":"","songs":[1]}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, "title is required")

	res, _ = c.do(http.MethodPost, "/api/playlists", `{"title":"Road Trip","description":"d","songs":[1]}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	p, ok := app.PlaylistByTitle("Road Trip")
	require.True(t, ok)
	assert.Equal(t, opts.Username, p.Owner)
	assert.Equal(t, 1, app.PlaylistCount(opts.Username))

	_, doc := c.page("/app/library")
	has(t, doc, "//h1[contains(normalize-space(.), 'My Playlists')]")
	has(t, doc, "//template[@id='library-cards']")

	id := strconv.Itoa(p.ID)
	_, doc = c.page("/app/playlist/" + id)
	has(t, doc, "//span[contains(normalize-space(), 'likes')]/preceding-sibling::button[1][@data-action='like-playlist']")
	has(t, doc, "//div[contains(@class,'flex items-center gap-4 mt-6')]//button[normalize-space()='Delete']")
	has(t, doc, "//div[contains(@class, 'group') and contains(@class, 'grid-cols')]")
	has(t, doc, "//button[@aria-label='Open song menu']")
	has(t, doc, "//input[@placeholder='Add a comment...']/following-sibling::button")
	has(t, doc, "//div[contains(@class, 'fixed') and contains(@class, 'bottom-0')]")

	_, body := c.do(http.MethodPost, "/api/playlists/"+id+"/like", "")
	assert.Contains(t, body, `"likes":1`)
	_, body = c.do(http.MethodPost, "/api/playlists/"+id+"/like", "")
	assert.Contains(t, body, `"likes":0`, "liking twice toggles back")

	_, body = c.do(http.MethodPost, "/api/playlists/"+id+"/songs", `{"song":1}`)
	assert.Contains(t, body, `"added":false`)
	_, body = c.do(http.MethodPost, "/api/playlists/"+id+"/songs", `{"song":2}`)
	assert.Contains(t, body, `"added":true`)

	res, _ = c.do(http.MethodDelete, "/api/playlists/"+id, "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	_, ok = app.PlaylistByTitle("Road Trip")
	assert.False(t, ok)
}

func TestComments(t *testing.T) {
	opts := DefaultOptions()
	app, c := newClient(t, opts)
	require.Equal(t, http.StatusOK, c.login(opts.Email, opts.Password).StatusCode)
	p, ok := app.PlaylistByTitle("Morning Mix")
	require.True(t, ok)
	id := strconv.Itoa(p.ID)

	_, body := c.do(http.MethodPost, "/api/playlists/"+id+"/comments", `{"text":"first!"}`)
	doc, err := htmlquery.Parse(strings.NewReader(body))
	require.NoError(t, err)
	comment := has(t, doc, "//p[normalize-space()='first!']/ancestor::div[contains(@class,'flex gap-3')]")
	has(t, comment, ".//button[@aria-label='Like comment']/following-sibling::span[1]")
	del := has(t, comment, ".//div[contains(@class,'absolute') and contains(@class,'top-2')]//button[normalize-space()='Delete']")

	commentID := htmlquery.SelectAttr(del, "data-id")
	_, body = c.do(http.MethodPost, "/api/comments/"+commentID+"/like", "")
	assert.Contains(t, body, `"likes":1`)

	res, _ := c.do(http.MethodDelete, "/api/comments/"+commentID, "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	p, _ = app.PlaylistByTitle("Morning Mix")
	assert.Empty(t, p.Comments)
}

func TestSearchAndFollow(t *testing.T) {
	opts := DefaultOptions()
	app, c := newClient(t, opts)
	require.Equal(t, http.StatusOK, c.login(opts.Email, opts.Password).StatusCode)

	_, body := c.do(http.MethodGet, "/app/search/results?q=pop&tab=all", "")
	doc, err := htmlquery.Parse(strings.NewReader(body))
	require.NoError(t, err)
	has(t, doc, "//h2[contains(text(), 'Songs')]")
	has(t, doc, "//h2[contains(text(), 'Playlists')]")

	_, body = c.do(http.MethodGet, "/app/search/results?q=lura&tab=users", "")
	doc, err = htmlquery.Parse(strings.NewReader(body))
	require.NoError(t, err)
	user := has(t, doc, "//div[contains(@class, 'bg-gray-900')]//p")
	assert.Equal(t, "lura", htmlquery.InnerText(user))
	assert.Nil(t, htmlquery.FindOne(doc, "//h2[contains(text(), 'Songs')]"), "users tab hides other sections")

	_, body = c.do(http.MethodGet, "/app/search/results?q=zzz", "")
	assert.Contains(t, body, "No results found")

	_, doc = c.page("/app/user/lura")
	has(t, doc, "//button[normalize-space()='Follow']")
	_, body = c.do(http.MethodPost, "/api/users/lura/follow", "")
	assert.Contains(t, body, `"following":true`)
	assert.True(t, app.IsFollowing(opts.Username, "lura"))

	_, doc = c.page("/app/user/" + opts.Username)
	has(t, doc, "//button[contains(normalize-space(), 'Edit Profile')]")
}

func TestEditorMarkup(t *testing.T) {
	opts := DefaultOptions()
	opts.SongsOnSearch = true
	_, c := newClient(t, opts)
	require.Equal(t, http.StatusOK, c.login(opts.Email, opts.Password).StatusCode)

	_, doc := c.page("/app/create-playlist")
	has(t, doc, "//input[@id='title']")
	has(t, doc, "//textarea[@id='description']")
	has(t, doc, "//input[@placeholder='Search songs...']")
	has(t, doc, "//div[@id='song-picker'][@data-on-search='true']")
	has(t, doc, "//span[contains(normalize-space(.), 'selected')]")
	has(t, doc, "//form//button[@type='submit' and contains(normalize-space(.),'Create Playlist')]")
}
