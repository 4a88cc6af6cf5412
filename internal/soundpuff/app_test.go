package soundpuff_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/browsertest"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
	"github.com/xkilldash9x/soundpuff-e2e/internal/soundpuff"
	"github.com/xkilldash9x/soundpuff-e2e/internal/testapp"
)

// loggedIn starts a fake app and a browser logged into it.
func loggedIn(t *testing.T, opts testapp.Options) (*testapp.App, *soundpuff.App, context.Context) {
	t.Helper()
	browsertest.Require(t)
	fake, srv := testapp.Start(t, opts)
	cfg := browsertest.Config(t, srv.URL)
	cfg.Credentials.Email = opts.Email
	cfg.Credentials.Password = opts.Password

	app := soundpuff.New(browsertest.NewSession(t, cfg))
	ctx := browsertest.Context(t)
	_, err := app.Login(ctx)
	require.NoError(t, err)
	return fake, app, ctx
}

func TestCreateAndOpenPlaylist(t *testing.T) {
	opts := testapp.DefaultOptions()
	opts.LibraryDelay = 300 * time.Millisecond
	fake, app, ctx := loggedIn(t, opts)

	require.NoError(t, app.CreatePlaylist(ctx, "Road Trip", "for the car"))
	p, ok := fake.PlaylistByTitle("Road Trip")
	require.True(t, ok)
	assert.Equal(t, "for the car", p.Description)
	assert.Len(t, p.Songs, 1)

	require.NoError(t, app.OpenPlaylistFromLibrary(ctx, "Road Trip"))
	require.NoError(t, app.DeletePlaylist(ctx))
	_, ok = fake.PlaylistByTitle("Road Trip")
	assert.False(t, ok)
}

func TestCreatePlaylist_SongsOnlyAfterSearch(t *testing.T) {
	opts := testapp.DefaultOptions()
	opts.SongsOnSearch = true
	fake, app, ctx := loggedIn(t, opts)
	app.PickerWait = 500 * time.Millisecond

	require.NoError(t, app.CreatePlaylist(ctx, "Searched", ""))
	p, ok := fake.PlaylistByTitle("Searched")
	require.True(t, ok)
	assert.NotEmpty(t, p.Songs)
}

func TestLikeToggle(t *testing.T) {
	_, app, ctx := loggedIn(t, testapp.DefaultOptions())
	require.NoError(t, app.OpenAnyPlaylist(ctx))

	before, after, err := app.ToggleLike(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	_, back, err := app.ToggleLike(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, back)
}

func TestComments(t *testing.T) {
	_, app, ctx := loggedIn(t, testapp.DefaultOptions())
	require.NoError(t, app.OpenAnyPlaylist(ctx))

	_, err := app.AddComment(ctx, "sent with enter", soundpuff.SubmitEnter)
	require.NoError(t, err)
	_, err = app.AddComment(ctx, "it's sent with the button", soundpuff.SubmitButton)
	require.NoError(t, err)
	found, err := app.PageContains(ctx, "it's sent with the button")
	require.NoError(t, err)
	assert.True(t, found)

	before, after, err := app.LikeComment(ctx, "sent with enter")
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	require.NoError(t, app.DeleteComment(ctx, "sent with enter"))
	found, err = app.PageContains(ctx, "sent with enter")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAddSongToAnotherPlaylist(t *testing.T) {
	fake, app, ctx := loggedIn(t, testapp.DefaultOptions())
	require.NoError(t, app.CreatePlaylist(ctx, "Target", ""))
	require.NoError(t, app.OpenAnyPlaylist(ctx))

	msg, err := app.AddFirstSongToPlaylist(ctx, "Target")
	require.NoError(t, err)
	// Seeded playlists and new ones both start with the first song.
	assert.Contains(t, msg, "already in that playlist")
	p, _ := fake.PlaylistByTitle("Target")
	assert.Len(t, p.Songs, 1)
}

func TestPlayer(t *testing.T) {
	_, app, ctx := loggedIn(t, testapp.DefaultOptions())
	require.NoError(t, app.OpenAnyPlaylist(ctx))
	require.NoError(t, app.PlayFirstSong(ctx))

	bar, err := app.PlayerBar(ctx)
	require.NoError(t, err)
	playing, err := app.Playing(ctx, bar)
	require.NoError(t, err)
	assert.True(t, playing)

	require.NoError(t, app.SetPlaying(ctx, bar, false))
	require.NoError(t, app.SetPlaying(ctx, bar, true))
}

func TestSearchAndFollow(t *testing.T) {
	fake, app, ctx := loggedIn(t, testapp.DefaultOptions())

	require.NoError(t, app.Search(ctx, "pop"))
	heading, err := app.SearchOutcome(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Songs", heading)

	input, err := app.OpenSearch(ctx)
	require.NoError(t, err)
	require.NoError(t, app.TypeSearch(ctx, input, "lura"))
	require.NoError(t, app.SelectSearchTab(ctx, "Users"))

	_, err = app.UserResult(ctx, "nobody-by-this-name", 300*time.Millisecond)
	var notFound *locate.NotFoundError
	require.ErrorAs(t, err, &notFound, "a missing user is an absence, not a broken page")

	el, err := app.UserResult(ctx, "lura", app.Timeout())
	require.NoError(t, err)
	name, err := app.OpenUser(ctx, el)
	require.NoError(t, err)
	assert.Equal(t, "lura", name)

	own, err := app.IsOwnProfile(ctx)
	require.NoError(t, err)
	assert.False(t, own)

	btn, err := app.FollowButton(ctx, app.Timeout())
	require.NoError(t, err)
	before, after, err := app.ToggleFollow(ctx, btn)
	require.NoError(t, err)
	assert.Equal(t, "Follow", before)
	assert.Equal(t, "Unfollow", after)
	assert.True(t, fake.IsFollowing(fake.Username(), "lura"))

	require.NoError(t, app.Search(ctx, "zzz-nothing"))
	heading, err = app.SearchOutcome(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.Contains(t, heading, "No results found")
}

func TestFeedAndGuestRoutes(t *testing.T) {
	_, app, ctx := loggedIn(t, testapp.DefaultOptions())

	title, err := app.OpenFeed(ctx, 3*time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, title)

	require.NoError(t, app.ClearSession(ctx))
	blocked, url, err := app.GuestBlocked(ctx, soundpuff.PathLibrary)
	require.NoError(t, err)
	assert.True(t, blocked, "guest reached %s", url)
}
