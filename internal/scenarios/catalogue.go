package scenarios

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/interact"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
	"github.com/xkilldash9x/soundpuff-e2e/internal/soundpuff"
)

// Response-time budgets.
const (
	FeedBudget   = 3 * time.Second
	SearchBudget = 2 * time.Second
)

// Catalogue returns every scenario in run order.
func Catalogue() []Scenario {
	return []Scenario{
		{Name: "home-title", Description: "landing page title contains SoundPuff", Run: homeTitle},
		{Name: "nav-click", Description: "first clickable navigation element changes the URL", Run: navClick},
		{Name: "login", Description: "configured credentials reach the authenticated area", Run: login},
		{Name: "create-playlist", Description: "a new playlist with one song shows up in the library", NeedsLogin: true, Run: createPlaylist},
		{Name: "add-song-to-playlist", Description: "a song is added to another playlist through its menu", NeedsLogin: true, Run: addSongToPlaylist},
		{Name: "like-unlike-playlist", Description: "liking a playlist adds one like and unliking restores the count", NeedsLogin: true, Run: likeUnlikePlaylist},
		{Name: "comment-like-delete", Description: "a comment can be posted, liked and deleted", NeedsLogin: true, Run: commentLikeDelete},
		{Name: "delete-playlist", Description: "deleting a playlist returns to the library", NeedsLogin: true, Run: deletePlaylist},
		{Name: "media-player-controls", Description: "playing a song shows the player bar and pause/play work", NeedsLogin: true, Run: mediaPlayerControls},
		{Name: "playlist-social-interaction", Description: "the playlist like button is found next to the likes label", NeedsLogin: true, Run: playlistSocial},
		{Name: "comment-submission", Description: "a comment sent with the send button appears on the page", NeedsLogin: true, Run: commentSubmission},
		{Name: "search", Description: "searching shows results or an empty message and the Users tab works", NeedsLogin: true, Run: search},
		{Name: "follow-unfollow", Description: "following a user found through search flips the follow button", NeedsLogin: true, Run: followUnfollow},
		{Name: "feed-performance", Description: "the feed and its first card render within the budget", NeedsLogin: true, Run: feedPerformance},
		{Name: "guest-protected-routes", Description: "guests are sent to the login page and see the landing copy", Run: guestProtectedRoutes},
		{Name: "search-response-time", Description: "search results render within the budget", NeedsLogin: true, Run: searchResponseTime},
	}
}

// Select returns the named scenarios in catalogue order, or all of them
// when names is empty.
func Select(all []Scenario, names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	var unknown []string
	for _, n := range names {
		if !slices.ContainsFunc(all, func(s Scenario) bool { return s.Name == n }) {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown scenario(s): %s", strings.Join(unknown, ", "))
	}
	var out []Scenario
	for _, s := range all {
		if slices.Contains(names, s.Name) {
			out = append(out, s)
		}
	}
	return out, nil
}

func stamp() string { return fmt.Sprintf("%d", time.Now().UnixMilli()) }

func homeTitle(ctx context.Context, env *Env) error {
	if err := env.App.Open(ctx, "/"); err != nil {
		return err
	}
	title, err := env.App.Session().Title(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(title, "SoundPuff") {
		return Failf("page title %q does not contain SoundPuff", title)
	}
	return nil
}

func navClick(ctx context.Context, env *Env) error {
	app := env.App
	if err := app.Open(ctx, "/"); err != nil {
		return err
	}
	before, err := app.Session().CurrentURL(ctx)
	if err != nil {
		return err
	}
	target, err := app.NavTarget(ctx)
	if err != nil {
		return fmt.Errorf("no clickable navigation element: %w", err)
	}
	if err := interact.Click(ctx, app.Session(), target, app.Timeout()); err != nil {
		return err
	}
	after, err := app.WaitURLChange(ctx, before, app.Timeout())
	if err != nil {
		return err
	}
	env.Logger.Info("Navigation changed the URL.", zap.String("from", before), zap.String("to", after))
	return nil
}

func login(ctx context.Context, env *Env) error {
	creds, err := env.App.Login(ctx)
	if err != nil {
		return err
	}
	env.Credentials = creds
	url, err := env.App.Session().CurrentURL(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(url, env.Config.App.AuthenticatedPrefix) {
		return Failf("expected to be under %s after login, got %s", env.Config.App.AuthenticatedPrefix, url)
	}
	return nil
}

func createPlaylist(ctx context.Context, env *Env) error {
	title := "selenium-playlist-" + stamp()
	if err := env.App.CreatePlaylist(ctx, title, "Created by the end-to-end suite"); err != nil {
		return err
	}
	if err := env.App.OpenLibrary(ctx); err != nil {
		return err
	}
	if _, err := env.App.FindPlaylistTitle(ctx, title); err != nil {
		return fmt.Errorf("created playlist %q not listed in the library: %w", title, err)
	}
	return nil
}

// ownPlaylist creates a playlist named prefix-<ts> with one song and opens
// it from the library. Every step is required: the scenario brings its own
// data, so nothing here is missing data.
func ownPlaylist(ctx context.Context, env *Env, prefix string) (string, error) {
	title := prefix + "-" + stamp()
	if err := env.App.CreatePlaylist(ctx, title, ""); err != nil {
		return "", fmt.Errorf("create %q: %w", title, err)
	}
	if err := env.App.OpenPlaylistFromLibrary(ctx, title); err != nil {
		return "", err
	}
	return title, nil
}

func addSongToPlaylist(ctx context.Context, env *Env) error {
	source := "selenium-src-" + stamp()
	if err := env.App.CreatePlaylist(ctx, source, ""); err != nil {
		return fmt.Errorf("create source %q: %w", source, err)
	}
	target := "selenium-tgt-" + stamp()
	if err := env.App.CreatePlaylist(ctx, target, ""); err != nil {
		return fmt.Errorf("create target %q: %w", target, err)
	}
	if err := env.App.OpenPlaylistFromLibrary(ctx, source); err != nil {
		return err
	}
	msg, err := env.App.AddFirstSongToPlaylist(ctx, target)
	if err != nil {
		return fmt.Errorf("add first song of %q to %q: %w", source, target, err)
	}
	lower := strings.ToLower(msg)
	if !strings.Contains(lower, "added to playlist") && !strings.Contains(lower, "already in") {
		return Failf("unexpected add-to-playlist message %q", msg)
	}
	return nil
}

func likeUnlikePlaylist(ctx context.Context, env *Env) error {
	if _, err := ownPlaylist(ctx, env, "selenium-like"); err != nil {
		return err
	}
	before, liked, err := env.App.ToggleLike(ctx)
	if err != nil {
		return err
	}
	if liked != before+1 {
		return Failf("like count went from %d to %d, want %d", before, liked, before+1)
	}
	_, unliked, err := env.App.ToggleLike(ctx)
	if err != nil {
		return err
	}
	if unliked != before {
		return Failf("unlike left the count at %d, want %d", unliked, before)
	}
	return nil
}

func commentLikeDelete(ctx context.Context, env *Env) error {
	app := env.App
	if _, err := ownPlaylist(ctx, env, "selenium-comment"); err != nil {
		return err
	}
	text := "Automated comment " + stamp()
	if _, err := app.AddComment(ctx, text, soundpuff.SubmitEnter); err != nil {
		return err
	}
	before, after, err := app.LikeComment(ctx, text)
	if err != nil {
		return err
	}
	if after != before+1 {
		return Failf("comment likes went from %d to %d, want %d", before, after, before+1)
	}
	return app.DeleteComment(ctx, text)
}

func deletePlaylist(ctx context.Context, env *Env) error {
	app := env.App
	title := "e2e-delete-" + stamp()
	if err := app.CreatePlaylist(ctx, title, ""); err != nil {
		return err
	}
	if err := app.OpenPlaylistFromLibrary(ctx, title); err != nil {
		return err
	}
	return app.DeletePlaylist(ctx)
}

func mediaPlayerControls(ctx context.Context, env *Env) error {
	app := env.App
	if err := Absence(app.OpenAnyPlaylist(ctx), SkipOnAbsence, "no playlist to play"); err != nil {
		return err
	}
	if err := app.PlayFirstSong(ctx); err != nil {
		return fmt.Errorf("song list missing or empty: %w", err)
	}
	bar, err := app.PlayerBar(ctx)
	if err != nil {
		return fmt.Errorf("player bar did not appear: %w", err)
	}
	env.Screenshot(ctx, "player-bar")
	playing, err := app.Playing(ctx, bar)
	if err != nil {
		return err
	}
	if !playing {
		return app.SetPlaying(ctx, bar, true)
	}
	if err := app.SetPlaying(ctx, bar, false); err != nil {
		return err
	}
	return app.SetPlaying(ctx, bar, true)
}

func playlistSocial(ctx context.Context, env *Env) error {
	app := env.App
	if err := Absence(app.OpenAnyPlaylist(ctx), SkipOnAbsence, "no playlist to open"); err != nil {
		return err
	}
	if _, err := app.HeaderLikeButton(ctx); err != nil {
		return fmt.Errorf("like button: %w", err)
	}
	env.Screenshot(ctx, "like-button")
	before, after, err := app.ToggleLike(ctx)
	if err != nil {
		return err
	}
	// Put the like back the way it was.
	if _, restored, err := app.ToggleLike(ctx); err != nil {
		return err
	} else if restored != before {
		return Failf("like count did not return to %d (went %d -> %d -> %d)", before, before, after, restored)
	}
	return nil
}

func commentSubmission(ctx context.Context, env *Env) error {
	app := env.App
	if err := Absence(app.OpenAnyPlaylist(ctx), SkipOnAbsence, "no playlist to comment on"); err != nil {
		return err
	}
	text := "Great playlist! " + stamp()
	if _, err := app.AddComment(ctx, text, soundpuff.SubmitButton); err != nil {
		return err
	}
	ok, err := app.PageContains(ctx, text)
	if err != nil {
		return err
	}
	if !ok {
		return Failf("comment %q not on the page", text)
	}
	return nil
}

func search(ctx context.Context, env *Env) error {
	app := env.App
	if err := app.Search(ctx, env.Config.Data.SearchTerm); err != nil {
		return err
	}
	outcome, err := app.SearchOutcome(ctx, app.Timeout())
	if err != nil {
		return fmt.Errorf("no search results or empty message: %w", err)
	}
	env.Logger.Info("Search finished.", zap.String("term", env.Config.Data.SearchTerm), zap.String("outcome", outcome))
	return app.SelectSearchTab(ctx, "Users")
}

func followUnfollow(ctx context.Context, env *Env) error {
	app := env.App
	target := env.Config.Data.FollowTarget
	if err := app.Search(ctx, target); err != nil {
		return err
	}
	if err := app.SelectSearchTab(ctx, "Users"); err != nil {
		return err
	}
	result, err := app.UserResult(ctx, "", app.Timeout())
	if err := Absence(err, SkipOnAbsence, fmt.Sprintf("no user found for %q", target)); err != nil {
		return err
	}
	name, err := app.OpenUser(ctx, result)
	if err != nil {
		return err
	}
	own, err := app.IsOwnProfile(ctx)
	if err != nil {
		return err
	}
	if own {
		return Skip("search only found the logged-in user's own profile")
	}
	btn, err := app.FollowButton(ctx, app.Timeout())
	if err != nil {
		return fmt.Errorf("profile of %s has no follow button: %w", name, err)
	}
	before, after, err := app.ToggleFollow(ctx, btn)
	if err != nil {
		return err
	}
	env.Logger.Info("Toggled follow.", zap.String("user", name), zap.String("from", before), zap.String("to", after))

	// Restore the original relationship.
	btn, err = app.FollowButton(ctx, app.Timeout())
	if err != nil {
		return err
	}
	_, _, err = app.ToggleFollow(ctx, btn)
	return err
}

func feedPerformance(ctx context.Context, env *Env) error {
	start := time.Now()
	title, err := env.App.OpenFeed(ctx, FeedBudget)
	if err != nil {
		return fmt.Errorf("feed did not render within %s: %w", FeedBudget, err)
	}
	elapsed := time.Since(start)
	env.Logger.Info("Feed rendered.", zap.Duration("elapsed", elapsed), zap.String("first_card", title))
	if elapsed > FeedBudget {
		return Failf("feed took %s, budget %s", elapsed.Round(time.Millisecond), FeedBudget)
	}
	return nil
}

func guestProtectedRoutes(ctx context.Context, env *Env) error {
	app := env.App
	if err := app.ClearSession(ctx); err != nil {
		return err
	}
	blocked, url, err := app.GuestBlocked(ctx, soundpuff.PathLibrary)
	if err != nil {
		return err
	}
	if !blocked {
		return Failf("guest reached %s without logging in", url)
	}
	if err := app.Open(ctx, "/"); err != nil {
		return err
	}
	if _, err := app.Locate(ctx, locate.Text("h2", "Share Your Music")); err != nil {
		return fmt.Errorf("landing page copy: %w", err)
	}
	return nil
}

func searchResponseTime(ctx context.Context, env *Env) error {
	app := env.App
	input, err := app.OpenSearch(ctx)
	if err != nil {
		return err
	}
	// Typing and the request it triggers count toward the budget.
	start := time.Now()
	if err := app.TypeSearch(ctx, input, env.Config.Data.SearchTerm); err != nil {
		return err
	}
	remaining := SearchBudget - time.Since(start)
	if remaining <= 0 {
		return Failf("typing the search term alone took %s, budget %s", time.Since(start).Round(time.Millisecond), SearchBudget)
	}
	heading, err := app.SearchHeading(ctx, remaining)
	if err != nil {
		return fmt.Errorf("no Songs or Users results within %s: %w", SearchBudget, err)
	}
	elapsed := time.Since(start)
	env.Logger.Info("Search responded.", zap.String("section", heading), zap.Duration("elapsed", elapsed))
	if elapsed > SearchBudget {
		return Failf("search took %s, budget %s", elapsed.Round(time.Millisecond), SearchBudget)
	}
	return nil
}
