package soundpuff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/interact"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
)

var (
	searchInput  = locate.Attr("input", "placeholder", "Search for songs, playlists, or users...")
	songsHeading = locate.Text("h2", "Songs")
	usersHeading = locate.Text("h2", "Users")
	noResults    = locate.Text("p", "No results found")
	userResult   = locate.XPath("//div[contains(@class,'bg-gray-900') and .//img]//p")
	followButton = locate.XPath("//button[normalize-space()='Follow' or normalize-space()='Unfollow']")
	editProfile  = locate.Text("button", "Edit Profile")
	feedHeading  = locate.Text("h1", "Your Feed")
	feedCard     = locate.XPath("//h1[contains(text(),'Your Feed')]/..//h3")
)

// Search opens the search page and types term.
func (a *App) Search(ctx context.Context, term string) error {
	input, err := a.OpenSearch(ctx)
	if err != nil {
		return err
	}
	return a.TypeSearch(ctx, input, term)
}

// OpenSearch loads the search page and returns its input once visible.
func (a *App) OpenSearch(ctx context.Context) (session.Element, error) {
	if err := a.Open(ctx, PathSearch); err != nil {
		return session.Element{}, err
	}
	return a.LocateVisible(ctx, searchInput)
}

// TypeSearch replaces the search input's text with term.
func (a *App) TypeSearch(ctx context.Context, input session.Element, term string) error {
	return interact.Fill(ctx, a.s, input, term, a.timeout)
}

// SearchOutcome waits up to timeout for a Songs or Users section or the
// empty-results message and returns its text.
func (a *App) SearchOutcome(ctx context.Context, timeout time.Duration) (string, error) {
	el, err := locate.Locate(ctx, a.s, a.opts(timeout), songsHeading, usersHeading, noResults)
	if err != nil {
		return "", err
	}
	return interact.Text(ctx, a.s, el)
}

// SearchHeading waits up to timeout for a Songs or Users results section.
func (a *App) SearchHeading(ctx context.Context, timeout time.Duration) (string, error) {
	el, err := locate.Locate(ctx, a.s, a.opts(timeout), songsHeading, usersHeading)
	if err != nil {
		return "", err
	}
	return interact.Text(ctx, a.s, el)
}

// SelectSearchTab clicks a results tab (All, Songs, Playlists, Users).
func (a *App) SelectSearchTab(ctx context.Context, name string) error {
	return a.Click(ctx, locate.ExactText("button", name))
}

// UserResult waits up to timeout for the first user in the search results,
// or the one named username.
func (a *App) UserResult(ctx context.Context, username string, timeout time.Duration) (session.Element, error) {
	st := userResult
	if username != "" {
		st = locate.XPath("//div[contains(@class,'bg-gray-900') and .//img]//p[normalize-space()=" + locate.Literal(username) + "]")
	}
	return locate.Locate(ctx, a.s, a.visible(timeout), st)
}

// OpenUser clicks a user search result and waits for the profile page. It
// returns the result's username.
func (a *App) OpenUser(ctx context.Context, el session.Element) (string, error) {
	name, err := interact.Text(ctx, a.s, el)
	if err != nil {
		return "", err
	}
	if err := interact.Click(ctx, a.s, el, a.timeout); err != nil {
		return "", err
	}
	if _, err := a.WaitURLContains(ctx, "/app/user/", a.timeout); err != nil {
		return name, fmt.Errorf("profile of %s did not open: %w", name, err)
	}
	return name, nil
}

// IsOwnProfile reports whether the open profile belongs to the logged-in
// user, which offers Edit Profile instead of Follow.
func (a *App) IsOwnProfile(ctx context.Context) (bool, error) {
	res, err := locate.Find(ctx, a.s, a.opts(0), editProfile)
	return res.Found, err
}

// FollowButton waits for the Follow/Unfollow button of the open profile.
func (a *App) FollowButton(ctx context.Context, timeout time.Duration) (session.Element, error) {
	return locate.Locate(ctx, a.s, a.visible(timeout), followButton)
}

// ToggleFollow clicks the follow button and waits for its label to flip.
// It returns the labels before and after.
func (a *App) ToggleFollow(ctx context.Context, btn session.Element) (before, after string, err error) {
	if before, err = interact.Text(ctx, a.s, btn); err != nil {
		return "", "", err
	}
	if err := interact.Click(ctx, a.s, btn, a.timeout); err != nil {
		return before, "", err
	}
	after, err = wait.Until(ctx, wait.Options{Timeout: a.timeout, Interval: a.cfg.Wait.PollInterval, Message: "follow button label to change from " + before},
		func(ctx context.Context) (string, bool, error) {
			el, err := locate.Locate(ctx, a.s, a.opts(0), followButton)
			if err != nil {
				return "", false, nil
			}
			text, err := interact.Text(ctx, a.s, el)
			if err != nil {
				return "", false, nil
			}
			return text, !strings.EqualFold(text, before), nil
		})
	if err != nil {
		return before, "", fmt.Errorf("follow toggle: %w", err)
	}
	return before, after, nil
}

// OpenFeed loads the home page and waits up to timeout for the feed heading
// and its first card, returning the card title.
func (a *App) OpenFeed(ctx context.Context, timeout time.Duration) (string, error) {
	if err := a.Open(ctx, PathHome); err != nil {
		return "", err
	}
	if _, err := locate.Locate(ctx, a.s, a.opts(timeout), feedHeading); err != nil {
		return "", err
	}
	card, err := locate.Locate(ctx, a.s, a.opts(timeout), feedCard, anyCard)
	if err != nil {
		return "", err
	}
	return interact.Text(ctx, a.s, card)
}

// GuestBlocked opens path with whatever session the browser has and reports
// whether it ended on the login page or shows a login form.
func (a *App) GuestBlocked(ctx context.Context, path string) (bool, string, error) {
	if err := a.Open(ctx, path); err != nil {
		return false, "", err
	}
	url, err := a.WaitURLContains(ctx, a.cfg.App.AuthPath, a.timeout)
	if err == nil {
		return true, url, nil
	}
	if !wait.IsTimeout(err) {
		return false, "", err
	}
	url, _ = a.s.CurrentURL(ctx)
	res, ferr := locate.Find(ctx, a.s, a.opts(0), locate.ID("login-email"))
	if ferr != nil {
		return false, url, ferr
	}
	return res.Found, url, nil
}
