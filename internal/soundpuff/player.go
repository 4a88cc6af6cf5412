package soundpuff

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/interact"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
)

var (
	playNow   = locate.XPath("//button[contains(normalize-space(),'Play Now')]")
	anyCard   = locate.XPath("(//h3)[1]")
	songRows  = locate.XPath("//div[contains(@class,'group') and contains(@class,'grid-cols')]")
	playerBar = locate.XPath("//div[contains(@class,'fixed') and contains(@class,'bottom-0')]")
)

func svgButton(icon string) locate.Strategy {
	return locate.XPath(".//button[.//*[name()='svg' and contains(@class," + locate.Literal(icon) + ")]]")
}

// OpenAnyPlaylist opens a playlist from the home page: the hero "Play Now"
// button when there is one, otherwise the first card.
func (a *App) OpenAnyPlaylist(ctx context.Context) error {
	if err := a.Open(ctx, PathHome); err != nil {
		return err
	}
	target, err := a.LocateVisible(ctx, playNow, anyCard)
	if err != nil {
		return fmt.Errorf("no playlist to open on the home page: %w", err)
	}
	if err := interact.Click(ctx, a.s, target, a.timeout); err != nil {
		return err
	}
	_, err = a.WaitURLContains(ctx, PathPlaylistPrefix, a.timeout)
	return err
}

// PlayFirstSong clicks the first song row of the open playlist.
func (a *App) PlayFirstSong(ctx context.Context) error {
	rows, err := locate.All(ctx, a.s, a.visible(a.timeout), songRows)
	if err != nil {
		return fmt.Errorf("no song rows: %w", err)
	}
	return interact.Click(ctx, a.s, rows[0], a.timeout)
}

// PlayerBar waits for the player bar at the bottom of the page to show.
func (a *App) PlayerBar(ctx context.Context) (session.Element, error) {
	return a.LocateVisible(ctx, playerBar)
}

// Playing reports whether the player shows a pause control, which it does
// while a track plays.
func (a *App) Playing(ctx context.Context, bar session.Element) (bool, error) {
	res, err := locate.Find(ctx, a.s, a.within(bar, 0), svgButton("lucide-pause"))
	return res.Found, err
}

// SetPlaying clicks the player's pause or play control and waits for the
// player to reach the requested state.
func (a *App) SetPlaying(ctx context.Context, bar session.Element, playing bool) error {
	icon := "lucide-play"
	if !playing {
		icon = "lucide-pause"
	}
	btn, err := locate.Locate(ctx, a.s, a.within(bar, a.timeout), svgButton(icon))
	if err != nil {
		return fmt.Errorf("player %s control: %w", icon, err)
	}
	if err := interact.Click(ctx, a.s, btn, a.timeout); err != nil {
		return err
	}
	_, err = wait.Until(ctx, wait.Options{Timeout: a.timeout, Interval: a.cfg.Wait.PollInterval, Message: fmt.Sprintf("player playing=%t", playing)},
		func(ctx context.Context) (bool, bool, error) {
			now, err := a.Playing(ctx, bar)
			return now, err == nil && now == playing, err
		})
	return err
}
