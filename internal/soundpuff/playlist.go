package soundpuff

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/interact"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
)

// ErrNoSongs means the create page offered no song to select, even after
// searching.
var ErrNoSongs = errors.New("no songs available on the create-playlist page; seed the backend or set TEST_SONG_QUERY to a query that returns songs")

var (
	songCheckbox  = locate.XPath("//*[@data-slot='checkbox']")
	songSearch    = locate.Attr("input", "placeholder", "Search songs...")
	selectedCount = locate.XPath("//span[contains(normalize-space(.), 'selected')]")
	submitButton  = locate.XPath("//form//button[@type='submit' and (contains(normalize-space(.),'Create Playlist') or contains(normalize-space(.),'Save Changes'))]")
	libraryHeader = locate.Text("h1", "My Playlists")
	cardRoot      = locate.XPath("ancestor::div[" + locate.ClassContains("cursor-pointer") + "][1]")
)

// OpenLibrary loads the library and waits for its header.
func (a *App) OpenLibrary(ctx context.Context) error {
	if err := a.Open(ctx, PathLibrary); err != nil {
		return err
	}
	_, err := a.Locate(ctx, libraryHeader)
	return err
}

// FindPlaylistTitle waits for the card title of a playlist in the library,
// matching the title attribute first and the visible text second.
func (a *App) FindPlaylistTitle(ctx context.Context, title string) (session.Element, error) {
	return a.Locate(ctx, locate.Attr("h3", "title", title), locate.ExactText("h3", title))
}

// OpenPlaylistFromLibrary opens a playlist by title from the library. The
// library is reloaded once if the card does not show up.
func (a *App) OpenPlaylistFromLibrary(ctx context.Context, title string) error {
	if err := a.OpenLibrary(ctx); err != nil {
		return err
	}
	heading, err := a.FindPlaylistTitle(ctx, title)
	if err != nil {
		var nf *locate.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
		a.log.Debug("Playlist not in library yet; reloading.", zap.String("title", title))
		if err := a.s.Reload(ctx); err != nil {
			return err
		}
		if err := a.OpenLibrary(ctx); err != nil {
			return err
		}
		if heading, err = a.FindPlaylistTitle(ctx, title); err != nil {
			return fmt.Errorf("playlist %q not found in library: %w", title, err)
		}
	}

	card, err := locate.Locate(ctx, a.s, a.within(heading, a.timeout), cardRoot)
	if err != nil {
		return fmt.Errorf("card of playlist %q: %w", title, err)
	}
	if err := interact.Click(ctx, a.s, card, a.timeout); err != nil {
		return fmt.Errorf("open playlist %q: %w", title, err)
	}
	_, err = a.WaitURLContains(ctx, PathPlaylistPrefix, a.timeout)
	return err
}

// CreatePlaylist fills the create form with title, an optional
// description and the first available song, submits it and waits for the
// library.
func (a *App) CreatePlaylist(ctx context.Context, title, description string) error {
	if err := a.Open(ctx, PathCreatePlaylist); err != nil {
		return err
	}
	titleField, err := a.LocateVisible(ctx, locate.ID("title"))
	if err != nil {
		return fmt.Errorf("title field: %w", err)
	}
	if err := interact.Fill(ctx, a.s, titleField, title, a.timeout); err != nil {
		return err
	}
	if description != "" {
		res, err := locate.Find(ctx, a.s, a.opts(0), locate.ID("description"))
		if err == nil && res.Found {
			if err := interact.Fill(ctx, a.s, res.First(), description, a.timeout); err != nil {
				a.log.Debug("Could not fill description.", zap.Error(err))
			}
		}
	}
	if err := a.SelectFirstSong(ctx); err != nil {
		return err
	}
	return a.SubmitPlaylistForm(ctx)
}

// SelectFirstSong ticks the first song checkbox on the create page and waits
// until the form counts at least one selected song. When no checkbox renders
// within PickerWait, the configured song query is typed into the song search
// first.
func (a *App) SelectFirstSong(ctx context.Context) error {
	box, err := locate.Locate(ctx, a.s, a.opts(a.PickerWait), songCheckbox)
	if err == nil {
		return a.tickSong(ctx, box)
	}
	if !wait.IsTimeout(err) {
		return err
	}

	res, ferr := locate.Find(ctx, a.s, a.visible(0), songSearch)
	if ferr != nil {
		return ferr
	}
	if !res.Found {
		return ErrNoSongs
	}
	query := a.cfg.Data.SongQuery
	a.log.Debug("No songs listed; searching.", zap.String("query", query))
	if err := interact.Fill(ctx, a.s, res.First(), query, a.timeout); err != nil {
		return err
	}
	box, err = locate.Locate(ctx, a.s, a.opts(a.timeout), songCheckbox)
	if err != nil {
		if wait.IsTimeout(err) {
			return fmt.Errorf("%w: %v", ErrNoSongs, err)
		}
		return err
	}
	return a.tickSong(ctx, box)
}

func (a *App) tickSong(ctx context.Context, box session.Element) error {
	if err := interact.Click(ctx, a.s, box, a.timeout); err != nil {
		return fmt.Errorf("select song: %w", err)
	}
	_, err := wait.Until(ctx, wait.Options{Timeout: a.timeout, Interval: a.cfg.Wait.PollInterval, Message: "a song to be selected"},
		func(ctx context.Context) (int, bool, error) {
			n, err := a.SelectedSongs(ctx)
			return n, n >= 1, err
		})
	return err
}

// SelectedSongs reads the "N selected" counter of the create form.
func (a *App) SelectedSongs(ctx context.Context) (int, error) {
	spans, err := locate.All(ctx, a.s, a.opts(0), selectedCount)
	if err != nil {
		return 0, err
	}
	for _, span := range spans {
		text, err := interact.Text(ctx, a.s, span)
		if err != nil || !strings.HasSuffix(text, "selected") {
			continue
		}
		if n, ok := leadingInt(text); ok {
			return n, nil
		}
	}
	return 0, nil
}

// SubmitPlaylistForm clicks Create Playlist (or Save Changes) once it is
// enabled and waits for the library.
func (a *App) SubmitPlaylistForm(ctx context.Context) error {
	btn, err := a.Locate(ctx, submitButton)
	if err != nil {
		return err
	}
	if err := interact.WaitEnabled(ctx, a.s, btn, a.timeout); err != nil {
		return fmt.Errorf("submit button never enabled: %w", err)
	}
	if err := interact.Click(ctx, a.s, btn, a.timeout); err != nil {
		return err
	}
	_, err = a.WaitURLContains(ctx, PathLibrary, a.timeout)
	return err
}

// DeletePlaylist deletes the open playlist from its header, accepting the
// confirmation, and waits for the library.
func (a *App) DeletePlaylist(ctx context.Context) error {
	since := time.Now()
	if err := a.Click(ctx, locate.XPath(headerPath+"//button[normalize-space()='Delete']")); err != nil {
		return err
	}
	if _, err := a.s.WaitDialog(ctx, since, "", a.timeout); err != nil {
		a.log.Debug("No confirmation dialog seen.", zap.Error(err))
	}
	_, err := a.WaitURLContains(ctx, PathLibrary, a.timeout)
	return err
}

// AddFirstSongToPlaylist uses the first song's menu on the open playlist to
// add it to the playlist named target, and returns the app's confirmation
// message.
func (a *App) AddFirstSongToPlaylist(ctx context.Context, target string) (string, error) {
	menus, err := locate.All(ctx, a.s, a.opts(a.timeout), locate.Attr("button", "aria-label", "Open song menu"))
	if err != nil {
		return "", fmt.Errorf("no song menu buttons found; the playlist needs at least one song: %w", err)
	}
	if err := interact.Click(ctx, a.s, menus[0], a.timeout); err != nil {
		return "", err
	}
	if err := a.Click(ctx, locate.ExactText("button", "Add to another playlist")); err != nil {
		return "", err
	}
	since := time.Now()
	if err := a.Click(ctx, locate.ExactText("button", target)); err != nil {
		return "", err
	}
	d, err := a.s.WaitDialog(ctx, since, "", a.timeout)
	if err != nil {
		return "", err
	}
	return d.Message, nil
}

// leadingInt parses the number at the start of texts like "3 likes".
func leadingInt(text string) (int, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	return n, err == nil
}
