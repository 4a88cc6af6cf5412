// Package testapp is an in-process stand-in for the SoundPuff web app. It
// reproduces only the markup and navigation the harness relies on (ids,
// placeholders, class names, dialogs and redirects) over an in-memory store,
// so browser tests can exercise the harness without a deployment.
package testapp

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Song is a catalogue entry.
type Song struct {
	ID     int
	Title  string
	Artist string
	Album  string
}

// User is an account of the fake app.
type User struct {
	Username  string
	Email     string
	Password  string
	Following map[string]bool
}

// Playlist is a user playlist.
type Playlist struct {
	ID          int
	Title       string
	Description string
	Owner       string
	Songs       []int
	LikedBy     map[string]bool
	Comments    []*Comment
	Created     time.Time
}

// Likes returns the like count.
func (p *Playlist) Likes() int { return len(p.LikedBy) }

// Comment is a playlist comment.
type Comment struct {
	ID      int
	Author  string
	Text    string
	LikedBy map[string]bool
}

// Likes returns the like count.
func (c *Comment) Likes() int { return len(c.LikedBy) }

// Options seeds and tunes the app.
type Options struct {
	// Email and Password are the account the harness logs in with.
	Email    string
	Password string
	Username string
	// Others are additional accounts, used as follow targets and authors
	// of seeded playlists.
	Others []string
	Songs  []Song
	// SeedPlaylists are created for the first of Others so the feed and
	// home page have content.
	SeedPlaylists []string
	// SongsOnSearch hides the song picker on the create page until the
	// user types a query.
	SongsOnSearch bool
	// LibraryDelay postpones rendering of the library cards.
	LibraryDelay time.Duration
	// SearchDelay is added to every search request.
	SearchDelay time.Duration
	// CoverSubmit puts a transparent overlay on top of the login submit
	// button so native clicks are intercepted.
	CoverSubmit bool
	// NoAddTargets leaves the "Add to another playlist" dialog without any
	// playlist to pick.
	NoAddTargets bool
}

// DefaultOptions returns a small seeded catalogue.
func DefaultOptions() Options {
	return Options{
		Email:    "tester@soundpuff.test",
		Password: "correct horse",
		Username: "tester",
		Others:   []string{"lura", "milo"},
		Songs: []Song{
			{ID: 1, Title: "Pop Anthem", Artist: "Lura", Album: "Bright"},
			{ID: 2, Title: "Night Drive", Artist: "Milo", Album: "Roads"},
			{ID: 3, Title: "Acoustic Morning", Artist: "Lura", Album: "Bright"},
		},
		SeedPlaylists: []string{"Morning Mix", "Pop Classics"},
	}
}

// App is the fake application state plus its HTTP handler.
type App struct {
	opts Options

	mu        sync.Mutex
	users     map[string]*User
	byEmail   map[string]*User
	sessions  map[string]string
	playlists map[int]*Playlist
	nextID    int
	handler   http.Handler
}

// New builds an app seeded from opts.
func New(opts Options) *App {
	a := &App{
		opts:      opts,
		users:     make(map[string]*User),
		byEmail:   make(map[string]*User),
		sessions:  make(map[string]string),
		playlists: make(map[int]*Playlist),
		nextID:    1,
	}
	if opts.Username == "" {
		opts.Username = "tester"
		a.opts.Username = opts.Username
	}
	a.addUser(&User{Username: opts.Username, Email: opts.Email, Password: opts.Password})
	for _, name := range opts.Others {
		a.addUser(&User{Username: name, Email: name + "@soundpuff.test", Password: uuid.NewString()})
	}
	if len(opts.Others) > 0 && len(opts.Songs) > 0 {
		for _, title := range opts.SeedPlaylists {
			a.createPlaylist(opts.Others[0], title, "", []int{opts.Songs[0].ID})
		}
	}
	a.handler = a.routes()
	return a
}

// Start serves a new app on a local listener for the duration of the test.
func Start(t testing.TB, opts Options) (*App, *httptest.Server) {
	t.Helper()
	a := New(opts)
	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)
	return a, srv
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *App) addUser(u *User) {
	u.Following = make(map[string]bool)
	a.users[u.Username] = u
	a.byEmail[strings.ToLower(u.Email)] = u
}

// createPlaylist must be called with a.mu held or before the app is served.
func (a *App) createPlaylist(owner, title, description string, songs []int) *Playlist {
	p := &Playlist{
		ID:          a.nextID,
		Title:       title,
		Description: description,
		Owner:       owner,
		Songs:       songs,
		LikedBy:     make(map[string]bool),
		Created:     time.Now(),
	}
	a.nextID++
	a.playlists[p.ID] = p
	return p
}

func (a *App) newComment(author, text string) *Comment {
	c := &Comment{ID: a.nextID, Author: author, Text: text, LikedBy: make(map[string]bool)}
	a.nextID++
	return c
}

func (a *App) song(id int) (Song, bool) {
	for _, s := range a.opts.Songs {
		if s.ID == id {
			return s, true
		}
	}
	return Song{}, false
}

// sortedPlaylists returns playlists matching keep, newest first.
func (a *App) sortedPlaylists(keep func(*Playlist) bool) []*Playlist {
	var out []*Playlist
	for _, p := range a.playlists {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// PlaylistByTitle returns a copy of the playlist with the given title.
func (a *App) PlaylistByTitle(title string) (Playlist, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.playlists {
		if p.Title == title {
			return *p, true
		}
	}
	return Playlist{}, false
}

// PlaylistCount returns how many playlists owner has.
func (a *App) PlaylistCount(owner string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sortedPlaylists(func(p *Playlist) bool { return p.Owner == owner }))
}

// IsFollowing reports whether follower follows target.
func (a *App) IsFollowing(follower, target string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[follower]
	return ok && u.Following[target]
}

// Username is the account the harness logs in as.
func (a *App) Username() string { return a.opts.Username }

func newToken() string { return uuid.NewString() }
