package testapp

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const sessionCookie = "sp_session"

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// pages maps a page name to its template set (layout plus the page body).
var pages = func() map[string]*template.Template {
	base := template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html"))
	out := make(map[string]*template.Template)
	for _, name := range []string{"landing", "auth", "home", "library", "edit", "playlist", "search", "profile"} {
		out[name] = template.Must(template.Must(base.Clone()).ParseFS(templateFS, "templates/"+name+".html"))
	}
	return out
}()

type pageData struct {
	Title string
	User  string
	Data  any
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/", a.handleLanding)
	r.Get("/auth", a.handleAuth)
	r.Post("/api/login", a.handleLogin)

	r.Route("/app", func(r chi.Router) {
		r.Use(a.requireSession(true))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/app/home", http.StatusFound)
		})
		r.Get("/home", a.handleHome)
		r.Get("/library", a.handleLibrary)
		r.Get("/create-playlist", a.handleEditor)
		r.Get("/edit-playlist/{id}", a.handleEditor)
		r.Get("/playlist/{id}", a.handlePlaylist)
		r.Get("/search", a.handleSearch)
		r.Get("/search/results", a.handleSearchResults)
		r.Get("/user/{username}", a.handleProfile)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(a.requireSession(false))
		r.Post("/logout", a.handleLogout)
		r.Post("/playlists", a.handleSavePlaylist)
		r.Put("/playlists/{id}", a.handleSavePlaylist)
		r.Delete("/playlists/{id}", a.handleDeletePlaylist)
		r.Post("/playlists/{id}/like", a.handleLikePlaylist)
		r.Post("/playlists/{id}/songs", a.handleAddSong)
		r.Post("/playlists/{id}/comments", a.handleAddComment)
		r.Post("/comments/{id}/like", a.handleLikeComment)
		r.Delete("/comments/{id}", a.handleDeleteComment)
		r.Post("/users/{username}/follow", a.handleFollow)
	})
	return r
}

// requireSession rejects requests without a valid session cookie, with a
// redirect to the login page for pages and 401 for the API.
func (a *App) requireSession(redirect bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.currentUser(r) == "" {
				if redirect {
					http.Redirect(w, r, "/auth", http.StatusFound)
					return
				}
				respondError(w, http.StatusUnauthorized, "not signed in")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *App) currentUser(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[c.Value]
}

func (a *App) render(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	var buf bytes.Buffer
	if err := pages[page].ExecuteTemplate(&buf, "layout", pageData{Title: title, User: a.currentUser(r), Data: data}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (a *App) fragment(w http.ResponseWriter, page, name string, data any) {
	var buf bytes.Buffer
	if err := pages[page].ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func idParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil
}

// -- Pages --

func (a *App) handleLanding(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "landing", "SoundPuff - Share Your Music", nil)
}

func (a *App) handleAuth(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "auth", "SoundPuff - Sign In", struct{ CoverSubmit bool }{a.opts.CoverSubmit})
}

func (a *App) handleHome(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	a.mu.Lock()
	me := a.users[user]
	feed := a.sortedPlaylists(func(p *Playlist) bool { return me.Following[p.Owner] })
	discover := a.sortedPlaylists(func(p *Playlist) bool { return p.Owner != user })
	if len(feed) == 0 {
		// Suggested content stands in for an empty feed.
		feed = discover
	}
	var hero *Playlist
	if len(discover) > 0 {
		hero = discover[0]
	}
	a.mu.Unlock()

	a.render(w, r, "home", "SoundPuff", struct {
		Hero     *Playlist
		Feed     []*Playlist
		Discover []*Playlist
	}{hero, feed, discover})
}

func (a *App) handleLibrary(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	a.mu.Lock()
	mine := a.sortedPlaylists(func(p *Playlist) bool { return p.Owner == user })
	a.mu.Unlock()
	a.render(w, r, "library", "SoundPuff - Library", struct {
		Playlists []*Playlist
		DelayMS   int64
	}{mine, a.opts.LibraryDelay.Milliseconds()})
}

type editorData struct {
	Editing      bool
	ID           int
	Title        string
	Description  string
	Selected     []int
	SelectedJSON string
	Songs        []Song
	OnSearch     bool
}

func (a *App) handleEditor(w http.ResponseWriter, r *http.Request) {
	data := editorData{Songs: a.opts.Songs, OnSearch: a.opts.SongsOnSearch, Selected: []int{}}
	if id, ok := idParam(r); ok {
		a.mu.Lock()
		p, found := a.playlists[id]
		if found && p.Owner == a.currentUserLocked(r) {
			data.Editing = true
			data.ID = p.ID
			data.Title = p.Title
			data.Description = p.Description
			data.Selected = append(data.Selected, p.Songs...)
		}
		a.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
	}
	raw, _ := json.Marshal(data.Selected)
	data.SelectedJSON = string(raw)
	a.render(w, r, "edit", "SoundPuff - Playlist", data)
}

// currentUserLocked is currentUser for callers already holding a.mu.
func (a *App) currentUserLocked(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return a.sessions[c.Value]
}

type thread struct {
	Viewer   string
	Comments []*Comment
}

func (a *App) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	user := a.currentUser(r)

	a.mu.Lock()
	p, found := a.playlists[id]
	if !found {
		a.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	var songs []Song
	for _, sid := range p.Songs {
		if s, ok := a.song(sid); ok {
			songs = append(songs, s)
		}
	}
	var targets []*Playlist
	if !a.opts.NoAddTargets {
		targets = a.sortedPlaylists(func(o *Playlist) bool { return o.Owner == user && o.ID != p.ID })
	}
	view := *p
	view.LikedBy = maps.Clone(p.LikedBy)
	view.Songs = slices.Clone(p.Songs)
	view.Comments = snapshotComments(p.Comments)
	liked := p.LikedBy[user]
	a.mu.Unlock()

	a.render(w, r, "playlist", "SoundPuff - "+view.Title, struct {
		Playlist *Playlist
		Songs    []Song
		Targets  []*Playlist
		Liked    bool
		Owned    bool
		Thread   thread
	}{&view, songs, targets, liked, view.Owner == user, thread{Viewer: user, Comments: view.Comments}})
}

func (a *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "search", "SoundPuff - Search", nil)
}

type searchResults struct {
	Query     string
	Tab       string
	Songs     []Song
	Playlists []*Playlist
	Users     []string
}

// Empty reports whether nothing matched at all.
func (s searchResults) Empty() bool {
	return len(s.Songs) == 0 && len(s.Playlists) == 0 && len(s.Users) == 0
}

// Show reports whether a section is visible on the selected tab.
func (s searchResults) Show(section string) bool {
	return s.Tab == "" || s.Tab == "all" || s.Tab == section
}

func (a *App) handleSearchResults(w http.ResponseWriter, r *http.Request) {
	if a.opts.SearchDelay > 0 {
		select {
		case <-time.After(a.opts.SearchDelay):
		case <-r.Context().Done():
			return
		}
	}
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	res := searchResults{Query: r.URL.Query().Get("q"), Tab: r.URL.Query().Get("tab")}
	if q == "" {
		a.fragment(w, "search", "results", res)
		return
	}
	match := func(s ...string) bool {
		for _, v := range s {
			if strings.Contains(strings.ToLower(v), q) {
				return true
			}
		}
		return false
	}
	for _, s := range a.opts.Songs {
		if match(s.Title, s.Artist, s.Album) {
			res.Songs = append(res.Songs, s)
		}
	}
	a.mu.Lock()
	res.Playlists = a.sortedPlaylists(func(p *Playlist) bool { return match(p.Title) })
	for name := range a.users {
		if match(name) {
			res.Users = append(res.Users, name)
		}
	}
	a.mu.Unlock()
	slices.Sort(res.Users)
	a.fragment(w, "search", "results", res)
}

func (a *App) handleProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "username")
	viewer := a.currentUser(r)

	a.mu.Lock()
	u, ok := a.users[name]
	if !ok {
		a.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	followers := 0
	for _, other := range a.users {
		if other.Following[name] {
			followers++
		}
	}
	data := struct {
		Username       string
		Self           bool
		Following      bool
		Followers      int
		FollowingCount int
		Playlists      []*Playlist
	}{
		Username:       u.Username,
		Self:           name == viewer,
		Following:      a.users[viewer].Following[name],
		Followers:      followers,
		FollowingCount: len(u.Following),
		Playlists:      a.sortedPlaylists(func(p *Playlist) bool { return p.Owner == name }),
	}
	a.mu.Unlock()
	a.render(w, r, "profile", "SoundPuff - "+name, data)
}

// -- API --

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request")
		return
	}
	a.mu.Lock()
	u, ok := a.byEmail[strings.ToLower(body.Email)]
	if !ok || u.Password != body.Password {
		a.mu.Unlock()
		respondError(w, http.StatusUnauthorized, "Invalid login credentials")
		return
	}
	token := newToken()
	a.sessions[token] = u.Username
	a.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/app/home"})
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		a.mu.Lock()
		delete(a.sessions, c.Value)
		a.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleSavePlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Songs       []int  `json:"songs"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request")
		return
	}
	body.Title = strings.TrimSpace(body.Title)
	if body.Title == "" || len(body.Songs) == 0 {
		respondError(w, http.StatusBadRequest, "a playlist needs a title and at least one song")
		return
	}
	user := a.currentUser(r)

	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := idParam(r); ok {
		p, found := a.playlists[id]
		if !found || p.Owner != user {
			respondError(w, http.StatusNotFound, "playlist not found")
			return
		}
		p.Title, p.Description, p.Songs = body.Title, body.Description, body.Songs
		respondJSON(w, http.StatusOK, map[string]int{"id": p.ID})
		return
	}
	p := a.createPlaylist(user, body.Title, body.Description, body.Songs)
	respondJSON(w, http.StatusCreated, map[string]int{"id": p.ID})
}

func (a *App) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r)
	user := a.currentUser(r)
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.playlists[id]
	if !ok || p.Owner != user {
		respondError(w, http.StatusNotFound, "playlist not found")
		return
	}
	delete(a.playlists, id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleLikePlaylist(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r)
	user := a.currentUser(r)
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.playlists[id]
	if !ok {
		respondError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if p.LikedBy[user] {
		delete(p.LikedBy, user)
	} else {
		p.LikedBy[user] = true
	}
	respondJSON(w, http.StatusOK, map[string]any{"liked": p.LikedBy[user], "likes": p.Likes()})
}

func (a *App) handleAddSong(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Song int `json:"song"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request")
		return
	}
	id, _ := idParam(r)
	user := a.currentUser(r)
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.playlists[id]
	if !ok || p.Owner != user {
		respondError(w, http.StatusNotFound, "playlist not found")
		return
	}
	for _, s := range p.Songs {
		if s == body.Song {
			respondJSON(w, http.StatusOK, map[string]bool{"added": false})
			return
		}
	}
	p.Songs = append(p.Songs, body.Song)
	respondJSON(w, http.StatusOK, map[string]bool{"added": true})
}

func (a *App) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &body); err != nil || strings.TrimSpace(body.Text) == "" {
		respondError(w, http.StatusBadRequest, "comment text is required")
		return
	}
	id, _ := idParam(r)
	user := a.currentUser(r)
	a.mu.Lock()
	p, ok := a.playlists[id]
	if !ok {
		a.mu.Unlock()
		respondError(w, http.StatusNotFound, "playlist not found")
		return
	}
	p.Comments = append(p.Comments, a.newComment(user, strings.TrimSpace(body.Text)))
	view := thread{Viewer: user, Comments: snapshotComments(p.Comments)}
	a.mu.Unlock()
	a.fragment(w, "playlist", "comments", view)
}

// snapshotComments copies comments so templates can render them after a.mu
// is released. It must be called with a.mu held.
func snapshotComments(in []*Comment) []*Comment {
	out := make([]*Comment, len(in))
	for i, c := range in {
		cp := *c
		cp.LikedBy = maps.Clone(c.LikedBy)
		out[i] = &cp
	}
	return out
}

// findComment must be called with a.mu held.
func (a *App) findComment(id int) (*Playlist, int) {
	for _, p := range a.playlists {
		for i, c := range p.Comments {
			if c.ID == id {
				return p, i
			}
		}
	}
	return nil, -1
}

func (a *App) handleLikeComment(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r)
	user := a.currentUser(r)
	a.mu.Lock()
	defer a.mu.Unlock()
	p, i := a.findComment(id)
	if p == nil {
		respondError(w, http.StatusNotFound, "comment not found")
		return
	}
	c := p.Comments[i]
	if c.LikedBy[user] {
		delete(c.LikedBy, user)
	} else {
		c.LikedBy[user] = true
	}
	respondJSON(w, http.StatusOK, map[string]any{"liked": c.LikedBy[user], "likes": c.Likes()})
}

func (a *App) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r)
	user := a.currentUser(r)
	a.mu.Lock()
	defer a.mu.Unlock()
	p, i := a.findComment(id)
	if p == nil || p.Comments[i].Author != user {
		respondError(w, http.StatusNotFound, "comment not found")
		return
	}
	p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleFollow(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "username")
	user := a.currentUser(r)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[target]; !ok || target == user {
		respondError(w, http.StatusBadRequest, "cannot follow this user")
		return
	}
	me := a.users[user]
	if me.Following[target] {
		delete(me.Following, target)
	} else {
		me.Following[target] = true
	}
	followers := 0
	for _, u := range a.users {
		if u.Following[target] {
			followers++
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"following": me.Following[target], "followers": followers})
}
