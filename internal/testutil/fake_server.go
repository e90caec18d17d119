package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/pkg/mediabrowser"
)

var tokenParam = regexp.MustCompile(`Token="([^"]*)"`)

// Report is a playback report received by the fake server.
type Report struct {
	Path          string
	ItemID        string
	PositionTicks int64
}

// FakeServer emulates the subset of a Jellyfin or Emby server the adapters
// use. Emby paths are served both with and without the /emby prefix.
type FakeServer struct {
	*httptest.Server

	Kind models.BackendKind

	mu        sync.Mutex
	users     []mediabrowser.User
	passwords map[string]string
	apiKey    string
	tokens    map[string]string // token -> user id
	views     []mediabrowser.BaseItem
	items     map[string]mediabrowser.BaseItem
	children  map[string][]string
	channels  []mediabrowser.BaseItem
	programs  []mediabrowser.BaseItem
	media     []byte
	reports   []Report
	calls     map[string]int
	issued    int
	// AcceptAuth decides which credential shapes succeed. Nil accepts all.
	AcceptAuth func(r *http.Request) bool
}

// NewFakeServer starts a fake server. It is closed when the test ends.
func NewFakeServer(t testing.TB, kind models.BackendKind) *FakeServer {
	t.Helper()
	f := &FakeServer{
		Kind:      kind,
		passwords: make(map[string]string),
		tokens:    make(map[string]string),
		items:     make(map[string]mediabrowser.BaseItem),
		children:  make(map[string][]string),
		calls:     make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(f.count)
	f.routes(r)
	if kind == models.BackendEmby {
		r.Route("/emby", f.routes)
	}
	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// AddUser registers an account.
func (f *FakeServer) AddUser(id, name, password string, admin bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, mediabrowser.User{ID: id, Name: name, Policy: &mediabrowser.UserPolicy{IsAdministrator: admin}})
	f.passwords[name] = password
}

// SetAPIKey sets the static key accepted as a token.
func (f *FakeServer) SetAPIKey(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKey = key
}

// AddView adds a library view.
func (f *FakeServer) AddView(view mediabrowser.BaseItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view)
	f.items[view.ID] = view
}

// AddItems adds items under their ParentID.
func (f *FakeServer) AddItems(items ...mediabrowser.BaseItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		f.items[it.ID] = it
		f.children[it.ParentID] = append(f.children[it.ParentID], it.ID)
	}
}

// SetLiveTV sets the channel and guide data.
func (f *FakeServer) SetLiveTV(channels, programs []mediabrowser.BaseItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = channels
	f.programs = programs
	for _, ch := range channels {
		f.items[ch.ID] = ch
	}
}

// SetMedia sets the bytes served by every stream endpoint.
func (f *FakeServer) SetMedia(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = b
}

// Reports returns the playback reports received so far.
func (f *FakeServer) Reports() []Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Report(nil), f.reports...)
}

// Calls returns how often a route pattern was hit.
func (f *FakeServer) Calls(pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pattern]
}

func (f *FakeServer) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		pattern := strings.TrimPrefix(chi.RouteContext(r.Context()).RoutePattern(), "/emby")
		f.mu.Lock()
		f.calls[pattern]++
		f.mu.Unlock()
	})
}

func (f *FakeServer) routes(r chi.Router) {
	r.Get("/System/Info/Public", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, mediabrowser.PublicSystemInfo{ID: "fake-server", ServerName: "fake", Version: "10.9.0"})
	})
	r.Post("/Users/AuthenticateByName", f.authenticate)

	r.Group(func(r chi.Router) {
		r.Use(f.requireToken)
		r.Get("/System/Info", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, mediabrowser.SystemInfo{PublicSystemInfo: mediabrowser.PublicSystemInfo{ID: "fake-server"}})
		})
		r.Get("/Users", func(w http.ResponseWriter, _ *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, f.users)
		})
		r.Get("/Users/{userID}/Views", func(w http.ResponseWriter, _ *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, result(f.views, true))
		})
		r.Get("/Users/{userID}/Items", f.listItems)
		r.Get("/Users/{userID}/Items/{itemID}", f.getItem)
		r.Get("/Shows/{seriesID}/Seasons", f.listChildren("seriesID"))
		r.Get("/Shows/{seriesID}/Episodes", f.listEpisodes)
		r.Get("/LiveTv/Channels", func(w http.ResponseWriter, _ *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, result(f.channels, true))
		})
		r.Get("/LiveTv/Programs", f.listPrograms)
		r.Post("/Sessions/Playing", f.report)
		r.Post("/Sessions/Playing/Progress", f.report)
		r.Post("/Sessions/Playing/Stopped", f.report)
		r.Post("/Sessions/Logout", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			delete(f.tokens, f.token(r))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/Videos/{itemID}/stream", f.stream)
		r.Head("/Videos/{itemID}/stream", f.stream)
		r.Get("/Audio/{itemID}/stream", f.stream)
		r.Get("/Videos/{itemID}/master.m3u8", f.masterPlaylist)
		r.Get("/Videos/{itemID}/*", f.stream)
		r.Get("/Items/{itemID}/Images/{imageType}", f.image)
	})
}

func (f *FakeServer) authenticate(w http.ResponseWriter, r *http.Request) {
	if f.AcceptAuth != nil && !f.AcceptAuth(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var username, password string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		_ = r.ParseForm()
		username, password = r.PostForm.Get("Username"), r.PostForm.Get("Pw")
	} else {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		username = body["Username"]
		password = body["Pw"]
		if p, ok := body["Password"]; ok {
			password = p
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	want, ok := f.passwords[username]
	if !ok || want != password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	var user mediabrowser.User
	for _, u := range f.users {
		if u.Name == username {
			user = u
		}
	}
	f.issued++
	token := "tok-" + user.ID + "-" + strconv.Itoa(f.issued)
	f.tokens[token] = user.ID
	writeJSON(w, mediabrowser.AuthenticationResult{User: user, AccessToken: token, ServerID: "fake-server"})
}

func (f *FakeServer) token(r *http.Request) string {
	if t := r.URL.Query().Get("api_key"); t != "" {
		return t
	}
	if t := r.Header.Get("X-Emby-Token"); t != "" {
		return t
	}
	if m := tokenParam.FindStringSubmatch(r.Header.Get("Authorization")); m != nil {
		return m[1]
	}
	return ""
}

func (f *FakeServer) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := f.token(r)
		f.mu.Lock()
		_, known := f.tokens[token]
		ok := token != "" && (known || token == f.apiKey)
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeServer) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []mediabrowser.BaseItem
	switch {
	case q.Get("SearchTerm") != "":
		term := strings.ToLower(q.Get("SearchTerm"))
		for _, it := range f.items {
			if strings.Contains(strings.ToLower(it.Name), term) && !it.IsFolder {
				out = append(out, it)
			}
		}
	default:
		for _, id := range f.children[q.Get("ParentId")] {
			out = append(out, f.items[id])
		}
	}

	total := len(out)
	start := atoi(q.Get("StartIndex"))
	if start > len(out) {
		start = len(out)
	}
	out = out[start:]
	if limit := atoi(q.Get("Limit")); limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	res := result(out, f.Kind != models.BackendEmby)
	if res.TotalRecordCount != nil {
		*res.TotalRecordCount = total
	}
	writeJSON(w, res)
}

func (f *FakeServer) getItem(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[chi.URLParam(r, "itemID")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, it)
}

func (f *FakeServer) listChildren(param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var out []mediabrowser.BaseItem
		for _, id := range f.children[chi.URLParam(r, param)] {
			out = append(out, f.items[id])
		}
		writeJSON(w, result(out, true))
	}
}

func (f *FakeServer) listEpisodes(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent := r.URL.Query().Get("SeasonId")
	if parent == "" {
		parent = chi.URLParam(r, "seriesID")
	}
	var out []mediabrowser.BaseItem
	for _, id := range f.children[parent] {
		out = append(out, f.items[id])
	}
	writeJSON(w, result(out, true))
}

func (f *FakeServer) listPrograms(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range strings.Split(r.URL.Query().Get("ChannelIds"), ",") {
		if id != "" {
			wanted[id] = true
		}
	}
	var out []mediabrowser.BaseItem
	for _, p := range f.programs {
		if len(wanted) == 0 || wanted[p.ChannelID] {
			out = append(out, p)
		}
	}
	writeJSON(w, result(out, true))
}

func (f *FakeServer) report(w http.ResponseWriter, r *http.Request) {
	var body mediabrowser.PlaybackReport
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.reports = append(f.reports, Report{
		Path:          strings.TrimPrefix(r.URL.Path, "/emby"),
		ItemID:        body.ItemID,
		PositionTicks: body.PositionTicks,
	})
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeServer) stream(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	media := f.media
	f.mu.Unlock()
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeContent(w, r, "media.mp4", time.Unix(1700000000, 0).UTC(), bytes.NewReader(media))
}

func (f *FakeServer) masterPlaylist(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nhls1/main/0.ts?api_key=" + f.token(r) + "\n#EXT-X-ENDLIST\n"))
}

func (f *FakeServer) image(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write([]byte("image:" + chi.URLParam(r, "itemID") + ":" + chi.URLParam(r, "imageType")))
}

func result(items []mediabrowser.BaseItem, withTotal bool) mediabrowser.QueryResult {
	res := mediabrowser.QueryResult{Items: items}
	if res.Items == nil {
		res.Items = []mediabrowser.BaseItem{}
	}
	if withTotal {
		n := len(items)
		res.TotalRecordCount = &n
	}
	return res
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
