package proxy

import (
	"bufio"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// ContentTypePlaylist is the MIME type served for rewritten playlists.
const ContentTypePlaylist = "application/vnd.apple.mpegurl"

// credentialParams never survive a playlist rewrite.
var credentialParams = []string{"api_key", "ApiKey", "X-Emby-Token", "X-MediaBrowser-Token"}

var uriAttr = regexp.MustCompile(`URI="([^"]*)"`)

// SegmentPrefix returns the proxy path under which an item's HLS
// sub-resources are served.
func SegmentPrefix(itemID string) string {
	return "/video-proxy/" + url.PathEscape(itemID) + "/hls/"
}

func isPlaylist(resp *http.Response, rawURL string) bool {
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		mt = strings.ToLower(mt)
		if strings.Contains(mt, "mpegurl") {
			return true
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		return strings.EqualFold(path.Ext(u.Path), ".m3u8")
	}
	return false
}

// RewritePlaylist rewrites every URI in an HLS playlist fetched from base
// to a relative proxy path under SegmentPrefix(itemID). Credential query
// parameters are removed. URIs outside the item's stream directory keep
// only their final path element.
func RewritePlaylist(r io.Reader, base *url.URL, itemID string) string {
	var sb strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			line = uriAttr.ReplaceAllStringFunc(line, func(m string) string {
				ref := uriAttr.FindStringSubmatch(m)[1]
				return `URI="` + rewriteRef(base, itemID, ref) + `"`
			})
		default:
			line = rewriteRef(base, itemID, line)
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func rewriteRef(base *url.URL, itemID, ref string) string {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(refURL)

	q := abs.Query()
	for _, k := range credentialParams {
		q.Del(k)
	}

	rel, ok := relativeToItem(abs.Path, itemID)
	if !ok {
		rel = path.Base(abs.Path)
	}
	out := SegmentPrefix(itemID) + rel
	if enc := q.Encode(); enc != "" {
		out += "?" + enc
	}
	return out
}

// relativeToItem returns p relative to the item's /Videos/{id}/ directory.
// Backends differ in path casing and prefix, so the match ignores both.
func relativeToItem(p, itemID string) (string, bool) {
	marker := "/videos/" + strings.ToLower(itemID) + "/"
	i := strings.Index(strings.ToLower(p), marker)
	if i < 0 {
		return "", false
	}
	rel := p[i+len(marker):]
	if rel == "" {
		return "", false
	}
	return rel, true
}
