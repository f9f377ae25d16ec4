package domain

import (
	"net/url"
	"regexp"
)

// externalVideoPattern matches youtube.com watch, embed, v and shorts URLs and
// youtu.be short links. The capture group is the candidate video id.
var externalVideoPattern = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|embed|shorts)/|.*[?&]v=)|youtu\.be/)([^#&?/]*)`)

const externalVideoIDLen = 11

// ExternalVideoID returns the 11-character video id of an external embed URL,
// or "" if rawURL is not one.
func ExternalVideoID(rawURL string) string {
	m := externalVideoPattern.FindStringSubmatch(rawURL)
	if m == nil || len(m[1]) != externalVideoIDLen {
		return ""
	}
	return m[1]
}

// IsExternalEmbedURL reports whether rawURL is hosted by a known video platform.
func IsExternalEmbedURL(rawURL string) bool {
	return ExternalVideoID(rawURL) != ""
}

// EmbedURL returns the player URL for a video id. Players start paused and
// muted; the playback coordinator flips autoplay and mute by rewriting the
// query.
func EmbedURL(videoID string) string {
	q := url.Values{}
	q.Set("autoplay", "0")
	q.Set("mute", "1")
	q.Set("controls", "0")
	q.Set("disablekb", "1")
	q.Set("modestbranding", "1")
	q.Set("rel", "0")
	q.Set("loop", "1")
	q.Set("playlist", videoID)
	return "https://www.youtube.com/embed/" + videoID + "?" + q.Encode()
}

// setQueryParam returns src with key set to value, keeping the other params.
func setQueryParam(src, key, value string) string {
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func queryParam(src, key string) string {
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return u.Query().Get(key)
}
