// Package station provides the Station domain entity.
package station

import (
	"strings"
	"time"
)

// Station represents an internet radio station entry from the directory.
// Immutable once fetched.
type Station struct {
	ID          string   `json:"id"`          // Directory station UUID
	Name        string   `json:"name"`        // Station display name
	Country     string   `json:"country"`     // Country name
	Tags        []string `json:"tags"`        // Genre/descriptor tags
	URL         string   `json:"url"`         // Primary stream URL
	ResolvedURL string   `json:"resolvedUrl"` // Resolved stream URL (playlist unwrapped, possibly upgraded to https)
}

// StreamURL returns the URL the player should connect to.
// The resolved URL takes precedence because the directory unwraps
// playlist indirection and upgrades the scheme where possible.
func (s *Station) StreamURL() string {
	if s.ResolvedURL != "" {
		return s.ResolvedURL
	}
	return s.URL
}

// IsSecure reports whether the playable stream URL uses https.
func (s *Station) IsSecure() bool {
	return strings.HasPrefix(s.StreamURL(), "https://")
}

// TagString returns the tags joined into a single comma-separated string.
func (s *Station) TagString() string {
	return strings.Join(s.Tags, ",")
}

// ParseTags splits a comma-separated tag string into a tag list,
// dropping empty entries.
func ParseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Favorite represents a station the user has favorited.
type Favorite struct {
	Station   Station   `json:"station"`   // Station info as of the time it was favorited
	CreatedAt time.Time `json:"createdAt"` // Time the favorite was created
}
