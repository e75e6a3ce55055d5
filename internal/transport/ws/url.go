package ws

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/likithgowdabh/eventstack/internal/domain"
)

// VotePathPrefix is the path of the vote channel, followed by the event ID
const VotePathPrefix = "/ws/vote/"

// BuildURL derives the vote channel URL of an event from the page origin.
// Secure origins map to wss, insecure ones to ws.
func BuildURL(origin, eventID string) (string, error) {
	if eventID == "" {
		return "", domain.ErrEmptyEventID
	}

	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", origin, domain.ErrInvalidOrigin)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q: %w", origin, domain.ErrInvalidOrigin)
	}

	var scheme string
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
		scheme = "ws"
	default:
		return "", fmt.Errorf("origin scheme %q: %w", u.Scheme, domain.ErrInvalidOrigin)
	}

	return scheme + "://" + u.Host + VotePathPrefix + url.PathEscape(eventID), nil
}

// EventIDFromPath recovers the event ID from a page path such as
// /event/{eventID}. It returns the last non-empty segment.
func EventIDFromPath(p string) string {
	base := path.Base(strings.TrimRight(p, "/"))
	if base == "." || base == "/" {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		return unescaped
	}
	return base
}
