package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FeedPage is one page of the feed, newest first.
type FeedPage struct {
	Posts []Post

	// Cursor references the last post of the page. Empty when the page is empty.
	Cursor string

	// IsLastPage is true when the store returned fewer posts than requested.
	IsLastPage bool
}

// Cursor is the decoded position of a post in feed order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorFor returns the opaque cursor token for p.
// The format is "createdAt::id" (unix micros::id).
func CursorFor(p *Post) string {
	return fmt.Sprintf("%d::%s", p.CreatedAt.UnixMicro(), p.ID)
}

// ParseCursor decodes a token produced by CursorFor.
func ParseCursor(token string) (Cursor, error) {
	parts := strings.SplitN(token, "::", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, Invalid("cursor", "must be in format 'timestamp::id'")
	}
	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, Invalid("cursor", "timestamp is not an integer")
	}
	return Cursor{CreatedAt: time.UnixMicro(micros).UTC(), ID: parts[1]}, nil
}
