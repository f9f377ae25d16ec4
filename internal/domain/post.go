package domain

import "time"

// Post is a video post in the feed.
type Post struct {
	// ID is assigned by the store on creation and never changes.
	ID string

	// AuthorID is the user that submitted the post.
	AuthorID string

	Title       string
	Description string

	// MediaReference is either a retrievable blob URL or an external embed URL.
	MediaReference string

	// IsExternalEmbed is true when MediaReference points at a third-party
	// video platform rather than our blob store.
	IsExternalEmbed bool

	// CreatedAt is assigned by the server once, at creation.
	CreatedAt time.Time

	// LikedBy holds the ids of users that like the post, without duplicates.
	LikedBy []string

	// ShareCount always equals len(SharedBy).
	ShareCount int

	SharedBy []string
}

// LikeCount returns the number of users that like the post.
func (p *Post) LikeCount() int {
	return len(p.LikedBy)
}

// LikedByUser reports whether userID is in LikedBy.
func (p *Post) LikedByUser(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// AuthorName is the display handle shown under a post.
func (p *Post) AuthorName() string {
	return "User_" + ShortUserID(p.AuthorID)
}

// ShortUserID abbreviates a user id to its first five and last four characters.
func ShortUserID(id string) string {
	if len(id) <= 9 {
		return id
	}
	return id[:5] + "..." + id[len(id)-4:]
}

// NewPost is the data needed to create a post. The store assigns ID and
// CreatedAt.
type NewPost struct {
	AuthorID        string
	Title           string
	Description     string
	MediaReference  string
	IsExternalEmbed bool
}
