package httpserver

import (
	"time"

	"github.com/blackmichael/video-feed/internal/domain"
)

type postResponse struct {
	ID              string    `json:"id"`
	AuthorID        string    `json:"authorId"`
	AuthorName      string    `json:"authorName"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	MediaReference  string    `json:"mediaRef"`
	IsExternalEmbed bool      `json:"isExternalEmbed"`
	EmbedURL        string    `json:"embedUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	LikeCount       int       `json:"likeCount"`
	LikedByMe       bool      `json:"likedByMe"`
	ShareCount      int       `json:"shareCount"`
}

func toPostResponse(p *domain.Post, viewer string) postResponse {
	resp := postResponse{
		ID:              p.ID,
		AuthorID:        p.AuthorID,
		AuthorName:      p.AuthorName(),
		Title:           p.Title,
		Description:     p.Description,
		MediaReference:  p.MediaReference,
		IsExternalEmbed: p.IsExternalEmbed,
		CreatedAt:       p.CreatedAt,
		LikeCount:       p.LikeCount(),
		LikedByMe:       p.LikedByUser(viewer),
		ShareCount:      p.ShareCount,
	}
	if p.IsExternalEmbed {
		if id := domain.ExternalVideoID(p.MediaReference); id != "" {
			resp.EmbedURL = domain.EmbedURL(id)
		}
	}
	return resp
}

type feedResponse struct {
	Posts      []postResponse `json:"posts"`
	Cursor     string         `json:"cursor,omitempty"`
	IsLastPage bool           `json:"isLastPage"`
}

type submitRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type likeRequest struct {
	// Liked is the caller's current view; true removes the like.
	Liked bool `json:"liked"`
}

type likeResponse struct {
	NowLiked  bool `json:"nowLiked"`
	LikeCount int  `json:"likeCount"`
}

type shareResponse struct {
	ShareCount int    `json:"shareCount"`
	URL        string `json:"url"`
}

type deleteResponse struct {
	PostID         string   `json:"postId"`
	AuthorID       string   `json:"authorId"`
	BlobDeleted    bool     `json:"blobDeleted"`
	LedgerRecorded bool     `json:"ledgerRecorded"`
	Warnings       []string `json:"warnings,omitempty"`
}

type ledgerEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
}

type userResponse struct {
	ID          string        `json:"id"`
	Role        string        `json:"role,omitempty"`
	IsAdmin     bool          `json:"isAdmin"`
	VideosCount int           `json:"videosCount"`
	LostVideos  int           `json:"lostVideos"`
	Score       int           `json:"score"`
	Ledger      []ledgerEntry `json:"ledger"`
}

func toUserResponse(u *domain.UserRecord) userResponse {
	ledger := make([]ledgerEntry, len(u.Ledger))
	for i, e := range u.Ledger {
		ledger[i] = ledgerEntry{Timestamp: e.Timestamp, Delta: e.Delta, Reason: e.Reason}
	}
	return userResponse{
		ID:          u.ID,
		Role:        u.Role,
		IsAdmin:     u.IsAdmin(),
		VideosCount: u.VideosCount,
		LostVideos:  u.LostVideos,
		Score:       u.Score(),
		Ledger:      ledger,
	}
}

type ideasRequest struct {
	Expertise string `json:"expertise"`
}

type chatRequest struct {
	Question string `json:"question"`
}
