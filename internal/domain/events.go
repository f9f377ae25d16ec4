package domain

// EventType names a post change.
type EventType string

const (
	EventPostCreated   EventType = "post.created"
	EventPostDeleted   EventType = "post.deleted"
	EventLikesChanged  EventType = "post.likes"
	EventSharesChanged EventType = "post.shares"
)

// Event is published after a successful post mutation.
type Event struct {
	Type       EventType `json:"type"`
	PostID     string    `json:"postId"`
	LikeCount  int       `json:"likeCount,omitempty"`
	ShareCount int       `json:"shareCount,omitempty"`
}
