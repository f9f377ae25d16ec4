// Package feedui drives one viewer's feed: paging, optimistic engagement,
// moderation prompts and playback. User intents go in through
// Session.Dispatch and come back as an Outcome carrying a display message.
package feedui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/blackmichael/video-feed/internal/domain"
)

// Clipboard copies text for the user. It may be nil or fail, in which case
// the link is shown in the message instead.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// Services are the domain services a session calls.
type Services struct {
	Feed       *domain.FeedService
	Engagement *domain.EngagementService
	Moderation *domain.ModerationService
	Submit     *domain.SubmitService
}

// Options configure a Session.
type Options struct {
	PageSize           int
	DominanceThreshold float64
	Clipboard          Clipboard
	Confirmer          domain.Confirmer
}

// Session is the feed state of one viewer.
type Session struct {
	svc       Services
	clipboard Clipboard
	confirmer domain.Confirmer
	logger    *slog.Logger

	pager    *domain.FeedPager
	model    *FeedModel
	playback *domain.PlaybackCoordinator

	mu     sync.Mutex
	userID string
	media  map[string]domain.Media
}

// NewSession creates a signed-out session with an empty feed.
func NewSession(svc Services, opts Options, logger *slog.Logger) *Session {
	return &Session{
		svc:       svc,
		clipboard: opts.Clipboard,
		confirmer: opts.Confirmer,
		logger:    logger,
		pager:     domain.NewFeedPager(svc.Feed, opts.PageSize),
		model:     NewFeedModel(),
		playback:  domain.NewPlaybackCoordinator(opts.DominanceThreshold),
		media:     make(map[string]domain.Media),
	}
}

// Outcome is the visible result of an intent. Message is empty when there
// is nothing to tell the user. Err is the underlying failure, if any.
type Outcome struct {
	Message string
	Err     error
}

// Intent is a user action.
type Intent interface{ intent() }

type (
	// ScrolledNearEnd asks for the next page.
	ScrolledNearEnd struct{}

	// Refresh reloads the feed from the newest post.
	Refresh struct{}

	SignedIn  struct{ UserID string }
	SignedOut struct{}

	LikeClicked   struct{ PostID string }
	ShareClicked  struct{ PostID string }
	DeleteClicked struct{ PostID string }

	// VisibilityChanged reports the visible fraction of a post.
	VisibilityChanged struct {
		PostID string
		Ratio  float64
	}

	TogglePlay struct{ PostID string }
	ToggleMute struct{ PostID string }

	// SubmitPost creates a post as the signed-in user.
	SubmitPost struct{ Request domain.SubmitRequest }
)

func (ScrolledNearEnd) intent()   {}
func (Refresh) intent()           {}
func (SignedIn) intent()          {}
func (SignedOut) intent()         {}
func (LikeClicked) intent()       {}
func (ShareClicked) intent()      {}
func (DeleteClicked) intent()     {}
func (VisibilityChanged) intent() {}
func (TogglePlay) intent()        {}
func (ToggleMute) intent()        {}
func (SubmitPost) intent()        {}

// Dispatch applies one intent. It never panics on domain failures; they are
// turned into a message on the Outcome.
func (s *Session) Dispatch(ctx context.Context, in Intent) Outcome {
	var err error
	var msg string

	switch in := in.(type) {
	case ScrolledNearEnd:
		err = s.loadMore(ctx)
	case Refresh:
		err = s.reload(ctx)
	case SignedIn:
		s.setUser(in.UserID)
		err = s.reload(ctx)
	case SignedOut:
		s.setUser("")
		err = s.reload(ctx)
	case LikeClicked:
		err = s.like(ctx, in.PostID)
	case ShareClicked:
		msg, err = s.share(ctx, in.PostID)
	case DeleteClicked:
		msg, err = s.delete(ctx, in.PostID)
	case VisibilityChanged:
		s.playback.Observe(in.PostID, in.Ratio)
	case TogglePlay:
		_, err = s.playback.TogglePlayPause(in.PostID)
	case ToggleMute:
		_, err = s.playback.ToggleMute(in.PostID)
	case SubmitPost:
		msg, err = s.submit(ctx, in.Request)
	default:
		err = fmt.Errorf("unknown intent %T", in)
	}

	if err != nil {
		return Outcome{Message: userMessage(err), Err: err}
	}
	return Outcome{Message: msg}
}

// HandleEvent applies a realtime notification to the loaded feed.
func (s *Session) HandleEvent(e domain.Event) {
	s.model.ApplyEvent(e)
	if e.Type == domain.EventPostDeleted {
		s.forgetMedia(e.PostID)
	}
}

// UserID returns the signed-in user, or "".
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Items returns the loaded feed in order.
func (s *Session) Items() []Item { return s.model.Items() }

// Item returns one loaded post.
func (s *Session) Item(id string) (Item, bool) { return s.model.Item(id) }

// Done reports whether the end of the feed has been reached.
func (s *Session) Done() bool { return s.pager.Done() }

// Playback returns the playback state of a post.
func (s *Session) Playback(id string) domain.PlaybackState { return s.playback.State(id) }

// ActivePost returns the post currently owning playback.
func (s *Session) ActivePost() string { return s.playback.Active() }

// Media returns the media element registered for a post.
func (s *Session) Media(id string) (domain.Media, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.media[id]
	return m, ok
}

func (s *Session) setUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}

func (s *Session) loadMore(ctx context.Context) error {
	page, err := s.pager.Next(ctx)
	if err != nil {
		return err
	}
	for _, p := range s.model.Append(page.Posts, s.UserID()) {
		s.registerMedia(p)
	}
	return nil
}

// reload resets the pager and model and loads the first page.
func (s *Session) reload(ctx context.Context) error {
	s.pager.Reset()
	for _, id := range s.model.Clear() {
		s.forgetMedia(id)
	}
	return s.loadMore(ctx)
}

func (s *Session) registerMedia(p domain.Post) {
	var m domain.Media
	if id := domain.ExternalVideoID(p.MediaReference); p.IsExternalEmbed && id != "" {
		m = domain.NewEmbedMedia(domain.EmbedURL(id))
	} else {
		m = domain.NewNativeMedia()
	}
	s.playback.Register(p.ID, m)

	s.mu.Lock()
	s.media[p.ID] = m
	s.mu.Unlock()
}

func (s *Session) forgetMedia(id string) {
	s.playback.Unregister(id)
	s.mu.Lock()
	delete(s.media, id)
	s.mu.Unlock()
}

func (s *Session) like(ctx context.Context, postID string) error {
	userID := s.UserID()
	if userID == "" {
		return domain.ErrAuthRequired
	}
	wasLiked, ok := s.model.BeginLike(postID)
	if !ok {
		return nil
	}

	res, err := s.svc.Engagement.Like(ctx, postID, userID, wasLiked)
	if err != nil {
		s.model.RevertLike(postID, wasLiked)
		return err
	}
	s.model.CompleteLike(postID, res)
	return nil
}

func (s *Session) share(ctx context.Context, postID string) (string, error) {
	userID := s.UserID()
	if userID == "" {
		return "", domain.ErrAuthRequired
	}
	if !s.model.BeginShare(postID) {
		return "", nil
	}

	res, err := s.svc.Engagement.Share(ctx, postID, userID)
	if err != nil {
		s.model.EndShare(postID, -1)
		return "", err
	}
	s.model.EndShare(postID, res.ShareCount)

	if s.clipboard != nil {
		err := s.clipboard.Copy(ctx, res.MediaReference)
		if err == nil {
			return "Link copied to clipboard!", nil
		}
		s.logger.Warn("clipboard copy failed", "post", postID, "error", err)
	}
	return "Copy this link: " + res.MediaReference, nil
}

func (s *Session) delete(ctx context.Context, postID string) (string, error) {
	userID := s.UserID()
	if userID == "" {
		return "", domain.ErrAuthRequired
	}
	if !s.model.BeginDelete(postID) {
		return "", nil
	}
	defer s.model.EndDelete(postID)

	report, err := s.svc.Moderation.DeletePost(ctx, postID, userID, s.confirmer)
	if err != nil {
		return "", err
	}
	s.model.Remove(postID)
	s.forgetMedia(postID)

	if !report.Clean() {
		return "Post deleted with problems: " + strings.Join(report.Warnings, "; "), nil
	}
	return "Post deleted.", nil
}

func (s *Session) submit(ctx context.Context, req domain.SubmitRequest) (string, error) {
	req.UserID = s.UserID()
	if _, err := s.svc.Submit.Submit(ctx, req); err != nil {
		return "", err
	}
	if err := s.reload(ctx); err != nil {
		s.logger.Warn("reload after submit failed", "error", err)
	}
	return "Video posted!", nil
}

// userMessage turns an error into the text shown to the user. Dropped
// fetches and declined confirmations produce no message.
func userMessage(err error) string {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrFetchInProgress),
		errors.Is(err, domain.ErrPagerReset),
		errors.Is(err, domain.ErrCancelled):
		return ""
	case errors.Is(err, domain.ErrAuthRequired):
		return "Please sign in first."
	case errors.Is(err, domain.ErrForbidden):
		return "Only admins can delete posts."
	case errors.Is(err, domain.ErrNotFound):
		return "This video is no longer available."
	case errors.Is(err, domain.ErrAlreadyShared):
		return "You already shared this video."
	case errors.As(err, &ve):
		return strings.ToUpper(ve.Error()[:1]) + ve.Error()[1:] + "."
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "Connection problem. Please try again."
	default:
		return "Something went wrong."
	}
}
