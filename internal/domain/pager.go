package domain

import (
	"context"
	"errors"
	"sync"
)

// ErrPagerReset is returned by a fetch that completed after Reset. Its page
// belongs to the previous walk and has been discarded.
var ErrPagerReset = errors.New("feed reset during fetch")

// DefaultPageSize is the number of posts loaded per scroll.
const DefaultPageSize = 10

// pageFetcher is the part of FeedService a FeedPager needs.
type pageFetcher interface {
	FetchPage(ctx context.Context, cursor string, pageSize int) (*FeedPage, error)
}

// FeedPager walks the feed for one viewer. It owns the continuation cursor
// and end-of-feed flag, and allows at most one fetch in flight.
type FeedPager struct {
	feed     pageFetcher
	pageSize int

	mu       sync.Mutex
	cursor   string
	done     bool
	inFlight bool
	gen      uint64 // bumped by Reset so stale fetches don't overwrite state
}

// NewFeedPager returns a pager over feed. A non-positive pageSize uses
// DefaultPageSize.
func NewFeedPager(feed pageFetcher, pageSize int) *FeedPager {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &FeedPager{feed: feed, pageSize: pageSize}
}

// Next fetches the next page. When a fetch is already pending it returns
// ErrFetchInProgress without touching the store. After the last page has
// been seen it returns an empty last page until Reset.
func (p *FeedPager) Next(ctx context.Context) (*FeedPage, error) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return nil, ErrFetchInProgress
	}
	if p.done {
		p.mu.Unlock()
		return &FeedPage{IsLastPage: true}, nil
	}
	p.inFlight = true
	cursor, gen := p.cursor, p.gen
	p.mu.Unlock()

	page, err := p.feed.FetchPage(ctx, cursor, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.gen {
		p.inFlight = false
	}
	if err != nil {
		return nil, err
	}
	if gen != p.gen {
		return nil, ErrPagerReset
	}
	if page.Cursor != "" {
		p.cursor = page.Cursor
	}
	if page.IsLastPage {
		p.done = true
	}
	return page, nil
}

// Reset clears the cursor and end-of-feed flag so the next call starts from
// the newest post.
func (p *FeedPager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = ""
	p.done = false
	p.inFlight = false
	p.gen++
}

// Done reports whether the last page has been fetched.
func (p *FeedPager) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Cursor returns the cursor of the last fetched post.
func (p *FeedPager) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Generation identifies the current walk; it changes on every Reset.
func (p *FeedPager) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}
