package realtime

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a Redis server, e.g. REDIS_URL=redis://localhost:6379/0.
func TestRedisRelay_SharesEventsBetweenInstances(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hubA, hubB := NewHub(), NewHub()
	defer hubA.Close()
	defer hubB.Close()

	relayA, err := NewRedisRelay(ctx, redisURL, hubA, testLogger())
	require.NoError(t, err)
	defer relayA.Close()
	relayB, err := NewRedisRelay(ctx, redisURL, hubB, testLogger())
	require.NoError(t, err)
	defer relayB.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{}, 2)
	for _, r := range []*RedisRelay{relayA, relayB} {
		go func(r *RedisRelay) {
			r.Run(runCtx)
			done <- struct{}{}
		}(r)
	}
	defer func() {
		stop()
		<-done
		<-done
	}()

	inA := make(chan domain.Event, 8)
	inB := make(chan domain.Event, 8)
	require.NoError(t, hubA.Subscribe("a", inA))
	require.NoError(t, hubB.Subscribe("b", inB))

	ev := domain.Event{Type: domain.EventSharesChanged, PostID: "p1", ShareCount: 1}
	notified := 0
	// Publish until B's subscription is live.
	waitFor(t, func() bool {
		relayA.Notify(ctx, ev)
		notified++
		select {
		case got := <-inB:
			assert.Equal(t, ev, got)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	})

	// A delivered each event locally once and ignored its own relayed copies.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, uint64(notified), hubA.Stats().TotalPublished)
}

// stalledRedis accepts connections and never answers.
func stalledRedis(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		<-done
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestRedisRelay_NotifyDoesNotWaitForRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:         stalledRedis(t),
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	hub := NewHub()
	defer hub.Close()
	relay := newRedisRelay(client, hub, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(runDone)
	}()

	n := 2*relayBuffer + 10
	start := time.Now()
	for i := 0; i < n; i++ {
		relay.Notify(context.Background(), domain.Event{Type: domain.EventLikesChanged, PostID: "p1", LikeCount: i})
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, uint64(n), hub.Stats().TotalPublished)

	cancel()
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop")
	}
}
