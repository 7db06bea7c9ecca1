// internal/screen/feed.go
package screen

import (
	"sync"

	"go.uber.org/zap"
)

// Feed is an in-process change-notification stream implementing
// schemas.ChangeFeed. External frame-difference detectors call Publish once
// per raw change; subscribers receive one value per event, dropped rather
// than queued when their buffer is full. The publisher is independently
// clocked and must never block on a slow consumer.
type Feed struct {
	logger *zap.Logger

	mu          sync.Mutex
	subscribers []chan struct{}
	bufferSize  int
	isShutdown  bool
}

// NewFeed creates a change feed. A non-positive buffer size gets a small
// default so a momentarily busy consumer doesn't lose single events.
func NewFeed(logger *zap.Logger, bufferSize int) *Feed {
	if bufferSize <= 0 {
		bufferSize = 4
	}
	return &Feed{
		logger:     logger.Named("screen_feed"),
		bufferSize: bufferSize,
	}
}

// Publish notifies every subscriber that the screen changed. Events for
// subscribers with full buffers are dropped; the debouncer downstream makes
// individual events non-critical.
func (f *Feed) Publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isShutdown {
		return
	}
	for _, ch := range f.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			f.logger.Debug("Dropping screen-change event for slow subscriber")
		}
	}
}

// Subscribe registers a listener. The returned function unregisters it and
// closes the channel; it is safe to call more than once.
func (f *Feed) Subscribe() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan struct{}, f.bufferSize)
	f.subscribers = append(f.subscribers, ch)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.isShutdown {
				return
			}
			for i, subscriberCh := range f.subscribers {
				if subscriberCh == ch {
					f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}

	return ch, unsubscribe
}

// Shutdown closes every subscriber channel and rejects further publishes.
func (f *Feed) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isShutdown {
		return
	}
	f.isShutdown = true
	for _, ch := range f.subscribers {
		close(ch)
	}
	f.subscribers = nil
}
