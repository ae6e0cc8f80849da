package world

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// NewFlushChannel returns the two ends of a bounded channel of local caches.
// Workers hand their caches to the Flusher, and the goroutine owning the grid
// drains the Receiver into it.
func NewFlushChannel(size int, log *slog.Logger) (*Flusher, *Receiver) {
	if size <= 0 {
		size = 64
	}
	if log == nil {
		log = slog.Default()
	}
	ch := make(chan *LocalCache, size)
	return &Flusher{ch: ch, log: log, done: make(chan struct{})}, &Receiver{ch: ch}
}

// Flusher is the sending end of a flush channel. It is safe for concurrent use.
type Flusher struct {
	ch  chan *LocalCache
	log *slog.Logger

	saturation atomic.Uint64
	lastLog    atomic.Int64

	// mu guards closed and the registration of senders.
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	senders sync.WaitGroup
}

// Flush hands cache to the receiving end. The caller must not use cache
// afterwards. Flush never blocks: if the channel is full the cache is sent
// from a separate goroutine. Caches flushed after Close are dropped.
func (f *Flusher) Flush(cache *LocalCache) {
	if cache == nil || cache.Len() == 0 {
		return
	}
	select {
	case <-f.done:
		return
	default:
	}
	select {
	case f.ch <- cache:
	default:
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return
		}
		f.senders.Add(1)
		f.mu.Unlock()

		go func() {
			defer f.senders.Done()
			select {
			case f.ch <- cache:
			case <-f.done:
			}
		}()
		f.handleBackpressure()
	}
}

// Close stops the Flusher. Pending sends waiting on a full channel give up
// and their caches are dropped. Close waits for those sends to return.
func (f *Flusher) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	f.mu.Unlock()
	f.senders.Wait()
}

// handleBackpressure counts a full channel and logs at most once a minute.
func (f *Flusher) handleBackpressure() {
	count := f.saturation.Add(1)
	flushBackpressure.Inc()

	now := time.Now().UnixNano()
	last := f.lastLog.Load()
	if last != 0 && time.Duration(now-last) < time.Minute {
		return
	}
	if !f.lastLog.CompareAndSwap(last, now) {
		return
	}
	f.log.Warn("flush channel saturated: local caches are produced faster than they are drained.",
		"saturated_flushes", count,
		"queue_size", cap(f.ch),
	)
}

// Receiver is the receiving end of a flush channel.
type Receiver struct {
	ch chan *LocalCache
}

// FlushStats summarises a drain of a Receiver.
type FlushStats struct {
	Caches   int
	Accepted int
	Stale    int
}

// Drain flushes every cache currently queued into g without waiting for more.
func (r *Receiver) Drain(g *Grid) FlushStats {
	var s FlushStats
	for {
		select {
		case cache := <-r.ch:
			accepted, stale := g.Flush(cache)
			s.Caches++
			s.Accepted += accepted
			s.Stale += stale
		default:
			return s
		}
	}
}
