// Package processor regenerates the collision entries of dirty chunks on a
// pool of workers and applies them to a two level collision index.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/voxel-mapper/voxelcore/engine/world"
	"github.com/voxel-mapper/voxelcore/engine/world/bvt"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

// ErrClosed is returned by Process once the Processor was closed.
var ErrClosed = errors.New("processor: closed")

// Processor owns a collision index and keeps it in sync with the chunks of a
// grid. Process must be called from a single goroutine; View may be called
// concurrently with it.
type Processor struct {
	conf Config

	mu    sync.RWMutex
	index *bvt.Index

	jobs    chan job
	running sync.WaitGroup
	closed  atomic.Bool
	once    sync.Once
}

type job struct {
	grid *world.Grid
	keys []chunk.Key
	resp chan<- batchResult
	n    int
}

type batchResult struct {
	n       int
	results []Result
	cache   *world.LocalCache
}

// Summary counts the outcomes of a call to Process.
type Summary struct {
	Chunks   int
	Inserted int
	Removed  int
	Failed   int
}

// View calls f with the collision index while holding a read lock. f must not
// retain x.
func (p *Processor) View(f func(x *bvt.Index)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f(p.index)
}

// Process regenerates the collision entry of every chunk in dirty, reading
// voxels from g. Entries are applied to the index in Morton order of the
// chunk keys and passed to the Handler in the same order. If ctx is cancelled
// before every batch was handed to a worker, the batches already running are
// still applied and ctx.Err() is returned.
func (p *Processor) Process(ctx context.Context, g *world.Grid, dirty world.DirtySet) (Summary, error) {
	if p.closed.Load() {
		return Summary{}, ErrClosed
	}
	keys := dirty.Keys()
	batches := (len(keys) + p.conf.BatchSize - 1) / p.conf.BatchSize
	resp := make(chan batchResult, batches)

	var err error
	sent := 0
	for n := range batches {
		j := job{grid: g, keys: keys[n*p.conf.BatchSize : min((n+1)*p.conf.BatchSize, len(keys))], resp: resp, n: n}
		select {
		case p.jobs <- j:
			sent++
			p.conf.Metrics.IncBatches()
			continue
		case <-ctx.Done():
			err = ctx.Err()
		}
		break
	}

	ordered := make([][]Result, batches)
	for range sent {
		b := <-resp
		ordered[b.n] = b.results
		if b.cache != nil {
			g.Flush(b.cache)
		}
	}

	var s Summary
	p.mu.Lock()
	for _, results := range ordered {
		for _, res := range results {
			p.apply(res, &s)
		}
	}
	p.mu.Unlock()

	for _, results := range ordered {
		for _, res := range results {
			p.conf.Handler.HandleChunk(res)
		}
	}
	return s, err
}

func (p *Processor) apply(res Result, s *Summary) {
	s.Chunks++
	p.conf.Metrics.ObserveResult(res)
	switch {
	case res.Failed:
		s.Failed++
	case res.Tree == nil:
		if p.index.RemoveChunk(res.Key) {
			s.Removed++
		}
	default:
		p.index.InsertChunk(res.Key, res.Tree)
		s.Inserted++
	}
}

// Close stops the workers of p after the batches in flight are done.
func (p *Processor) Close() error {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.jobs)
	})
	p.running.Wait()
	return nil
}

// worker handles batches until the Processor is closed.
func (p *Processor) worker() {
	defer p.running.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

// run generates the entries of a batch with a fresh LocalCache, then hands the
// cache back to the grid.
func (p *Processor) run(j job) {
	cache := world.NewLocalCache()
	r := j.grid.Reader(cache)
	results := make([]Result, 0, len(j.keys))
	for _, key := range j.keys {
		results = append(results, p.generate(r, key))
	}
	if p.conf.Flusher != nil {
		p.conf.Flusher.Flush(cache)
		cache = nil
	}
	j.resp <- batchResult{n: j.n, results: results, cache: cache}
}

func (p *Processor) generate(r world.Reader, key chunk.Key) (res Result) {
	defer func() {
		if v := recover(); v != nil {
			p.conf.Log.Error("process chunk: panic",
				"error", fmt.Sprint(v),
				"chunk", key.String(),
			)
			res = Result{Key: key, Failed: true}
		}
	}()
	ext := key.Extent()
	occ := bvt.PaletteOccupancy{Source: r.Copy(ext.Padded(1)), Palette: p.conf.Palette}
	res.Key = key
	if tree, ok := bvt.GenerateChunkIndex(occ, ext); ok {
		res.Tree, res.Surface = tree, tree.Len()
	}
	return res
}
