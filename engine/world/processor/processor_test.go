package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world"
	"github.com/voxel-mapper/voxelcore/engine/world/bvt"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

var solid = voxel.New(1, -1)

type recordingHandler struct {
	mu      sync.Mutex
	results []Result
}

func (h *recordingHandler) HandleChunk(res Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, res)
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fill writes solid voxels over ext into g, chunk by chunk.
func fill(g *world.Grid, ext cube.Extent) world.DirtySet {
	dirty := make(world.DirtySet)
	for key := range chunk.KeysOverlapping(ext) {
		c, ok := g.Chunk(key)
		if ok {
			c = c.Clone()
		} else {
			c = chunk.New(key, voxel.Ambient)
		}
		for p := range ext.Intersection(key.Extent()).Points() {
			c.Set(p, solid)
		}
		g.WriteChunk(key, c)
		dirty.Add(key)
	}
	return dirty
}

func newProcessor(t *testing.T, conf Config) (*Processor, *bvt.Index) {
	t.Helper()
	if conf.Log == nil {
		conf.Log = quietLog()
	}
	index := bvt.NewIndex()
	p := conf.New(index)
	t.Cleanup(func() { _ = p.Close() })
	return p, index
}

func TestProcessCubeShell(t *testing.T) {
	g := world.NewGrid()
	dirty := fill(g, cube.ExtentFromMinMax(cube.Pos{7, 7, 7}, cube.Pos{9, 9, 9}))

	h := &recordingHandler{}
	p, index := newProcessor(t, Config{Workers: 2, Handler: h})

	s, err := p.Process(context.Background(), g, dirty)
	require.NoError(t, err)
	require.Equal(t, Summary{Chunks: 1, Inserted: 1}, s)

	tree, ok := index.Chunk(chunk.Key{})
	require.True(t, ok)
	require.Equal(t, 26, tree.Len())

	require.Len(t, h.results, 1)
	require.Equal(t, 26, h.results[0].Surface)
	require.False(t, h.results[0].Failed)
}

func TestProcessReadsNeighbourChunks(t *testing.T) {
	g := world.NewGrid()
	dirty := fill(g, cube.ExtentFromMinMax(cube.Pos{0, 0, 0}, cube.Pos{31, 15, 15}))

	p, index := newProcessor(t, Config{Workers: 2})
	_, err := p.Process(context.Background(), g, dirty)
	require.NoError(t, err)

	// The face shared by both chunks is buried, so it holds no surface voxels.
	tree, ok := index.Chunk(chunk.Key{})
	require.True(t, ok)
	require.Equal(t, chunk.Volume-15*14*14, tree.Len())
}

func TestProcessRemovesEmptiedChunk(t *testing.T) {
	g := world.NewGrid()
	dirty := fill(g, cube.ExtentAt(cube.Pos{3, 3, 3}))

	p, index := newProcessor(t, Config{Workers: 1})
	_, err := p.Process(context.Background(), g, dirty)
	require.NoError(t, err)
	require.Equal(t, 1, index.Len())

	g.WriteChunk(chunk.Key{}, chunk.New(chunk.Key{}, voxel.Ambient))
	s, err := p.Process(context.Background(), g, dirty)
	require.NoError(t, err)
	require.Equal(t, 1, s.Removed)
	require.Equal(t, 0, index.Len())
}

func TestProcessRecoversFromPanic(t *testing.T) {
	g := world.NewGrid()
	dirty := fill(g, cube.ExtentAt(cube.Pos{3, 3, 3}))

	metrics := NewMetrics(prometheus.NewRegistry())
	p, index := newProcessor(t, Config{Workers: 1, Metrics: metrics})
	_, err := p.Process(context.Background(), g, dirty)
	require.NoError(t, err)

	// Corrupt data makes decompression panic inside the job.
	g.InsertCompressed(chunk.Key{}, []byte{0xff, 0xff, 0xff})
	s, err := p.Process(context.Background(), g, dirty)
	require.NoError(t, err)
	require.Equal(t, 1, s.Failed)

	tree, ok := index.Chunk(chunk.Key{})
	require.True(t, ok, "failed chunk lost its previous entry")
	require.Equal(t, 1, tree.Len())
}

func TestProcessOrdersResultsByMorton(t *testing.T) {
	g := world.NewGrid()
	dirty := make(world.DirtySet)
	for x := range 4 {
		for z := range 4 {
			dirty.Merge(fill(g, cube.ExtentAt(chunk.KeyFromIndex(x, 0, z).Pos())))
		}
	}

	h := &recordingHandler{}
	p, _ := newProcessor(t, Config{Workers: 4, BatchSize: 1, Handler: h})
	_, err := p.Process(context.Background(), g, dirty)
	require.NoError(t, err)

	want := dirty.Keys()
	require.Len(t, h.results, len(want))
	for i, res := range h.results {
		if res.Key != want[i] {
			t.Fatalf("result %d: expected chunk %v, got %v", i, want[i], res.Key)
		}
	}
}

func TestProcessFlushesWorkerCaches(t *testing.T) {
	g := world.NewGrid()
	c := chunk.New(chunk.Key{}, voxel.Ambient)
	c.Set(cube.Pos{1, 1, 1}, solid)
	g.WriteChunk(chunk.Key{}, c)
	require.True(t, g.CompressLRU())

	flusher, receiver := world.NewFlushChannel(4, quietLog())
	p, _ := newProcessor(t, Config{Workers: 1, Flusher: flusher})

	dirty := world.DirtySet{chunk.Key{}: {}}
	_, err := p.Process(context.Background(), g, dirty)
	require.NoError(t, err)
	require.True(t, g.IsCompressed(chunk.Key{}))

	s := receiver.Drain(g)
	require.Equal(t, 1, s.Accepted)
	require.False(t, g.IsCompressed(chunk.Key{}))
}

func TestProcessDirectFlushWithoutFlusher(t *testing.T) {
	g := world.NewGrid()
	g.WriteChunk(chunk.Key{}, chunk.New(chunk.Key{}, solid))
	require.True(t, g.CompressLRU())

	p, _ := newProcessor(t, Config{Workers: 1})
	_, err := p.Process(context.Background(), g, world.DirtySet{chunk.Key{}: {}})
	require.NoError(t, err)
	require.False(t, g.IsCompressed(chunk.Key{}))
}

func TestProcessCancelled(t *testing.T) {
	g := world.NewGrid()
	dirty := fill(g, cube.ExtentAt(cube.Pos{3, 3, 3}))

	p, index := newProcessor(t, Config{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// With the context already cancelled, the single batch may or may not be
	// dispatched, but the call must return and never leave the index half
	// written.
	s, err := p.Process(ctx, g, dirty)
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 0, s.Chunks)
		require.Equal(t, 0, index.Len())
		return
	}
	require.Equal(t, 1, index.Len())
}

func TestProcessAfterClose(t *testing.T) {
	p, _ := newProcessor(t, Config{Workers: 1})
	require.NoError(t, p.Close())

	_, err := p.Process(context.Background(), world.NewGrid(), world.DirtySet{})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMetricsCountResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveResult(Result{Surface: 4, Tree: bvt.NewTree[cube.Pos]()})
	m.ObserveResult(Result{})
	m.ObserveResult(Result{Failed: true})

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := make(map[string]float64)
	for _, f := range families {
		if f.GetMetric()[0].GetCounter() != nil {
			counts[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.Equal(t, 2.0, counts["voxel_processor_chunks_total"])
	require.Equal(t, 1.0, counts["voxel_processor_removed_chunks_total"])
	require.Equal(t, 1.0, counts["voxel_processor_panics_total"])

	var nilMetrics *Metrics
	nilMetrics.ObserveResult(Result{})
	nilMetrics.IncBatches()
}
