package processor

import (
	"github.com/voxel-mapper/voxelcore/engine/world/bvt"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

// Result describes the outcome of processing one dirty chunk.
type Result struct {
	Key chunk.Key
	// Tree is the new collision entry of the chunk, nil if the chunk holds no
	// surface voxels.
	Tree *bvt.ChunkTree
	// Surface is the number of surface voxels in the chunk.
	Surface int
	// Failed is true if generating the entry panicked. The chunk keeps its
	// previous entry.
	Failed bool
}

// Handler handles chunks after their collision entry was updated. Methods are
// called serially from the goroutine running Processor.Process, in Morton
// order of the chunk keys.
type Handler interface {
	HandleChunk(res Result)
}

// NopHandler implements Handler without doing anything.
type NopHandler struct{}

// Compile time check to make sure NopHandler implements Handler.
var _ Handler = NopHandler{}

func (NopHandler) HandleChunk(Result) {}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(res Result)

func (f HandlerFunc) HandleChunk(res Result) { f(res) }
