package engine

import (
	"github.com/voxel-mapper/voxelcore/engine/world/processor"
)

// Handler handles events of an Engine. Methods are called from the goroutine
// running Engine.Tick.
type Handler interface {
	// HandleChunk handles a chunk whose collision entry was rebuilt. Mesh
	// consumers regenerate the chunk's mesh here.
	HandleChunk(res processor.Result)
	// HandleTick handles the end of a tick.
	HandleTick(stats TickStats)
}

// NopHandler implements the Handler interface but does not execute any code
// when an event is called. The default handler of engines is NopHandler.
// Users may embed NopHandler to avoid having to implement each method.
type NopHandler struct{}

// Compile time check to make sure NopHandler implements Handler.
var _ Handler = NopHandler{}

func (NopHandler) HandleChunk(processor.Result) {}
func (NopHandler) HandleTick(TickStats) {}

type handlerHolder struct{ h Handler }

// Handle changes the Handler of the Engine. A nil Handler is replaced with
// NopHandler.
func (e *Engine) Handle(h Handler) {
	if h == nil {
		h = NopHandler{}
	}
	e.handler.Store(&handlerHolder{h: h})
}

// Handler returns the current Handler of the Engine.
func (e *Engine) Handler() Handler {
	return e.handler.Load().h
}
