package mapdb

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

// SerializedMap is a whole map in a flat form, used for bulk export and
// import.
type SerializedMap struct {
	ID      uuid.UUID
	Palette voxel.Palette
	Chunks  []SerializedChunk
}

// SerializedChunk is a chunk in the form produced by chunk.Compress.
type SerializedChunk struct {
	Key  chunk.Key
	Data []byte
}

// Serialize exports every chunk of g in Morton order.
func Serialize(id uuid.UUID, g *world.Grid, pal voxel.Palette) (SerializedMap, error) {
	m := SerializedMap{ID: id, Palette: pal}
	err := g.ExportCompressed(func(key chunk.Key, data []byte) error {
		m.Chunks = append(m.Chunks, SerializedChunk{Key: key, Data: data})
		return nil
	})
	return m, err
}

// Deserialize inserts the chunks of m into g in their compressed form. Every
// chunk is decompressed once to validate it first, so g is left unchanged if
// any chunk is corrupt.
func (m SerializedMap) Deserialize(g *world.Grid) error {
	for _, c := range m.Chunks {
		if _, err := chunk.Decompress(c.Key, c.Data); err != nil {
			return fmt.Errorf("load %v: %w", c.Key, err)
		}
	}
	for _, c := range m.Chunks {
		g.InsertCompressed(c.Key, c.Data)
	}
	return nil
}

// Import replaces the stored map with m.
func (db *DB) Import(m SerializedMap) error {
	g := world.NewGrid()
	if err := m.Deserialize(g); err != nil {
		return err
	}
	return db.Save(g, m.Palette)
}
