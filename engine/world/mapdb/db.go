// Package mapdb persists voxel maps in a LevelDB database. Chunks are stored
// in their compressed form, each guarded by an xxhash checksum.
package mapdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/df-mc/goleveldb/leveldb/util"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

var (
	// ErrChunkSize is returned when opening a map saved with a different
	// chunk size.
	ErrChunkSize = errors.New("mapdb: chunk size mismatch")
	// ErrVersion is returned when opening a map written in an older record
	// format.
	ErrVersion = errors.New("mapdb: unsupported version")
	// ErrChecksum is returned when a stored chunk does not match its checksum.
	ErrChecksum = errors.New("mapdb: checksum mismatch")
	// ErrRecord is returned for chunk records that cannot be parsed.
	ErrRecord = errors.New("mapdb: malformed chunk record")
)

const version = 2

var (
	keyHeader  = []byte("header")
	keyPalette = []byte("palette")
	// Chunk records are keyed by this prefix followed by chunk.Key.AppendBytes.
	prefixChunk = []byte{'c'}
)

type header struct {
	Version   int    `toml:"version"`
	ID        string `toml:"id"`
	ChunkSize int    `toml:"chunk_size"`
}

// Config holds the settings of a DB.
type Config struct {
	// Log is the Logger used by the DB. If nil, slog.Default() is used.
	Log *slog.Logger
	// ID is the map id written into a new database. If zero, a random one is
	// generated. It is ignored for existing databases.
	ID uuid.UUID
}

// DB is a voxel map stored in a LevelDB database.
type DB struct {
	conf Config
	ldb  *leveldb.DB
	id   uuid.UUID
}

// Open opens the database at dir, creating it if it does not exist.
func (conf Config) Open(dir string) (*DB, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	ldb, err := leveldb.OpenFile(dir, &opt.Options{
		// Chunk data is already compressed.
		Compression: opt.NoCompression,
		BlockSize:   16 * opt.KiB,
	})
	if err != nil {
		return nil, fmt.Errorf("open map db: %w", err)
	}
	db := &DB{conf: conf, ldb: ldb}
	if err := db.readHeader(); err != nil {
		_ = ldb.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) readHeader() error {
	data, err := db.ldb.Get(keyHeader, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		db.id = db.conf.ID
		if db.id == uuid.Nil {
			db.id = uuid.New()
		}
		data, err := toml.Marshal(header{Version: version, ID: db.id.String(), ChunkSize: chunk.Size})
		if err != nil {
			return fmt.Errorf("encode header: %w", err)
		}
		if err := db.ldb.Put(keyHeader, data, nil); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		db.conf.Log.Debug("Created new map.", "id", db.id)
		return nil
	} else if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	var h header
	if err := toml.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	if h.ChunkSize != chunk.Size {
		return fmt.Errorf("%w: stored %d, expected %d", ErrChunkSize, h.ChunkSize, chunk.Size)
	}
	if h.Version != version {
		return fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if db.id, err = uuid.Parse(h.ID); err != nil {
		return fmt.Errorf("decode map id: %w", err)
	}
	return nil
}

// ID returns the id of the map.
func (db *DB) ID() uuid.UUID { return db.id }

// Close closes the database.
func (db *DB) Close() error {
	return db.ldb.Close()
}

// Save replaces the stored map with the chunks of g and the palette pal. Live
// chunks are compressed for storage without changing their state in g. An
// empty pal is stored as voxel.DefaultPalette.
func (db *DB) Save(g *world.Grid, pal voxel.Palette) error {
	batch := new(leveldb.Batch)

	it := db.ldb.NewIterator(util.BytesPrefix(prefixChunk), nil)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}

	if pal.Len() == 0 {
		pal = voxel.DefaultPalette()
	}
	data, err := pal.MarshalTOML()
	if err != nil {
		return fmt.Errorf("encode palette: %w", err)
	}
	batch.Put(keyPalette, data)

	n := 0
	err = g.ExportCompressed(func(key chunk.Key, data []byte) error {
		batch.Put(recordKey(key), encodeRecord(data))
		n++
		return nil
	})
	if err != nil {
		return err
	}
	if err := db.ldb.Write(batch, nil); err != nil {
		return fmt.Errorf("write map: %w", err)
	}
	db.conf.Log.Debug("Saved map.", "id", db.id, "chunks", n)
	return nil
}

// Load reads the stored map into g and returns its palette. Every chunk is
// validated before any is inserted, so g is left unchanged on error. Chunks
// are inserted compressed. A map saved without a palette uses
// voxel.DefaultPalette.
func (db *DB) Load(g *world.Grid) (voxel.Palette, error) {
	m, err := db.Serialized()
	if err != nil {
		return voxel.Palette{}, err
	}
	if err := m.Deserialize(g); err != nil {
		return voxel.Palette{}, err
	}
	db.conf.Log.Debug("Loaded map.", "id", db.id, "chunks", len(m.Chunks))
	return m.Palette, nil
}

// Serialized reads the whole stored map without validating chunk data.
// Checksums are verified.
func (db *DB) Serialized() (SerializedMap, error) {
	m := SerializedMap{ID: db.id}
	data, err := db.ldb.Get(keyPalette, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		m.Palette = voxel.DefaultPalette()
	case err != nil:
		return m, fmt.Errorf("read palette: %w", err)
	default:
		if m.Palette, err = voxel.UnmarshalPalette(data); err != nil {
			return m, err
		}
	}

	it := db.ldb.NewIterator(util.BytesPrefix(prefixChunk), nil)
	defer it.Release()
	for it.Next() {
		key, err := parseRecordKey(it.Key())
		if err != nil {
			return m, err
		}
		data, err := decodeRecord(it.Value())
		if err != nil {
			return m, fmt.Errorf("load %v: %w", key, err)
		}
		m.Chunks = append(m.Chunks, SerializedChunk{Key: key, Data: data})
	}
	if err := it.Error(); err != nil {
		return m, fmt.Errorf("list chunks: %w", err)
	}
	return m, nil
}

func recordKey(key chunk.Key) []byte {
	b := make([]byte, 0, len(prefixChunk)+chunk.KeyBytes)
	return key.AppendBytes(append(b, prefixChunk...))
}

func parseRecordKey(b []byte) (chunk.Key, error) {
	key, ok := chunk.KeyFromBytes(b[len(prefixChunk):])
	if !ok {
		return chunk.Key{}, fmt.Errorf("%w: key of %d bytes", ErrRecord, len(b))
	}
	return key, nil
}

// encodeRecord prefixes data with its little endian xxhash64 checksum.
func encodeRecord(data []byte) []byte {
	b := make([]byte, 8, 8+len(data))
	binary.LittleEndian.PutUint64(b, xxhash.Sum64(data))
	return append(b, data...)
}

func decodeRecord(b []byte) ([]byte, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("%w: value of %d bytes", ErrRecord, len(b))
	}
	data := b[8:]
	if binary.LittleEndian.Uint64(b) != xxhash.Sum64(data) {
		return nil, ErrChecksum
	}
	return append([]byte(nil), data...), nil
}
