package mapdb

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/voxel-mapper/voxelcore/engine/cube"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
)

func openDB(t *testing.T, dir string, id uuid.UUID) *DB {
	t.Helper()
	db, err := Config{Log: slog.New(slog.NewTextHandler(io.Discard, nil)), ID: id}.Open(dir)
	require.NoError(t, err)
	return db
}

// sampleGrid returns a grid with one live and one compressed chunk.
func sampleGrid(t *testing.T) (*world.Grid, []*chunk.Chunk) {
	t.Helper()
	g := world.NewGrid()
	a := chunk.New(chunk.Key{}, voxel.Ambient)
	a.Set(cube.Pos{1, 2, 3}, voxel.New(1, -0.5))
	b := chunk.New(chunk.KeyFromIndex(-1, 2, 0), voxel.New(1, -1))
	g.WriteChunk(b.Key(), b)
	require.True(t, g.CompressLRU())
	g.WriteChunk(a.Key(), a)
	return g, []*chunk.Chunk{a, b}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	g, chunks := sampleGrid(t)
	pal := voxel.NewPalette(
		voxel.Info{Flags: voxel.Flags{Empty: true}},
		voxel.Info{Flags: voxel.Flags{Floor: true}, Material: 3},
	)

	db := openDB(t, dir, id)
	require.NoError(t, db.Save(g, pal))
	require.NoError(t, db.Close())

	db = openDB(t, dir, uuid.Nil)
	defer db.Close()
	require.Equal(t, id, db.ID())

	loaded := world.NewGrid()
	gotPal, err := db.Load(loaded)
	require.NoError(t, err)
	require.Equal(t, pal.Infos(), gotPal.Infos())

	// Chunks are inserted without being decompressed.
	require.Equal(t, 0, loaded.LiveLen())
	for _, want := range chunks {
		require.True(t, loaded.IsCompressed(want.Key()))
		got, ok := loaded.Chunk(want.Key())
		require.True(t, ok)
		if !got.Equal(want) {
			t.Fatalf("chunk %v changed across save and load", want.Key())
		}
	}
}

func TestSaveReplacesPreviousChunks(t *testing.T) {
	dir := t.TempDir()
	g, _ := sampleGrid(t)
	db := openDB(t, dir, uuid.Nil)
	defer db.Close()
	require.NoError(t, db.Save(g, voxel.DefaultPalette()))

	small := world.NewGrid()
	small.WriteChunk(chunk.Key{}, chunk.New(chunk.Key{}, voxel.Ambient))
	require.NoError(t, db.Save(small, voxel.Palette{}))

	m, err := db.Serialized()
	require.NoError(t, err)
	require.Len(t, m.Chunks, 1)
	require.Equal(t, voxel.DefaultPalette().Infos(), m.Palette.Infos())
}

func TestLoadRejectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	g, _ := sampleGrid(t)
	db := openDB(t, dir, uuid.Nil)
	defer db.Close()
	require.NoError(t, db.Save(g, voxel.DefaultPalette()))

	key := recordKey(chunk.Key{})
	value, err := db.ldb.Get(key, nil)
	require.NoError(t, err)
	value[len(value)-1] ^= 0xff
	require.NoError(t, db.ldb.Put(key, value, nil))

	loaded := world.NewGrid()
	_, err = db.Load(loaded)
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
	require.Empty(t, loaded.Keys())
}

func TestLoadRejectsCorruptChunk(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir, uuid.Nil)
	defer db.Close()
	// A valid checksum over bytes that are not a compressed chunk.
	require.NoError(t, db.ldb.Put(recordKey(chunk.Key{}), encodeRecord([]byte("not a chunk")), nil))

	_, err := db.Load(world.NewGrid())
	if !errors.Is(err, chunk.ErrCorrupt) {
		t.Fatalf("expected chunk.ErrCorrupt, got %v", err)
	}
}

func TestOpenRejectsChunkSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	ldb, err := leveldb.OpenFile(dir, nil)
	require.NoError(t, err)
	require.NoError(t, ldb.Put(keyHeader, []byte("version = 1\nid = \""+uuid.NewString()+"\"\nchunk_size = 32\n"), nil))
	require.NoError(t, ldb.Close())

	_, err = Config{}.Open(dir)
	if !errors.Is(err, ErrChunkSize) {
		t.Fatalf("expected ErrChunkSize, got %v", err)
	}
}

func TestOpenRejectsOldVersion(t *testing.T) {
	dir := t.TempDir()
	ldb, err := leveldb.OpenFile(dir, nil)
	require.NoError(t, err)
	require.NoError(t, ldb.Put(keyHeader, []byte("version = 1\nid = \""+uuid.NewString()+"\"\nchunk_size = 16\n"), nil))
	require.NoError(t, ldb.Close())

	_, err = Config{}.Open(dir)
	require.ErrorIs(t, err, ErrVersion)
}

func TestSaveKeepsDistantChunksApart(t *testing.T) {
	dir := t.TempDir()
	g := world.NewGrid()
	// These keys share a Pack value.
	a := chunk.New(chunk.KeyFromIndex(1<<20, 0, 0), voxel.New(1, -1))
	b := chunk.New(chunk.KeyFromIndex(-1<<20, 0, 0), voxel.Ambient)
	b.Set(b.Key().Pos(), voxel.New(1, -1))
	require.Equal(t, a.Key().Pack(), b.Key().Pack())
	g.WriteChunk(a.Key(), a)
	g.WriteChunk(b.Key(), b)

	db := openDB(t, dir, uuid.Nil)
	require.NoError(t, db.Save(g, voxel.DefaultPalette()))
	require.NoError(t, db.Close())

	db = openDB(t, dir, uuid.Nil)
	defer db.Close()
	loaded := world.NewGrid()
	_, err := db.Load(loaded)
	require.NoError(t, err)
	require.Len(t, loaded.Keys(), 2)
	for _, want := range []*chunk.Chunk{a, b} {
		got, ok := loaded.Chunk(want.Key())
		require.True(t, ok, "%v lost", want.Key())
		require.True(t, got.Equal(want))
	}
}

func TestLoadWithoutPaletteUsesDefault(t *testing.T) {
	db := openDB(t, t.TempDir(), uuid.Nil)
	defer db.Close()
	pal, err := db.Load(world.NewGrid())
	require.NoError(t, err)
	require.Equal(t, voxel.DefaultPalette().Infos(), pal.Infos())
}

func TestSerializedMapImport(t *testing.T) {
	g, chunks := sampleGrid(t)
	m, err := Serialize(uuid.New(), g, voxel.DefaultPalette())
	require.NoError(t, err)
	require.Len(t, m.Chunks, 2)

	db := openDB(t, t.TempDir(), uuid.Nil)
	defer db.Close()
	require.NoError(t, db.Import(m))

	loaded := world.NewGrid()
	_, err = db.Load(loaded)
	require.NoError(t, err)
	for _, want := range chunks {
		got, ok := loaded.Chunk(want.Key())
		require.True(t, ok)
		require.True(t, got.Equal(want))
	}

	m.Chunks[0].Data = []byte{1, 2, 3}
	fresh := world.NewGrid()
	require.Error(t, m.Deserialize(fresh))
	require.Empty(t, fresh.Keys())
}

func TestRecordKeyRoundTrip(t *testing.T) {
	for _, key := range []chunk.Key{{}, chunk.KeyFromIndex(-5, 7, 1<<10), chunk.KeyFromIndex(1<<20, -1<<20, 1<<30)} {
		got, err := parseRecordKey(recordKey(key))
		require.NoError(t, err)
		require.Equal(t, key, got)
	}
	_, err := parseRecordKey([]byte("c12345678"))
	require.ErrorIs(t, err, ErrRecord)
}
