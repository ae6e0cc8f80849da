// Command dumpvoxels prints a summary of a stored voxel map: its id, palette
// and every chunk with its size, surface voxel count and content digest.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world"
	"github.com/voxel-mapper/voxelcore/engine/world/bvt"
	"github.com/voxel-mapper/voxelcore/engine/world/chunk"
	"github.com/voxel-mapper/voxelcore/engine/world/mapdb"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	verbose := flag.Bool("v", false, "print every chunk")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-v] <map folder>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := dump(os.Stdout, flag.Arg(0), *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "dumpvoxels:", err)
		os.Exit(1)
	}
}

func dump(w io.Writer, dir string, verbose bool) error {
	db, err := mapdb.Config{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}.Open(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := db.Serialized()
	if err != nil {
		return err
	}
	g := world.NewGrid()
	if err := m.Deserialize(g); err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(w, "map %v\n", m.ID)
	for t, info := range m.Palette.Infos() {
		p.Fprintf(w, "  type %d: empty=%v floor=%v material=%d\n", t, info.Flags.Empty, info.Flags.Floor, info.Material)
	}

	var bytes, surface int
	for _, c := range m.Chunks {
		n := surfaceVoxels(g, m.Palette, c.Key)
		bytes += len(c.Data)
		surface += n
		if verbose {
			ch, _ := g.Chunk(c.Key)
			p.Fprintf(w, "  %v: %d bytes, %d surface voxels, digest %016x\n", c.Key, len(c.Data), n, ch.Digest())
		}
	}
	p.Fprintf(w, "%d chunks, %d compressed bytes, %d surface voxels\n", len(m.Chunks), bytes, surface)
	return nil
}

func surfaceVoxels(g *world.Grid, pal voxel.Palette, key chunk.Key) int {
	ext := key.Extent()
	occ := bvt.PaletteOccupancy{Source: g.Reader(nil).Copy(ext.Padded(1)), Palette: pal}
	return len(bvt.SurfaceVoxels(occ, ext))
}
