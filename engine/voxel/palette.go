package voxel

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Flags holds the boolean properties of a voxel type.
type Flags struct {
	// Empty voxels are skipped when building collision geometry.
	Empty bool `toml:"empty"`
	// Floor voxels can be stood on.
	Floor bool `toml:"floor"`
}

// Info fully describes a voxel type.
type Info struct {
	Flags    Flags `toml:"flags"`
	Material uint8 `toml:"material"`
}

// Palette maps a Voxel's Type to its Info. Types outside the palette are
// treated as empty, non-floor voxels.
type Palette struct {
	infos []Info
}

// ErrEmptyPalette is returned when loading a palette without any types.
var ErrEmptyPalette = errors.New("voxel: palette holds no types")

// NewPalette creates a Palette from the infos passed, indexed by position.
func NewPalette(infos ...Info) Palette {
	return Palette{infos: append([]Info(nil), infos...)}
}

// DefaultPalette returns a palette with an empty type 0 and a solid floor type 1.
func DefaultPalette() Palette {
	return NewPalette(
		Info{Flags: Flags{Empty: true}},
		Info{Flags: Flags{Floor: true}, Material: 1},
	)
}

// Len returns the number of types in the palette.
func (p Palette) Len() int { return len(p.infos) }

// Infos returns a copy of every type in the palette.
func (p Palette) Infos() []Info { return append([]Info(nil), p.infos...) }

// Info looks up the Info of the voxel type t.
func (p Palette) Info(t uint8) (Info, bool) {
	if int(t) >= len(p.infos) {
		return Info{Flags: Flags{Empty: true}}, false
	}
	return p.infos[t], true
}

// IsEmpty reports if v has no collision geometry.
func (p Palette) IsEmpty(v Voxel) bool {
	info, _ := p.Info(v.Type)
	return info.Flags.Empty
}

// IsFloor reports if v can be stood on.
func (p Palette) IsFloor(v Voxel) bool {
	info, _ := p.Info(v.Type)
	return info.Flags.Floor
}

type paletteFile struct {
	Types []Info `toml:"types"`
}

// MarshalTOML encodes the palette as a TOML document.
func (p Palette) MarshalTOML() ([]byte, error) {
	return toml.Marshal(paletteFile{Types: p.infos})
}

// UnmarshalPalette decodes a palette previously encoded with MarshalTOML.
func UnmarshalPalette(data []byte) (Palette, error) {
	var f paletteFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return Palette{}, fmt.Errorf("decode palette: %w", err)
	}
	if len(f.Types) == 0 {
		return Palette{}, ErrEmptyPalette
	}
	return NewPalette(f.Types...), nil
}

// LoadPalette reads a TOML palette from the file at path.
func LoadPalette(path string) (Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Palette{}, fmt.Errorf("read palette: %w", err)
	}
	return UnmarshalPalette(data)
}

// WritePalette writes p as TOML to the file at path.
func WritePalette(path string, p Palette) error {
	data, err := p.MarshalTOML()
	if err != nil {
		return fmt.Errorf("encode palette: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write palette: %w", err)
	}
	return nil
}
