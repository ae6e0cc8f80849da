package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/voxel-mapper/voxelcore/engine/voxel"
	"github.com/voxel-mapper/voxelcore/engine/world/mapdb"
	"gopkg.in/yaml.v3"
)

// UserConfig is the user facing configuration of an Engine, read from a TOML
// or YAML file.
type UserConfig struct {
	// Map holds settings related to the stored voxel map.
	Map struct {
		// SaveData controls whether the map is loaded from and saved to Folder.
		// If false, the engine starts with an empty map that is never stored.
		SaveData bool `toml:"save_data" yaml:"save_data"`
		// Folder is the folder holding the map database.
		Folder string `toml:"folder" yaml:"folder"`
		// Palette is the path of the TOML file describing the voxel types. It is
		// created with the default palette if it does not exist. If empty, the
		// palette stored with the map is used.
		Palette string `toml:"palette" yaml:"palette"`
		// SaveOnClose specifies if the map is saved when the engine closes.
		SaveOnClose bool `toml:"save_on_close" yaml:"save_on_close"`
	} `toml:"map" yaml:"map"`
	// Cache holds settings for the chunk cache of the grid.
	Cache struct {
		// BudgetMB is the memory in megabytes decompressed chunks may use before
		// the least recently used ones are compressed.
		BudgetMB int `toml:"budget_mb" yaml:"budget_mb"`
		// MaxCompressedPerTick caps the chunks compressed in a single tick. A
		// grid further over budget catches up over several ticks.
		MaxCompressedPerTick int `toml:"max_compressed_per_tick" yaml:"max_compressed_per_tick"`
		// FlushQueueSize is the number of local caches that can wait to be
		// returned to the grid.
		FlushQueueSize int `toml:"flush_queue_size" yaml:"flush_queue_size"`
	} `toml:"cache" yaml:"cache"`
	Processor struct {
		// Workers is the number of goroutines regenerating dirty chunks. Set to
		// 0 to use the host's CPU count.
		Workers int `toml:"workers" yaml:"workers"`
		// BatchSize is the number of chunks handed to a worker at once. Set to
		// 0 to use a default.
		BatchSize int `toml:"batch_size" yaml:"batch_size"`
	} `toml:"processor" yaml:"processor"`
	Tick struct {
		// Rate is the number of ticks run per second.
		Rate int `toml:"rate" yaml:"rate"`
	} `toml:"tick" yaml:"tick"`
	Metrics struct {
		// Address is the address on which Prometheus metrics are served. If
		// empty, metrics are not served.
		Address string `toml:"address" yaml:"address"`
	} `toml:"metrics" yaml:"metrics"`
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.Map.SaveData = true
	c.Map.Folder = "map"
	c.Map.Palette = "palette.toml"
	c.Map.SaveOnClose = true
	c.Cache.BudgetMB = 1024
	c.Cache.MaxCompressedPerTick = 50
	c.Cache.FlushQueueSize = 64
	c.Tick.Rate = 20
	return c
}

// Config converts the user configuration into a Config. The palette file is
// created with voxel.DefaultPalette if it does not exist, and the map database
// is opened if SaveData is set.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	conf := Config{
		Log:                  log,
		CacheBudget:          uc.Cache.BudgetMB << 20,
		MaxCompressedPerTick: uc.Cache.MaxCompressedPerTick,
		FlushQueueSize:       uc.Cache.FlushQueueSize,
		Workers:              uc.Processor.Workers,
		BatchSize:            uc.Processor.BatchSize,
		SaveOnClose:          uc.Map.SaveOnClose,
	}
	if uc.Tick.Rate > 0 {
		conf.TickInterval = time.Second / time.Duration(uc.Tick.Rate)
	}
	if file := strings.TrimSpace(uc.Map.Palette); file != "" {
		pal, err := loadPalette(file)
		if err != nil {
			return conf, fmt.Errorf("load palette: %w", err)
		}
		conf.Palette = pal
	}
	if uc.Map.SaveData {
		db, err := mapdb.Config{Log: log}.Open(uc.Map.Folder)
		if err != nil {
			return conf, fmt.Errorf("create map provider: %w", err)
		}
		conf.DB = db
	}
	return conf, nil
}

// loadPalette reads the palette at path, writing the default palette there
// first if the file does not exist.
func loadPalette(path string) (voxel.Palette, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := voxel.WritePalette(path, voxel.DefaultPalette()); err != nil {
			return voxel.Palette{}, err
		}
	}
	return voxel.LoadPalette(path)
}

// LoadUserConfig reads the configuration file at path. Files ending in .yaml
// or .yml are decoded as YAML, anything else as TOML. If the file does not
// exist, it is created holding DefaultConfig.
func LoadUserConfig(path string) (UserConfig, error) {
	c := DefaultConfig()
	marshal, unmarshal := toml.Marshal, toml.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		marshal, unmarshal = yaml.Marshal, yaml.Unmarshal
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		data, err := marshal(c)
		if err != nil {
			return c, fmt.Errorf("encode default config: %v", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return c, fmt.Errorf("create default config: %v", err)
		}
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %v", err)
	}
	if err := unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("decode config: %v", err)
	}
	return c, nil
}
