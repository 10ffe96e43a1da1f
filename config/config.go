package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// CoordinateSystem of the scene: Native, LeftHanded or RightHanded.
	CoordinateSystem string `yaml:"coordinate_system" toml:"coordinate_system"`
	// Encoding is a charmap name from ListEncodings.
	Encoding      string `yaml:"encoding" toml:"encoding"`
	Workers       int    `yaml:"workers" toml:"workers"`
	TextureFormat string `yaml:"texture_format" toml:"texture_format"`
	ServerAddr    string `yaml:"server_addr" toml:"server_addr"`
	AssetRoot     string `yaml:"asset_root" toml:"asset_root"`

	Vehicle VehicleDefaults `yaml:"vehicle" toml:"vehicle"`
}

// VehicleDefaults prefill the sidecar written next to saved vehicles.
type VehicleDefaults struct {
	Author  string `yaml:"author" toml:"author"`
	Website string `yaml:"website" toml:"website"`
}

func Default() *Config {
	return &Config{
		CoordinateSystem: "LeftHanded",
		Encoding:         "Windows 1252",
		Workers:          runtime.NumCPU(),
		TextureFormat:    "tif",
		ServerAddr:       ":8000",
		AssetRoot:        ".",
	}
}

// Load reads a yaml or toml file over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't expand %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read config")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return nil, errors.Errorf("Unknown config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse config %q", path)
	}

	if c.AssetRoot, err = homedir.Expand(c.AssetRoot); err != nil {
		return nil, errors.Wrapf(err, "Can't expand asset root %q", c.AssetRoot)
	}
	return c, c.Validate()
}

func (c *Config) Validate() error {
	if c.Workers < 1 {
		c.Workers = 1
	}
	switch strings.ToLower(c.TextureFormat) {
	case "tif", "tiff", "png", "bmp", "webp":
	default:
		return errors.Errorf("Unsupported texture format %q", c.TextureFormat)
	}
	return nil
}

// Apply pushes process wide settings (the text encoding).
func (c *Config) Apply() error {
	if c.Encoding == "" {
		return nil
	}
	return SetEncoding(c.Encoding)
}
