package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// DefaultConfigFile is looked up in the working directory when no config
// path is given.
const DefaultConfigFile = "sort-media.toml"

// Paths holds source, destination and report locations.
type Paths struct {
	Src    string `toml:"src"`
	Dest   string `toml:"dest"`
	Report string `toml:"report"`
}

// Sort holds the knobs for enumeration, date resolution and placement.
type Sort struct {
	Mode          string   `toml:"mode"`
	Recursive     bool     `toml:"recursive"`
	AllFiles      bool     `toml:"all_files"`
	Extensions    []string `toml:"extensions"`
	Ignore        []string `toml:"ignore"`
	UseFolderDate bool     `toml:"use_folder_date"`
	Fallback      string   `toml:"fallback"`
	FallbackDate  string   `toml:"fallback_date"`
	SkipIdentical bool     `toml:"skip_identical"`
	MinYear       int      `toml:"min_year"`
	Progress      string   `toml:"progress"`
}

// Logging holds logger settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Config is the complete sortmedia configuration.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Sort    Sort    `toml:"sort"`
	Logging Logging `toml:"logging"`
}

// Load reads the TOML file at path on top of Default, normalizes paths and
// validates the result. An empty path looks for DefaultConfigFile in the
// working directory, which may be absent. An explicit path must exist.
// It returns the config, the resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// SampleConfig returns a commented example configuration.
func SampleConfig() string {
	return sampleConfig
}

// Normalize trims values and expands user paths.
func (c *Config) Normalize() error {
	var err error
	if c.Paths.Src, err = ExpandPath(c.Paths.Src); err != nil {
		return err
	}
	if c.Paths.Dest, err = ExpandPath(c.Paths.Dest); err != nil {
		return err
	}
	if c.Paths.Report, err = ExpandPath(c.Paths.Report); err != nil {
		return err
	}
	if c.Logging.File, err = ExpandPath(c.Logging.File); err != nil {
		return err
	}
	c.Sort.Mode = strings.ToLower(strings.TrimSpace(c.Sort.Mode))
	c.Sort.Fallback = strings.ToLower(strings.TrimSpace(c.Sort.Fallback))
	c.Sort.FallbackDate = strings.TrimSpace(c.Sort.FallbackDate)
	c.Sort.Progress = strings.ToLower(strings.TrimSpace(c.Sort.Progress))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config %s: %w", expanded, err)
		}
		return expanded, true, nil
	}

	resolved, err := ExpandPath(DefaultConfigFile)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return resolved, false, nil
		}
		return "", false, fmt.Errorf("stat config %s: %w", resolved, err)
	}
	return resolved, true, nil
}

// ExpandPath expands a leading "~" and returns an absolute, clean path.
// Empty values stay empty.
func ExpandPath(pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
