package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/user/sort-media/pkg"
	"github.com/user/sort-media/pkg/logging"
)

// FallbackDateLayout is the format of sort.fallback_date.
const FallbackDateLayout = "2006-01-02"

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSort(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.Src == "" {
		return errors.New("paths.src must be set")
	}
	if c.Paths.Dest == "" {
		return errors.New("paths.dest must be set")
	}
	return nil
}

func (c *Config) validateSort() error {
	if _, err := pkg.ParseMode(c.Sort.Mode); err != nil {
		return fmt.Errorf("sort.mode: %w", err)
	}
	policy, err := pkg.ParseFallbackPolicy(c.Sort.Fallback)
	if err != nil {
		return fmt.Errorf("sort.fallback: %w", err)
	}
	if policy == pkg.FallbackDate && c.Sort.FallbackDate == "" {
		return errors.New("sort.fallback_date must be set when sort.fallback is \"date\"")
	}
	if c.Sort.FallbackDate != "" {
		if _, err := c.ParsedFallbackDate(); err != nil {
			return err
		}
	}
	if c.Sort.MinYear < 1 || c.Sort.MinYear > time.Now().Year() {
		return fmt.Errorf("sort.min_year must be between 1 and %d, got %d", time.Now().Year(), c.Sort.MinYear)
	}
	switch c.Sort.Progress {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("sort.progress: unsupported value %q (want auto, always or never)", c.Sort.Progress)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
		return nil
	}
	return fmt.Errorf("log format: unsupported value %q", c.Logging.Format)
}

// ParsedFallbackDate parses sort.fallback_date. A zero time means unset.
func (c *Config) ParsedFallbackDate() (time.Time, error) {
	if c.Sort.FallbackDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(FallbackDateLayout, c.Sort.FallbackDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("sort.fallback_date must look like YYYY-MM-DD: %w", err)
	}
	return t, nil
}
