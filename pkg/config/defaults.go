package config

import (
	"github.com/user/sort-media/pkg"
)

const (
	defaultSrc       = "."
	defaultDest      = "."
	defaultMode      = "dryrun"
	defaultFallback  = "modtime"
	defaultProgress  = "auto"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Src:  defaultSrc,
			Dest: defaultDest,
		},
		Sort: Sort{
			Mode:          defaultMode,
			Recursive:     true,
			Ignore:        append([]string(nil), pkg.DefaultIgnorePatterns...),
			UseFolderDate: true,
			Fallback:      defaultFallback,
			MinYear:       pkg.DefaultMinYear,
			Progress:      defaultProgress,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
