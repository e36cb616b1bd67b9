package main

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	sortmedia "github.com/user/sort-media/cmd/sortmedia/lib"
	"github.com/user/sort-media/pkg/config"
	"github.com/user/sort-media/pkg/logging"
	"github.com/user/sort-media/pkg/version"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatalf("Application Error: %v", err)
	}
}

func newApp(out io.Writer) *cli.App {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "print the version",
	}

	return &cli.App{
		Name:      "sortmedia",
		Usage:     "Copy or move images into year/month folders",
		UsageText: "sortmedia [global options] [sort options] [paths...]\n   sortmedia [global options] command [command options]",
		Version:   version.String(),
		Writer:    out,
		Flags:     append(globalFlags(), sortFlags()...),
		Action:    sortAction(out),
		Commands: []*cli.Command{
			{
				Name:      "sort",
				Usage:     "Sort files into YYYY/MM folders (default command)",
				ArgsUsage: "[paths...]",
				Flags:     sortFlags(),
				Action:    sortAction(out),
			},
			{
				Name:  "dupes",
				Usage: "Find file names present in more than one folder",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dest",
						Aliases: []string{"d"},
						Usage:   "folder to check for duplicate names (default: paths.dest)",
					},
					&cli.StringFlag{
						Name:    "src",
						Aliases: []string{"s"},
						Usage:   "also list files in this folder whose name is not in dest",
					},
					&cli.BoolFlag{
						Name:  "content",
						Usage: "compare the content of files sharing a name",
					},
					&cli.BoolFlag{
						Name:  "ignore-case",
						Usage: "treat names differing only in case as the same",
					},
				},
				Action: dupesAction(out),
			},
			{
				Name:  "config",
				Usage: "Print a sample configuration file",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprint(out, config.SampleConfig())
					return err
				},
			},
			{
				Name:  "version",
				Usage: "Print detailed version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(out, "Version:    %s\n", version.Version)
					fmt.Fprintf(out, "Git commit: %s\n", version.GitCommit)
					fmt.Fprintf(out, "Built:      %s\n", version.BuildTime)
					return nil
				},
			},
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path of a TOML config file (default: ./" + config.DefaultConfigFile + " if present)",
			EnvVars: []string{"SORT_MEDIA_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "text or json",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "also append log entries to this file",
		},
	}
}

func sortFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "src",
			Aliases: []string{"s"},
			Usage:   "path of source folder. Default is current folder",
		},
		&cli.StringFlag{
			Name:    "dest",
			Aliases: []string{"d"},
			Usage:   "path of destination folder. Default is current folder",
		},
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   `mode can be one of "move", "copy", "dryrun" (default)`,
		},
		&cli.BoolFlag{
			Name:  "recursive",
			Usage: "descend into sub folders (default true)",
		},
		&cli.BoolFlag{
			Name:    "all",
			Aliases: []string{"a"},
			Usage:   "sort every file, not only images",
		},
		&cli.BoolFlag{
			Name:  "no-folder-date",
			Usage: "do not take dates from folder names",
		},
		&cli.StringFlag{
			Name:  "fallback",
			Usage: "date when nothing else is found: none, modtime, birthtime, now or date",
		},
		&cli.StringFlag{
			Name:  "fallback-date",
			Usage: "YYYY-MM-DD used by --fallback date",
		},
		&cli.BoolFlag{
			Name:  "skip-identical",
			Usage: "skip files whose content already exists under the destination name",
		},
		&cli.IntFlag{
			Name:  "min-year",
			Usage: "earliest plausible year",
		},
		&cli.StringFlag{
			Name:    "report",
			Aliases: []string{"r"},
			Usage:   "write a text report to this file",
		},
		&cli.StringFlag{
			Name:  "progress",
			Usage: "progress bar: auto, always or never",
		},
	}
}

// setIn returns the innermost context in which flag was given, or nil. The
// sort flags exist both before and after the "sort" command name, and a
// context only consults its own flag set once it defines the flag.
func setIn(c *cli.Context, flag string) *cli.Context {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(flag) {
			return ctx
		}
	}
	return nil
}

// loadConfig reads the config file and applies every flag the user set.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, _, _, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	setString := func(flag string, dst *string) {
		if ctx := setIn(c, flag); ctx != nil {
			*dst = ctx.String(flag)
		}
	}
	setBool := func(flag string, dst *bool, negate bool) {
		if ctx := setIn(c, flag); ctx != nil {
			*dst = ctx.Bool(flag) != negate
		}
	}

	setString("log-level", &cfg.Logging.Level)
	setString("log-format", &cfg.Logging.Format)
	setString("log-file", &cfg.Logging.File)

	setString("src", &cfg.Paths.Src)
	setString("dest", &cfg.Paths.Dest)
	setString("report", &cfg.Paths.Report)
	setString("mode", &cfg.Sort.Mode)
	setString("fallback", &cfg.Sort.Fallback)
	setString("fallback-date", &cfg.Sort.FallbackDate)
	setString("progress", &cfg.Sort.Progress)
	setBool("recursive", &cfg.Sort.Recursive, false)
	setBool("all", &cfg.Sort.AllFiles, false)
	setBool("no-folder-date", &cfg.Sort.UseFolderDate, true)
	setBool("skip-identical", &cfg.Sort.SkipIdentical, false)
	if ctx := setIn(c, "min-year"); ctx != nil {
		cfg.Sort.MinYear = ctx.Int("min-year")
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) (*log.Logger, func() error, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Output: out,
	})
}

func sortAction(out io.Writer) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		logger, closeLog, err := newLogger(cfg, out)
		if err != nil {
			return err
		}
		defer closeLog()

		opts, err := sortmedia.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		opts.Paths = c.Args().Slice()
		opts.Out = out
		opts.Log = logger

		_, err = sortmedia.RunSort(opts)
		return err
	}
}

func dupesAction(out io.Writer) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		logger, closeLog, err := newLogger(cfg, out)
		if err != nil {
			return err
		}
		defer closeLog()

		src := ""
		if setIn(c, "src") != nil {
			src = cfg.Paths.Src
		}
		_, err = sortmedia.RunDupes(sortmedia.DupesOptions{
			Dest:       cfg.Paths.Dest,
			Src:        src,
			Content:    c.Bool("content"),
			IgnoreCase: c.Bool("ignore-case"),
			Scan:       sortmedia.ScanOptionsFromConfig(cfg),
			Out:        out,
			Log:        logger,
		})
		return err
	}
}
