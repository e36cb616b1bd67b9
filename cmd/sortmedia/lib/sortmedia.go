package sortmedia

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/user/sort-media/pkg"
	"github.com/user/sort-media/pkg/config"
	"github.com/user/sort-media/pkg/logging"
)

// LockFileName is created in the destination root while a run writes to it.
const LockFileName = ".sort-media.lock"

// ErrLocked is returned when another run holds the destination lock.
var ErrLocked = errors.New("another sort is already writing to this destination")

const progressTemplate = `{{counters . }} {{bar . }} {{percent . }} {{etime . }}`

// SortOptions configures one sort run.
type SortOptions struct {
	Src  string
	Dest string
	// Paths, when set, replaces scanning Src.
	Paths []string
	Mode  pkg.Mode
	Scan  pkg.ScanOptions

	UseFolderDate bool
	Fallback      pkg.FallbackPolicy
	FallbackDate  time.Time
	MinYear       int
	SkipIdentical bool

	ReportPath string
	// Progress is auto, always or never.
	Progress string
	Out      io.Writer
	Log      logrus.FieldLogger
}

// OptionsFromConfig maps a validated config onto SortOptions.
func OptionsFromConfig(cfg *config.Config) (SortOptions, error) {
	mode, err := pkg.ParseMode(cfg.Sort.Mode)
	if err != nil {
		return SortOptions{}, err
	}
	policy, err := pkg.ParseFallbackPolicy(cfg.Sort.Fallback)
	if err != nil {
		return SortOptions{}, err
	}
	fallbackDate, err := cfg.ParsedFallbackDate()
	if err != nil {
		return SortOptions{}, err
	}
	return SortOptions{
		Src:           cfg.Paths.Src,
		Dest:          cfg.Paths.Dest,
		Mode:          mode,
		Scan:          ScanOptionsFromConfig(cfg),
		UseFolderDate: cfg.Sort.UseFolderDate,
		Fallback:      policy,
		FallbackDate:  fallbackDate,
		MinYear:       cfg.Sort.MinYear,
		SkipIdentical: cfg.Sort.SkipIdentical,
		ReportPath:    cfg.Paths.Report,
		Progress:      cfg.Sort.Progress,
	}, nil
}

// ScanOptionsFromConfig returns the file filter settings of cfg.
func ScanOptionsFromConfig(cfg *config.Config) pkg.ScanOptions {
	return pkg.ScanOptions{
		Recursive:  cfg.Sort.Recursive,
		AllFiles:   cfg.Sort.AllFiles,
		Extensions: cfg.Sort.Extensions,
		Ignore:     cfg.Sort.Ignore,
	}
}

// RunResult is what a sort run produced.
type RunResult struct {
	Results []pkg.PlacementResult
	Summary pkg.Summary
}

// RunSort enumerates, dates and places every file, then prints a summary and
// writes the report if one is configured. Per-file failures are part of the
// result; an error means the run could not start or finish.
func RunSort(opts SortOptions) (RunResult, error) {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	if opts.Mode == "" {
		opts.Mode = pkg.ModeDryRun
	}

	log.WithFields(logrus.Fields{"src": opts.Src, "dest": opts.Dest, "mode": opts.Mode}).Info("Media sorter initializing")

	if opts.Mode != pkg.ModeDryRun {
		if err := ensureTargetDirectory(opts.Dest, log); err != nil {
			return RunResult{}, err
		}
		unlock, err := acquireLock(opts.Dest)
		if err != nil {
			return RunResult{}, err
		}
		defer unlock()
	}

	files, err := enumerate(opts, log)
	if err != nil {
		return RunResult{}, err
	}
	log.WithField("count", len(files)).Info("Found files to process")

	plausibility := pkg.DefaultPlausibility()
	if opts.MinYear > 0 {
		plausibility.MinYear = opts.MinYear
	}
	resolver := &pkg.Resolver{
		Plausibility:  plausibility,
		UseFolderDate: opts.UseFolderDate,
		Fallback:      opts.Fallback,
		FallbackDate:  opts.FallbackDate,
		Now:           time.Now,
		Log:           log,
	}
	placer := pkg.NewPlacer(pkg.PlacerOptions{
		DestRoot:      opts.Dest,
		Mode:          opts.Mode,
		SkipIdentical: opts.SkipIdentical,
		Log:           log,
	})

	var bar *pb.ProgressBar
	if len(files) > 0 && progressEnabled(opts.Progress, out) {
		bar = pb.New(len(files))
		bar.SetWriter(out)
		bar.SetTemplate(progressTemplate)
		bar.Start()
	}

	results := make([]pkg.PlacementResult, 0, len(files))
	for _, path := range files {
		media := resolver.Resolve(path)
		if media.HasDate() {
			log.WithFields(logrus.Fields{
				"file":   path,
				"date":   media.Date.Format("2006-01-02"),
				"source": media.Source,
			}).Debug("Resolved date")
		}
		results = append(results, placer.Place(media))
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	summary := pkg.Summarize(results)
	fmt.Fprintln(out, pkg.RenderSummary(summary))

	if opts.ReportPath != "" {
		if err := pkg.GenerateReport(opts.ReportPath, results); err != nil {
			return RunResult{Results: results, Summary: summary}, fmt.Errorf("failed to generate final report: %w", err)
		}
		log.WithField("report", opts.ReportPath).Info("Report generated")
	}

	log.WithFields(logrus.Fields{
		"placed": summary.Placed(),
		"failed": summary.ByAction[pkg.ActionFailed],
	}).Info("Finished")
	return RunResult{Results: results, Summary: summary}, nil
}

func enumerate(opts SortOptions, log logrus.FieldLogger) ([]string, error) {
	scanOpts := opts.Scan
	scanOpts.Log = log
	scanner, err := pkg.NewScanner(scanOpts)
	if err != nil {
		return nil, err
	}
	if len(opts.Paths) > 0 {
		return scanner.Collect(opts.Paths)
	}
	log.WithField("src", opts.Src).Info("Scanning source directory")
	return scanner.Scan(opts.Src)
}

// ensureTargetDirectory ensures the target base directory exists, creating it if necessary.
func ensureTargetDirectory(targetBaseDir string, log logrus.FieldLogger) error {
	info, err := os.Stat(targetBaseDir)
	if os.IsNotExist(err) {
		log.WithField("dest", targetBaseDir).Info("Target directory does not exist, creating it")
		if errMkdir := os.MkdirAll(targetBaseDir, 0755); errMkdir != nil {
			return fmt.Errorf("failed to create target base directory '%s': %w", targetBaseDir, errMkdir)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("error accessing target base directory '%s': %w", targetBaseDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target path '%s' is not a directory", targetBaseDir)
	}
	return nil
}

// acquireLock takes the destination lock. The returned func releases it and
// removes the lock file.
func acquireLock(dest string) (func(), error) {
	path := filepath.Join(dest, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return func() {
		_ = lock.Unlock()
		_ = os.Remove(path)
	}, nil
}

func progressEnabled(mode string, out io.Writer) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DupesOptions configures the duplicate finder.
type DupesOptions struct {
	Dest       string
	Src        string
	Content    bool
	IgnoreCase bool
	Scan       pkg.ScanOptions
	Out        io.Writer
	Log        logrus.FieldLogger
}

// DupesResult holds duplicate names under Dest and, when Src was given, the
// source files missing from Dest.
type DupesResult struct {
	Groups  []pkg.NameGroup
	Missing []string
}

// RunDupes reports file names found in more than one folder under Dest and
// the Src files whose name is nowhere under Dest.
func RunDupes(opts DupesOptions) (DupesResult, error) {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	info, err := os.Stat(opts.Dest)
	if err != nil {
		return DupesResult{}, fmt.Errorf("error accessing '%s': %w", opts.Dest, err)
	}
	if !info.IsDir() {
		return DupesResult{}, fmt.Errorf("%s is not a directory", opts.Dest)
	}

	nameOpts := pkg.NameOptions{IgnoreCase: opts.IgnoreCase, Content: opts.Content, Scan: opts.Scan}
	nameOpts.Scan.Log = log

	var res DupesResult
	res.Groups, err = pkg.FindDuplicateNames(opts.Dest, nameOpts)
	if err != nil {
		return DupesResult{}, err
	}
	for _, g := range res.Groups {
		dirs := make([]string, len(g.Paths))
		for i, p := range g.Paths {
			dirs[i] = filepath.Dir(p)
		}
		log.WithFields(logrus.Fields{"name": g.Name, "dirs": dirs}).Warn("Name found in more than one folder")
	}
	if len(res.Groups) > 0 {
		fmt.Fprintln(out, pkg.RenderDuplicates(res.Groups))
	} else {
		fmt.Fprintln(out, "No duplicate file names found.")
	}

	if opts.Src != "" {
		res.Missing, err = pkg.FindMissing(opts.Src, opts.Dest, nameOpts)
		if err != nil {
			return res, err
		}
		for _, p := range res.Missing {
			log.WithFields(logrus.Fields{"file": p, "dest": opts.Dest}).Info("NOT found in destination")
		}
		fmt.Fprintf(out, "%d source file(s) not found in %s\n", len(res.Missing), opts.Dest)
	}

	log.Info("Finished successfully")
	return res, nil
}
