package pkg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/djherbis/times"
	"github.com/sirupsen/logrus"

	"github.com/user/sort-media/pkg/logging"
)

// ErrDestinationExists is returned when a placement would overwrite a file.
var ErrDestinationExists = errors.New("destination already exists")

// maxCollisionSuffix bounds the search for a free "-N" name.
const maxCollisionSuffix = 9999

// Mode selects what the placer does with a file.
type Mode string

const (
	ModeDryRun Mode = "dryrun"
	ModeCopy   Mode = "copy"
	ModeMove   Mode = "move"
)

// ParseMode validates a mode name. An empty name is a dry run.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDryRun, ModeCopy, ModeMove:
		return m, nil
	case "":
		return ModeDryRun, nil
	}
	return "", fmt.Errorf("unknown mode %q (want move, copy or dryrun)", s)
}

// PlacerOptions configures a Placer.
type PlacerOptions struct {
	DestRoot string
	Mode     Mode
	// SkipIdentical skips a file when the colliding destination file has the
	// same content instead of placing it under a new name.
	SkipIdentical bool
	Log           logrus.FieldLogger
}

// Placer moves or copies files into DestRoot/YYYY/MM. It remembers which
// folders it created and which destination names it handed out, so one run
// never assigns the same name twice, dry runs included.
type Placer struct {
	destRoot      string
	mode          Mode
	skipIdentical bool
	log           logrus.FieldLogger

	dirs    map[string]bool
	claimed map[string]bool
}

// NewPlacer returns a Placer for opts.
func NewPlacer(opts PlacerOptions) *Placer {
	p := &Placer{
		destRoot:      opts.DestRoot,
		mode:          opts.Mode,
		skipIdentical: opts.SkipIdentical,
		log:           opts.Log,
		dirs:          make(map[string]bool),
		claimed:       make(map[string]bool),
	}
	if p.mode == "" {
		p.mode = ModeDryRun
	}
	if p.log == nil {
		p.log = logging.Discard()
	}
	return p
}

// Mode reports the placer's mode.
func (p *Placer) Mode() Mode { return p.mode }

// Place puts one file where its date says it belongs. Failures are reported
// in the result; Place itself never stops a run.
func (p *Placer) Place(file MediaFile) PlacementResult {
	res := PlacementResult{
		Source:     file.Path,
		Mode:       p.mode,
		DateSource: file.Source,
		Date:       file.Date,
		DryRun:     p.mode == ModeDryRun,
	}
	log := p.log.WithField("file", file.Path)

	srcInfo, err := os.Stat(file.Path)
	if err != nil {
		return p.fail(res, log, fmt.Errorf("stat source: %w", err))
	}
	res.Size = srcInfo.Size()

	if !file.HasDate() {
		res.Action = ActionSkipped
		res.Reason = "no date found"
		log.Warn("Could not get date, skipping")
		return res
	}

	monthDir := TargetMonthDir(p.destRoot, file.Date)
	name := filepath.Base(file.Path)
	target := filepath.Join(monthDir, name)

	if samePath(file.Path, srcInfo, target) {
		res.Destination = target
		res.Action = ActionSkipped
		res.Reason = "already in place"
		p.claimed[filepath.Clean(target)] = true
		log.Debug("Already in place")
		return res
	}

	dest, renamed, identical, err := p.freeName(file.Path, monthDir, name)
	if err != nil {
		return p.fail(res, log, err)
	}
	res.Destination = dest

	if identical {
		res.Action = ActionSkipped
		res.Reason = "identical file already at destination"
		log.WithField("dest", dest).Info("Identical file already at destination, skipping")
		return res
	}

	res.Action = p.placedAction(renamed)
	if renamed {
		res.Reason = fmt.Sprintf("%s already taken", target)
	}

	if p.mode == ModeDryRun {
		p.claimed[filepath.Clean(dest)] = true
		log.WithFields(logrus.Fields{"dest": dest, "action": res.Action}).Info("Would have moved or copied")
		return res
	}

	if err := p.ensureDir(monthDir); err != nil {
		return p.fail(res, log, err)
	}

	switch p.mode {
	case ModeCopy:
		err = CopyFile(file.Path, dest)
	case ModeMove:
		err = MoveFile(file.Path, dest)
	}
	if err != nil {
		return p.fail(res, log, err)
	}

	p.claimed[filepath.Clean(dest)] = true
	verb := "Copied"
	if p.mode == ModeMove {
		verb = "Moved"
	}
	log.WithFields(logrus.Fields{"dest": dest, "source": file.Source}).Info(verb)
	return res
}

func (p *Placer) fail(res PlacementResult, log logrus.FieldLogger, err error) PlacementResult {
	res.Action = ActionFailed
	res.Err = err
	res.Reason = err.Error()
	log.WithError(err).Error("Cannot copy or move file")
	return res
}

func (p *Placer) placedAction(renamed bool) Action {
	switch {
	case renamed:
		return ActionRenamed
	case p.mode == ModeMove:
		return ActionMoved
	default:
		return ActionCopied
	}
}

// ensureDir creates dir once per run.
func (p *Placer) ensureDir(dir string) error {
	if p.dirs[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	p.dirs[dir] = true
	return nil
}

// freeName finds the first name in dir not on disk and not claimed this run,
// appending -1, -2, ... before the extension.
func (p *Placer) freeName(src, dir, name string) (dest string, renamed bool, identical bool, err error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 0; n <= maxCollisionSuffix; n++ {
		candidate := name
		if n > 0 {
			candidate = base + "-" + strconv.Itoa(n) + ext
		}
		path := filepath.Join(dir, candidate)

		if p.claimed[filepath.Clean(path)] {
			continue
		}
		if _, statErr := os.Lstat(path); statErr != nil {
			if os.IsNotExist(statErr) {
				return path, n > 0, false, nil
			}
			return "", false, false, fmt.Errorf("error checking target path %s: %w", path, statErr)
		}
		if p.skipIdentical {
			same, cmpErr := SameContent(src, path)
			if cmpErr != nil {
				p.log.WithError(cmpErr).WithField("dest", path).Debug("Could not compare with existing file")
			} else if same {
				return path, false, true, nil
			}
		}
	}
	return "", false, false, fmt.Errorf("no free name for %s in %s", name, dir)
}

// samePath reports whether src already is target.
func samePath(src string, srcInfo os.FileInfo, target string) bool {
	absSrc, err1 := filepath.Abs(src)
	absTarget, err2 := filepath.Abs(target)
	if err1 == nil && err2 == nil && absSrc == absTarget {
		return true
	}
	targetInfo, err := os.Stat(target)
	if err != nil {
		return false
	}
	return os.SameFile(srcInfo, targetInfo)
}

// CopyFile copies a file from srcPath to destPath without ever replacing an
// existing file. It ensures the destination directory exists, verifies the
// copied size and carries over access and modification times. A partial
// destination is removed on failure.
func CopyFile(srcPath, destPath string) (err error) {
	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory %s: %w", destDir, err)
	}

	sourceFile, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", srcPath, err)
	}
	defer sourceFile.Close()

	srcInfo, err := sourceFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %w", srcPath, err)
	}

	destinationFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, srcInfo.Mode().Perm())
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, destPath)
		}
		return fmt.Errorf("failed to create destination file %s: %w", destPath, err)
	}
	defer func() {
		if err != nil {
			_ = destinationFile.Close()
			_ = os.Remove(destPath)
		}
	}()

	written, err := io.Copy(destinationFile, sourceFile)
	if err != nil {
		return fmt.Errorf("failed to copy content from %s to %s: %w", srcPath, destPath, err)
	}
	if written != srcInfo.Size() {
		return fmt.Errorf("copy size mismatch for %s: source %d bytes, copied %d bytes", destPath, srcInfo.Size(), written)
	}
	if err = destinationFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync destination file %s: %w", destPath, err)
	}
	if err = destinationFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file %s: %w", destPath, err)
	}

	atime := srcInfo.ModTime()
	if ts, statErr := times.Stat(srcPath); statErr == nil {
		atime = ts.AccessTime()
	}
	if err = os.Chtimes(destPath, atime, srcInfo.ModTime()); err != nil {
		return fmt.Errorf("failed to set times on %s: %w", destPath, err)
	}
	return nil
}

// MoveFile moves srcPath to destPath without replacing an existing file.
// When a rename is not possible (for example across filesystems) the file is
// copied and the source deleted only once the copy has completed.
func MoveFile(srcPath, destPath string) error {
	if _, err := os.Lstat(destPath); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, destPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error checking target path %s: %w", destPath, err)
	}

	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory %s: %w", destDir, err)
	}

	renameErr := os.Rename(srcPath, destPath)
	if renameErr == nil {
		return nil
	}

	if err := CopyFile(srcPath, destPath); err != nil {
		return fmt.Errorf("failed to move %s to %s: rename: %v; copy: %w", srcPath, destPath, renameErr, err)
	}
	if err := os.Remove(srcPath); err != nil {
		return fmt.Errorf("copied %s to %s but could not remove source: %w", srcPath, destPath, err)
	}
	return nil
}
