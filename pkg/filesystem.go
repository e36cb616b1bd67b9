package pkg

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/user/sort-media/pkg/logging"
)

// imageExtensions maps common image file extensions to true.
// Used by Scanner and IsImageExtension.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".heic": true,
	".heif": true,
	".tif":  true,
	".tiff": true,
	".webp": true,
	".raw":  true,
	".cr2":  true,
	".cr3":  true,
	".nef":  true,
	".arw":  true,
	".orf":  true,
	".rw2":  true,
	".pef":  true,
	".dng":  true,
}

// DefaultIgnorePatterns are folder and file names never sorted. They are
// matched against base names.
var DefaultIgnorePatterns = []string{
	`^Picasa2`,
	`^Picasa2Albums`,
	`^\.Picasa3Temp`,
	`\.ini$`,
	`\.db$`,
	`\.json$`,
	`\.log$`,
	`\.rss$`,
	`\.url$`,
	`\.pmp$`,
}

// ImageExtensions returns the default image extensions, sorted.
func ImageExtensions() []string {
	exts := make([]string, 0, len(imageExtensions))
	for ext := range imageExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsImageExtension checks if the given filePath has a known image extension
// by comparing its lowercased extension against the imageExtensions map.
func IsImageExtension(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	_, exists := imageExtensions[ext]
	return exists
}

// ScanOptions controls which files a Scanner returns.
type ScanOptions struct {
	Recursive bool
	// AllFiles disables the extension filter.
	AllFiles bool
	// Extensions replaces the default image extensions when non-empty.
	Extensions []string
	// Ignore holds regular expressions matched against base names. Nil means
	// DefaultIgnorePatterns; an empty non-nil slice ignores nothing.
	Ignore []string
	Log    logrus.FieldLogger
}

// Scanner enumerates candidate files.
type Scanner struct {
	recursive  bool
	allFiles   bool
	extensions map[string]bool
	ignore     []*regexp.Regexp
	log        logrus.FieldLogger
}

// NewScanner compiles opts into a Scanner.
func NewScanner(opts ScanOptions) (*Scanner, error) {
	s := &Scanner{
		recursive:  opts.Recursive,
		allFiles:   opts.AllFiles,
		extensions: imageExtensions,
		log:        opts.Log,
	}
	if s.log == nil {
		s.log = logging.Discard()
	}

	if len(opts.Extensions) > 0 {
		s.extensions = make(map[string]bool, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extensions[ext] = true
		}
	}

	patterns := opts.Ignore
	if patterns == nil {
		patterns = DefaultIgnorePatterns
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		s.ignore = append(s.ignore, re)
	}
	return s, nil
}

// Ignored reports whether a base name is hidden or matches an ignore pattern.
func (s *Scanner) Ignored(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, re := range s.ignore {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Accepts reports whether a regular file should be processed.
func (s *Scanner) Accepts(path string) bool {
	if s.Ignored(filepath.Base(path)) {
		return false
	}
	if s.allFiles {
		return true
	}
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// Scan walks sourceDir and returns the accepted files, sorted. Entries that
// cannot be read are logged and skipped.
func (s *Scanner) Scan(sourceDir string) ([]string, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("source directory '%s' does not exist", sourceDir)
		}
		return nil, fmt.Errorf("error accessing source directory '%s': %w", sourceDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path '%s' is not a directory", sourceDir)
	}

	files := []string{}
	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.WithError(err).WithField("path", path).Warn("Error accessing path")
			if d != nil && d.IsDir() && path != sourceDir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == sourceDir {
				return nil
			}
			if !s.recursive || s.Ignored(d.Name()) {
				s.log.WithField("path", path).Debug("Ignoring folder")
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !s.Accepts(path) {
			s.log.WithField("path", path).Debug("Ignoring file")
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking through source directory '%s': %w", sourceDir, err)
	}

	sort.Strings(files)
	return files, nil
}

// Collect expands an explicit list of paths. Directories are scanned, files
// are kept when accepted. Duplicates are dropped and the input order kept.
func (s *Scanner) Collect(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("error accessing '%s': %w", p, err)
		}
		if info.IsDir() {
			found, err := s.Scan(p)
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				add(f)
			}
			continue
		}
		if !info.Mode().IsRegular() || !s.Accepts(p) {
			s.log.WithField("path", p).Info("Ignoring file")
			continue
		}
		add(p)
	}
	return files, nil
}

// ScanSourceDirectory recursively scans the source directory for image files
// using the default extensions and ignore patterns.
func ScanSourceDirectory(sourceDir string) ([]string, error) {
	s, err := NewScanner(ScanOptions{Recursive: true})
	if err != nil {
		return nil, err
	}
	return s.Scan(sourceDir)
}

// RelativeMonthPath maps a date to its YYYY/MM folder.
func RelativeMonthPath(date time.Time) string {
	return filepath.Join(date.Format("2006"), date.Format("01"))
}

// TargetMonthDir joins the YYYY/MM folder for date to targetBaseDir.
func TargetMonthDir(targetBaseDir string, date time.Time) string {
	return filepath.Join(targetBaseDir, RelativeMonthPath(date))
}

// CreateTargetDirectory creates the year/month directory structure (YYYY/MM)
// within the target base directory.
func CreateTargetDirectory(targetBaseDir string, date time.Time) (string, error) {
	monthDir := TargetMonthDir(targetBaseDir, date)
	if err := os.MkdirAll(monthDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create target directory %s: %w", monthDir, err)
	}
	return monthDir, nil
}
