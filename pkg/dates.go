package pkg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"github.com/sirupsen/logrus"

	"github.com/user/sort-media/pkg/logging"
)

// ErrNoExifDate is returned when EXIF data is found but no suitable date tag is present.
var ErrNoExifDate = errors.New("no EXIF date tag found")

// ErrNoDateInString is returned when a string carries no recognizable date.
var ErrNoDateInString = errors.New("no date found in string")

// ErrImplausibleDate is returned for dates outside the accepted year range or
// equal to a known camera placeholder.
var ErrImplausibleDate = errors.New("implausible date")

// DefaultMinYear is the earliest year accepted for a photo.
const DefaultMinYear = 1945

// exifLayouts are tried in order when parsing EXIF date strings.
var exifLayouts = []string{
	"2006:01:02 15:04:05",
	"2006:01:02",
	"2006-01-02 15:04:05",
}

// placeholderDates are values some cameras and tools write when the clock was
// never set.
var placeholderDates = []time.Time{
	time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
	time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
}

// Plausibility bounds the years accepted from metadata, filenames and folders.
type Plausibility struct {
	MinYear int
	MaxYear int
}

// DefaultPlausibility accepts years from DefaultMinYear to next year.
func DefaultPlausibility() Plausibility {
	return Plausibility{MinYear: DefaultMinYear, MaxYear: time.Now().Year() + 1}
}

// Check returns ErrImplausibleDate when t is zero or its year is out of
// range. Dates read from names and folders only need this check.
func (p Plausibility) Check(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("%w: zero time", ErrImplausibleDate)
	}
	if y := t.Year(); y < p.MinYear || y > p.MaxYear {
		return fmt.Errorf("%w: year %d outside %d-%d", ErrImplausibleDate, y, p.MinYear, p.MaxYear)
	}
	return nil
}

// CheckTimestamp is Check plus rejection of the placeholder timestamps cameras
// write when their clock was never set. Only full timestamps from metadata
// are held to it; a folder named 2000/01 is a real date.
func (p Plausibility) CheckTimestamp(t time.Time) error {
	if err := p.Check(t); err != nil {
		return err
	}
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	for _, placeholder := range placeholderDates {
		if wall.Equal(placeholder) {
			return fmt.Errorf("%w: placeholder %s", ErrImplausibleDate, t.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

// DateFromString returns the first plausible date found in text.
//
// A date is a year starting with 1 or 2, an optional separator (any of
// "-:\/_."), a two digit month, and optionally another separator and a two
// digit day. The match must not touch other digits. A missing or invalid day
// becomes the first of the month.
func (p Plausibility) DateFromString(text string) (time.Time, error) {
	for _, t := range findDates(text) {
		if p.Check(t) == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrNoDateInString, text)
}

// DateFromPath is DateFromString for directory paths, except that the last
// plausible match wins so the innermost folder takes precedence.
func (p Plausibility) DateFromPath(dir string) (time.Time, error) {
	dates := findDates(dir)
	for i := len(dates) - 1; i >= 0; i-- {
		if p.Check(dates[i]) == nil {
			return dates[i], nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrNoDateInString, dir)
}

// DateFromString uses DefaultPlausibility.
func DateFromString(text string) (time.Time, error) {
	return DefaultPlausibility().DateFromString(text)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isDateSeparator(b byte) bool { return strings.IndexByte(`-:\/_.`, b) >= 0 }

// findDates returns every syntactically valid date in text, in order.
func findDates(text string) []time.Time {
	var dates []time.Time
	for i := 0; i+6 <= len(text); i++ {
		if text[i] != '1' && text[i] != '2' {
			continue
		}
		if i > 0 && isDigit(text[i-1]) {
			continue
		}
		if t, ok := matchDateAt(text, i); ok {
			dates = append(dates, t)
		}
	}
	return dates
}

// matchDateAt tries to read YYYY[sep]MM([sep]DD)? starting at text[i].
func matchDateAt(text string, i int) (time.Time, bool) {
	pos := i
	if !digitsAt(text, pos, 4) {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(text[pos : pos+4])
	pos += 4
	if pos < len(text) && isDateSeparator(text[pos]) {
		pos++
	}
	if !digitsAt(text, pos, 2) {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(text[pos : pos+2])
	pos += 2
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	monthEnd := pos

	// Full date first, then year and month only.
	dayPos := pos
	if dayPos < len(text) && isDateSeparator(text[dayPos]) {
		dayPos++
	}
	if digitsAt(text, dayPos, 2) && (dayPos+2 == len(text) || !isDigit(text[dayPos+2])) {
		day, _ := strconv.Atoi(text[dayPos : dayPos+2])
		if t, ok := calendarDate(year, month, day); ok {
			return t, true
		}
		return calendarDate(year, month, 1)
	}
	if monthEnd < len(text) && isDigit(text[monthEnd]) {
		return time.Time{}, false
	}
	return calendarDate(year, month, 1)
}

func digitsAt(text string, pos, n int) bool {
	if pos+n > len(text) {
		return false
	}
	for k := pos; k < pos+n; k++ {
		if !isDigit(text[k]) {
			return false
		}
	}
	return true
}

func calendarDate(year, month, day int) (time.Time, bool) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// GetPhotoCreationDate extracts the creation date from a photo's EXIF data.
// It prioritizes DateTimeOriginal and falls back to DateTimeDigitized and
// then the IFD0 DateTime tag.
// Returns ErrNoExifDate if no suitable date tag is found.
func GetPhotoCreationDate(photoPath string) (time.Time, error) {
	file, err := os.Open(photoPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to open file %s: %w", photoPath, err)
	}
	defer file.Close()

	x, err := exif.Decode(file)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode EXIF data from %s: %w", photoPath, err)
	}

	var lastErr error
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		dateTag, err := x.Get(field)
		if err != nil {
			continue
		}
		t, err := parseExifDateTime(dateTag)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return time.Time{}, fmt.Errorf("%w in %s: %v", ErrNoExifDate, photoPath, lastErr)
	}
	return time.Time{}, fmt.Errorf("%w in %s", ErrNoExifDate, photoPath)
}

// parseExifDateTime parses an EXIF date tag.
func parseExifDateTime(tag *tiff.Tag) (time.Time, error) {
	if tag == nil {
		return time.Time{}, fmt.Errorf("tag is nil")
	}
	dateStr, err := tag.StringVal()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get string value from EXIF date tag: %w", err)
	}
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("empty EXIF date string")
	}

	for _, layout := range exifLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse EXIF date string '%s'", dateStr)
}

// FallbackPolicy selects the date used when no other strategy found one.
type FallbackPolicy string

const (
	FallbackNone      FallbackPolicy = "none"
	FallbackModTime   FallbackPolicy = "modtime"
	FallbackBirthTime FallbackPolicy = "birthtime"
	FallbackNow       FallbackPolicy = "now"
	FallbackDate      FallbackPolicy = "date"
)

// ParseFallbackPolicy validates a policy name.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case FallbackNone, FallbackModTime, FallbackBirthTime, FallbackNow, FallbackDate:
		return p, nil
	case "":
		return FallbackModTime, nil
	}
	return "", fmt.Errorf("unknown fallback policy %q (want none, modtime, birthtime, now or date)", s)
}

// Resolver picks a date for a file from EXIF, its name, its folder, and
// finally the configured fallback.
type Resolver struct {
	Plausibility  Plausibility
	UseFolderDate bool
	Fallback      FallbackPolicy
	FallbackDate  time.Time
	Now           func() time.Time
	Log           logrus.FieldLogger
}

// NewResolver returns a Resolver with the default plausibility range, folder
// dates enabled and the modification time fallback.
func NewResolver(log logrus.FieldLogger) *Resolver {
	return &Resolver{
		Plausibility:  DefaultPlausibility(),
		UseFolderDate: true,
		Fallback:      FallbackModTime,
		Now:           time.Now,
		Log:           log,
	}
}

func (r *Resolver) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logging.Discard()
	}
	return r.Log
}

// Resolve never fails. Unreadable metadata moves on to the next strategy; a
// file with no date at all comes back with SourceNone.
func (r *Resolver) Resolve(path string) MediaFile {
	file := MediaFile{Path: path}
	log := r.logger().WithField("file", path)

	exifDate, err := GetPhotoCreationDate(path)
	if err == nil {
		err = r.Plausibility.CheckTimestamp(exifDate)
	}
	if err == nil {
		file.Date, file.Source = exifDate, SourceEXIF
		return file
	}
	log.WithError(err).Debug("No usable EXIF date, trying filename")

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if t, err := r.Plausibility.DateFromString(stem); err == nil {
		file.Date, file.Source = t, SourceFilename
		return file
	}

	if r.UseFolderDate {
		dir := filepath.Dir(path)
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		if t, err := r.Plausibility.DateFromPath(dir); err == nil {
			file.Date, file.Source = t, SourceFolder
			return file
		}
		log.Debug("No date in filename or folder")
	} else {
		log.Debug("No date in filename")
	}

	switch r.Fallback {
	case FallbackModTime, FallbackBirthTime:
		ts, err := times.Stat(path)
		if err != nil {
			log.WithError(err).Warn("Could not stat file for fallback date")
			return file
		}
		file.Date, file.Source = ts.ModTime(), SourceModTime
		if r.Fallback == FallbackBirthTime && ts.HasBirthTime() {
			file.Date = ts.BirthTime()
		}
	case FallbackNow:
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		file.Date, file.Source = now(), SourceFallback
	case FallbackDate:
		if r.FallbackDate.IsZero() {
			log.Warn("Fallback date policy selected but no date configured")
			return file
		}
		file.Date, file.Source = r.FallbackDate, SourceFallback
	default:
		return file
	}

	if err := r.Plausibility.CheckTimestamp(file.Date); err != nil {
		log.WithError(err).WithField("source", file.Source).Warn("Fallback date looks wrong")
	}
	return file
}
