package sortmedia

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sort-media/internal/testsupport"
	"github.com/user/sort-media/pkg"
	"github.com/user/sort-media/pkg/config"
)

type fixture struct {
	src  string
	dest string

	exifFile   string
	nameFile   string
	folderFile string
	no         string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	src := t.TempDir()
	f := fixture{src: src, dest: filepath.Join(t.TempDir(), "sorted")}
	f.exifFile = testsupport.WriteExifJPEG(t, src, "camera.jpg", time.Date(2018, time.April, 9, 14, 30, 5, 0, time.UTC))
	f.nameFile = testsupport.WriteFile(t, src, "20230714_party.jpg", []byte("party"))
	f.folderFile = testsupport.WriteFile(t, src, filepath.Join("Trip 2016-08", "IMG_4711.jpg"), []byte("trip"))
	f.no = testsupport.WriteFile(t, src, filepath.Join("misc", "IMG_4712.jpg"), []byte("undated"))
	testsupport.WriteFile(t, src, "notes.txt", []byte("not an image"))
	return f
}

func (f fixture) options(mode pkg.Mode) SortOptions {
	return SortOptions{
		Src:           f.src,
		Dest:          f.dest,
		Mode:          mode,
		Scan:          pkg.ScanOptions{Recursive: true},
		UseFolderDate: true,
		Fallback:      pkg.FallbackNone,
		Progress:      "never",
	}
}

func resultFor(t *testing.T, results []pkg.PlacementResult, src string) pkg.PlacementResult {
	t.Helper()
	for _, r := range results {
		if r.Source == src {
			return r
		}
	}
	t.Fatalf("no result for %s", src)
	return pkg.PlacementResult{}
}

func TestRunSortCopy(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer
	opts := f.options(pkg.ModeCopy)
	opts.Out = &out
	opts.ReportPath = filepath.Join(f.dest, "report.txt")

	run, err := RunSort(opts)
	require.NoError(t, err)
	require.Len(t, run.Results, 4)

	exif := resultFor(t, run.Results, f.exifFile)
	assert.Equal(t, pkg.SourceEXIF, exif.DateSource)
	assert.Equal(t, filepath.Join(f.dest, "2018", "04", "camera.jpg"), exif.Destination)

	name := resultFor(t, run.Results, f.nameFile)
	assert.Equal(t, pkg.SourceFilename, name.DateSource)
	assert.FileExists(t, filepath.Join(f.dest, "2023", "07", "20230714_party.jpg"))

	folder := resultFor(t, run.Results, f.folderFile)
	assert.Equal(t, pkg.SourceFolder, folder.DateSource)
	assert.FileExists(t, filepath.Join(f.dest, "2016", "08", "IMG_4711.jpg"))

	undated := resultFor(t, run.Results, f.no)
	assert.Equal(t, pkg.ActionSkipped, undated.Action)

	// Copy leaves sources alone.
	for _, p := range []string{f.exifFile, f.nameFile, f.folderFile, f.no} {
		assert.FileExists(t, p)
	}

	assert.Equal(t, 3, run.Summary.Placed())
	assert.Contains(t, out.String(), "Sort summary")
	assert.FileExists(t, opts.ReportPath)
	assert.NoFileExists(t, filepath.Join(f.dest, LockFileName))
}

func TestRunSortMoveTwiceIsStable(t *testing.T) {
	f := newFixture(t)

	_, err := RunSort(f.options(pkg.ModeMove))
	require.NoError(t, err)
	assert.NoFileExists(t, f.nameFile)
	assert.FileExists(t, f.no)

	// Sorting the sorted tree again leaves every file where it is.
	again := f.options(pkg.ModeMove)
	again.Src = f.dest
	run, err := RunSort(again)
	require.NoError(t, err)
	require.Len(t, run.Results, 3)
	for _, r := range run.Results {
		assert.Equal(t, pkg.ActionSkipped, r.Action, r.Source)
		assert.Equal(t, "already in place", r.Reason)
	}
}

func TestRunSortDryRunLeavesDestinationAbsent(t *testing.T) {
	f := newFixture(t)

	run, err := RunSort(f.options(pkg.ModeDryRun))
	require.NoError(t, err)
	assert.True(t, run.Summary.DryRun)
	assert.Equal(t, 3, run.Summary.Placed())
	assert.NoDirExists(t, f.dest)
	assert.FileExists(t, f.nameFile)
}

func TestRunSortExplicitPaths(t *testing.T) {
	f := newFixture(t)
	opts := f.options(pkg.ModeCopy)
	opts.Paths = []string{f.nameFile, filepath.Join(f.src, "notes.txt")}

	run, err := RunSort(opts)
	require.NoError(t, err)
	require.Len(t, run.Results, 1)
	assert.Equal(t, f.nameFile, run.Results[0].Source)
}

func TestRunSortRefusesLockedDestination(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.dest, 0o755))

	held := flock.New(filepath.Join(f.dest, LockFileName))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	_, err = RunSort(f.options(pkg.ModeCopy))
	assert.ErrorIs(t, err, ErrLocked)
	assert.NoDirExists(t, filepath.Join(f.dest, "2023"))
}

func TestRunSortContinuesPastUnwritableDestination(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	src := t.TempDir()
	dest := t.TempDir()
	blocked := testsupport.WriteFile(t, src, "20230714_a.jpg", []byte("a"))
	next := testsupport.WriteFile(t, src, "20240102_b.jpg", []byte("b"))

	monthDir := filepath.Join(dest, "2023", "07")
	require.NoError(t, os.MkdirAll(monthDir, 0o755))
	require.NoError(t, os.Chmod(monthDir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(monthDir, 0o755) })

	run, err := RunSort(SortOptions{
		Src:      src,
		Dest:     dest,
		Mode:     pkg.ModeCopy,
		Scan:     pkg.ScanOptions{Recursive: true},
		Fallback: pkg.FallbackNone,
		Progress: "never",
	})
	require.NoError(t, err)
	require.Len(t, run.Results, 2)

	failed := resultFor(t, run.Results, blocked)
	assert.Equal(t, pkg.ActionFailed, failed.Action)
	assert.Error(t, failed.Err)
	assert.NoFileExists(t, filepath.Join(monthDir, "20230714_a.jpg"))

	placed := resultFor(t, run.Results, next)
	assert.Equal(t, pkg.ActionCopied, placed.Action)
	assert.FileExists(t, filepath.Join(dest, "2024", "01", "20240102_b.jpg"))
	assert.Equal(t, 1, run.Summary.ByAction[pkg.ActionFailed])
}

func TestRunSortMissingSource(t *testing.T) {
	opts := SortOptions{Src: filepath.Join(t.TempDir(), "nope"), Dest: t.TempDir(), Mode: pkg.ModeCopy}
	_, err := RunSort(opts)
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Sort.Mode = "copy"
	cfg.Sort.Fallback = "date"
	cfg.Sort.FallbackDate = "2004-05-06"
	cfg.Sort.AllFiles = true

	opts, err := OptionsFromConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, pkg.ModeCopy, opts.Mode)
	assert.Equal(t, pkg.FallbackDate, opts.Fallback)
	assert.Equal(t, time.Date(2004, 5, 6, 0, 0, 0, 0, time.UTC), opts.FallbackDate)
	assert.True(t, opts.Scan.AllFiles)
	assert.True(t, opts.Scan.Recursive)

	cfg.Sort.Mode = "link"
	_, err = OptionsFromConfig(&cfg)
	assert.Error(t, err)
}

func TestProgressEnabled(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, progressEnabled("always", &buf))
	assert.False(t, progressEnabled("never", os.Stdout))
	assert.False(t, progressEnabled("auto", &buf))
}

func TestRunDupes(t *testing.T) {
	dest := t.TempDir()
	src := t.TempDir()
	testsupport.WriteFile(t, dest, filepath.Join("2019", "01", "IMG_1.jpg"), []byte("one"))
	testsupport.WriteFile(t, dest, filepath.Join("2020", "05", "IMG_1.jpg"), []byte("one"))
	testsupport.WriteFile(t, src, "IMG_1.jpg", []byte("one"))
	missing := testsupport.WriteFile(t, src, "IMG_2.jpg", []byte("two"))

	var out bytes.Buffer
	res, err := RunDupes(DupesOptions{Dest: dest, Src: src, Content: true, Out: &out})
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, []pkg.ContentMatch{pkg.MatchIdentical}, res.Groups[0].Matches)
	assert.Equal(t, []string{missing}, res.Missing)
	assert.Contains(t, out.String(), "1 source file(s) not found")
}

func TestRunDupesNothingFound(t *testing.T) {
	dest := t.TempDir()
	testsupport.WriteFile(t, dest, "a.jpg", []byte("a"))

	var out bytes.Buffer
	res, err := RunDupes(DupesOptions{Dest: dest, Out: &out})
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
	assert.Contains(t, out.String(), "No duplicate file names found.")

	_, err = RunDupes(DupesOptions{Dest: filepath.Join(dest, "a.jpg")})
	assert.Error(t, err)
}
