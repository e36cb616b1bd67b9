package pkg_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sort-media/pkg"
)

// createScanTestDir builds a tree under baseDir. Nil content means directory.
func createScanTestDir(t *testing.T, baseDir string, structure map[string][]byte) {
	t.Helper()
	for path, content := range structure {
		fullPath := filepath.Join(baseDir, path)
		if content == nil {
			require.NoError(t, os.MkdirAll(fullPath, 0755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
		require.NoError(t, os.WriteFile(fullPath, content, 0644))
	}
}

func joinAll(base string, rel []string) []string {
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(base, r)
	}
	return out
}

func TestScanSourceDirectory(t *testing.T) {
	tests := []struct {
		name          string
		structure     map[string][]byte
		sourceDir     string
		expectedFiles []string
		expectedErr   bool
	}{
		{
			name: "valid directory with images and non-images",
			structure: map[string][]byte{
				"img1.jpg":           []byte("fake jpg"),
				"img2.PNG":           []byte("fake png"),
				"doc.txt":            []byte("text file"),
				"subDir/img3.jpeg":   []byte("fake jpeg"),
				"subDir/another.doc": []byte("another text"),
				"subDir/emptyDir":    nil,
			},
			sourceDir:     ".",
			expectedFiles: []string{"img1.jpg", "img2.PNG", "subDir/img3.jpeg"},
		},
		{
			name:        "non-existent source directory",
			structure:   map[string][]byte{},
			sourceDir:   "non_existent_dir",
			expectedErr: true,
		},
		{
			name:          "empty source directory",
			structure:     map[string][]byte{},
			sourceDir:     ".",
			expectedFiles: []string{},
		},
		{
			name: "hidden and ignored entries",
			structure: map[string][]byte{
				"keep.jpg":               []byte("x"),
				".hidden.jpg":            []byte("x"),
				".thumbs/a.jpg":          []byte("x"),
				"Picasa2/b.jpg":          []byte("x"),
				".Picasa3Temp/c.jpg":     []byte("x"),
				"album/desktop.ini":      []byte("x"),
				"album/Thumbs.db":        []byte("x"),
				"album/d.jpg":            []byte("x"),
				"album/metadata.json":    []byte("x"),
				"Picasa2Albums/e.jpg":    []byte("x"),
				"album/nested/f.heic":    []byte("x"),
				"album/nested/notes.log": []byte("x"),
			},
			sourceDir:     ".",
			expectedFiles: []string{"album/d.jpg", "album/nested/f.heic", "keep.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			createScanTestDir(t, tmpDir, tt.structure)
			scanDir := filepath.Join(tmpDir, tt.sourceDir)

			files, err := pkg.ScanSourceDirectory(scanDir)
			if tt.expectedErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, joinAll(scanDir, tt.expectedFiles), files)
		})
	}
}

func TestScannerOptions(t *testing.T) {
	tmpDir := t.TempDir()
	createScanTestDir(t, tmpDir, map[string][]byte{
		"a.jpg":       []byte("x"),
		"b.mov":       []byte("x"),
		"c.txt":       []byte("x"),
		"sub/d.jpg":   []byte("x"),
		"sub/e.mov":   []byte("x"),
		"skip/f.jpg":  []byte("x"),
		"debug.log":   []byte("x"),
		".hidden.jpg": []byte("x"),
	})

	tests := []struct {
		name string
		opts pkg.ScanOptions
		want []string
	}{
		{
			name: "not recursive",
			opts: pkg.ScanOptions{},
			want: []string{"a.jpg"},
		},
		{
			name: "all files recursive",
			opts: pkg.ScanOptions{Recursive: true, AllFiles: true},
			want: []string{"a.jpg", "b.mov", "c.txt", "skip/f.jpg", "sub/d.jpg", "sub/e.mov"},
		},
		{
			name: "custom extensions",
			opts: pkg.ScanOptions{Recursive: true, Extensions: []string{"MOV", ".txt"}},
			want: []string{"b.mov", "c.txt", "sub/e.mov"},
		},
		{
			name: "custom ignore replaces defaults",
			opts: pkg.ScanOptions{Recursive: true, AllFiles: true, Ignore: []string{`^skip$`, `\.(mov|txt)$`}},
			want: []string{"a.jpg", "debug.log", "sub/d.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := pkg.NewScanner(tt.opts)
			require.NoError(t, err)
			files, err := s.Scan(tmpDir)
			require.NoError(t, err)
			assert.Equal(t, joinAll(tmpDir, tt.want), files)
		})
	}
}

func TestNewScannerRejectsBadPattern(t *testing.T) {
	_, err := pkg.NewScanner(pkg.ScanOptions{Ignore: []string{"("}})
	assert.Error(t, err)
}

func TestScannerCollect(t *testing.T) {
	tmpDir := t.TempDir()
	createScanTestDir(t, tmpDir, map[string][]byte{
		"one.jpg":       []byte("x"),
		"two.txt":       []byte("x"),
		"album/3.jpg":   []byte("x"),
		"album/4.png":   []byte("x"),
		"album/x/5.jpg": []byte("x"),
	})
	s, err := pkg.NewScanner(pkg.ScanOptions{Recursive: true})
	require.NoError(t, err)

	files, err := s.Collect([]string{
		filepath.Join(tmpDir, "one.jpg"),
		filepath.Join(tmpDir, "two.txt"),
		filepath.Join(tmpDir, "album"),
		filepath.Join(tmpDir, "album", "3.jpg"),
	})
	require.NoError(t, err)
	assert.Equal(t, joinAll(tmpDir, []string{"one.jpg", "album/3.jpg", "album/4.png", "album/x/5.jpg"}), files)

	_, err = s.Collect([]string{filepath.Join(tmpDir, "missing.jpg")})
	assert.Error(t, err)
}

func TestIsImageExtension(t *testing.T) {
	assert.True(t, pkg.IsImageExtension("a/b/IMG_1.JPG"))
	assert.True(t, pkg.IsImageExtension("x.heic"))
	assert.False(t, pkg.IsImageExtension("x.txt"))
	assert.False(t, pkg.IsImageExtension("jpg"))
	assert.Contains(t, pkg.ImageExtensions(), ".jpeg")
}

func TestRelativeMonthPath(t *testing.T) {
	assert.Equal(t, filepath.Join("2023", "07"), pkg.RelativeMonthPath(time.Date(2023, 7, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, filepath.Join("1999", "12"), pkg.RelativeMonthPath(time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC)))
}

func TestCreateTargetDirectory(t *testing.T) {
	baseTargetDir := t.TempDir()

	tests := []struct {
		name        string
		photoDate   time.Time
		expectedDir string
	}{
		{"create new directory YYYY/MM", time.Date(2023, 10, 27, 0, 0, 0, 0, time.UTC), "2023/10"},
		{"same month again", time.Date(2023, 10, 2, 0, 0, 0, 0, time.UTC), "2023/10"},
		{"different month", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "2024/01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected := filepath.Join(baseTargetDir, tt.expectedDir)
			created, err := pkg.CreateTargetDirectory(baseTargetDir, tt.photoDate)
			require.NoError(t, err)
			assert.Equal(t, expected, created)
			assert.DirExists(t, expected)
		})
	}
}
