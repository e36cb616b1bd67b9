package pkg

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/vegidio/heif-go" // Register HEIF/HEIC decoder
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrUnsupportedForPixelHashing is returned when a file format is not supported for pixel data hashing.
var ErrUnsupportedForPixelHashing = fmt.Errorf("file format not supported for pixel data hashing")

// CalculateFileHash calculates the SHA-256 hash of a file's content.
func CalculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s for hashing: %w", filePath, err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to copy file content to hasher for %s: %w", filePath, err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// CalculatePixelDataHash calculates the SHA-256 hash of an image's decoded
// pixels. It supports JPEG, PNG, GIF and HEIF/HEIC.
func CalculatePixelDataHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s for pixel hashing: %w", filePath, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedForPixelHashing, err)
	}

	hasher := sha256.New()
	bounds := img.Bounds()
	var dims [8]byte
	for i, v := range []int{bounds.Dx(), bounds.Dy()} {
		dims[i*4] = byte(v >> 24)
		dims[i*4+1] = byte(v >> 16)
		dims[i*4+2] = byte(v >> 8)
		dims[i*4+3] = byte(v)
	}
	hasher.Write(dims[:])

	pixelBytes := make([]byte, 4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			pixelBytes[0] = byte(r >> 8)
			pixelBytes[1] = byte(g >> 8)
			pixelBytes[2] = byte(b >> 8)
			pixelBytes[3] = byte(a >> 8)
			hasher.Write(pixelBytes)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// SameContent reports whether two files hold identical bytes.
func SameContent(a, b string) (bool, error) {
	infoA, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if infoA.Size() != infoB.Size() {
		return false, nil
	}
	hashA, err := CalculateFileHash(a)
	if err != nil {
		return false, err
	}
	hashB, err := CalculateFileHash(b)
	if err != nil {
		return false, err
	}
	return hashA == hashB, nil
}

// ContentMatch classifies two files with the same name.
type ContentMatch string

const (
	MatchIdentical ContentMatch = "identical"
	MatchSameImage ContentMatch = "same-image"
	MatchDifferent ContentMatch = "different"
)

// CompareContent compares two files byte for byte and, failing that, by
// decoded pixels. Files that cannot be decoded as images are different unless
// their bytes match.
func CompareContent(a, b string) (ContentMatch, error) {
	same, err := SameContent(a, b)
	if err != nil {
		return "", err
	}
	if same {
		return MatchIdentical, nil
	}

	pixA, errA := CalculatePixelDataHash(a)
	pixB, errB := CalculatePixelDataHash(b)
	if errA != nil || errB != nil {
		return MatchDifferent, nil
	}
	if pixA == pixB {
		return MatchSameImage, nil
	}
	return MatchDifferent, nil
}

// NameOptions controls how file names are compared.
type NameOptions struct {
	// IgnoreCase folds case before comparing names.
	IgnoreCase bool
	// Content compares the files in each duplicate group.
	Content bool
	Scan    ScanOptions
}

// NameGroup is one file name found in more than one folder.
type NameGroup struct {
	Name  string
	Paths []string
	// Matches holds, when content comparison was requested, the result of
	// comparing Paths[i+1] with Paths[0].
	Matches []ContentMatch
}

func nameKey(name string, ignoreCase bool) string {
	key := norm.NFC.String(name)
	if ignoreCase {
		key = cases.Fold().String(key)
	}
	return key
}

func scanNames(dir string, opts NameOptions) (map[string][]string, error) {
	scanOpts := opts.Scan
	scanOpts.Recursive = true
	scanner, err := NewScanner(scanOpts)
	if err != nil {
		return nil, err
	}
	files, err := scanner.Scan(dir)
	if err != nil {
		return nil, err
	}
	byName := make(map[string][]string)
	for _, f := range files {
		key := nameKey(filepath.Base(f), opts.IgnoreCase)
		byName[key] = append(byName[key], f)
	}
	return byName, nil
}

// FindDuplicateNames walks dest and returns the file names present in more
// than one folder, sorted by name. Unicode normalization differences (NFC vs
// NFD) do not make names distinct.
func FindDuplicateNames(dest string, opts NameOptions) ([]NameGroup, error) {
	byName, err := scanNames(dest, opts)
	if err != nil {
		return nil, err
	}

	var groups []NameGroup
	for _, paths := range byName {
		if !spansFolders(paths) {
			continue
		}
		sort.Strings(paths)
		group := NameGroup{Name: filepath.Base(paths[0]), Paths: paths}
		if opts.Content {
			for _, other := range paths[1:] {
				match, err := CompareContent(paths[0], other)
				if err != nil {
					return nil, fmt.Errorf("compare %s with %s: %w", paths[0], other, err)
				}
				group.Matches = append(group.Matches, match)
			}
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})
	return groups, nil
}

// spansFolders reports whether paths live in at least two folders.
func spansFolders(paths []string) bool {
	for _, p := range paths[1:] {
		if filepath.Dir(p) != filepath.Dir(paths[0]) {
			return true
		}
	}
	return false
}

// FindMissing returns the files under src whose name appears nowhere under
// dest.
func FindMissing(src, dest string, opts NameOptions) ([]string, error) {
	destNames, err := scanNames(dest, opts)
	if err != nil {
		return nil, err
	}
	srcNames, err := scanNames(src, opts)
	if err != nil {
		return nil, err
	}

	var missing []string
	for key, paths := range srcNames {
		if _, ok := destNames[key]; !ok {
			missing = append(missing, paths...)
		}
	}
	sort.Strings(missing)
	return missing, nil
}
