// Package testsupport builds fixtures shared by tests across packages.
package testsupport

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	tagExifIFDPointer   = 0x8769
	tagDateTimeOriginal = 0x9003
	typeASCII           = 2
	typeLong            = 4
)

// ExifTIFF returns a big-endian TIFF block with an Exif sub-IFD holding a
// single DateTimeOriginal tag.
func ExifTIFF(dateTimeOriginal string) []byte {
	value := append([]byte(dateTimeOriginal), 0)

	const (
		ifd0Offset = 8
		ifdSize    = 2 + 12 + 4
	)
	exifOffset := uint32(ifd0Offset + ifdSize)
	valueOffset := exifOffset + ifdSize

	var buf bytes.Buffer
	be := binary.BigEndian
	write := func(v any) { _ = binary.Write(&buf, be, v) }

	buf.WriteString("MM")
	write(uint16(42))
	write(uint32(ifd0Offset))

	// IFD0: pointer to the Exif IFD.
	write(uint16(1))
	write(uint16(tagExifIFDPointer))
	write(uint16(typeLong))
	write(uint32(1))
	write(exifOffset)
	write(uint32(0))

	// Exif IFD: DateTimeOriginal.
	write(uint16(1))
	write(uint16(tagDateTimeOriginal))
	write(uint16(typeASCII))
	write(uint32(len(value)))
	write(valueOffset)
	write(uint32(0))

	buf.Write(value)
	return buf.Bytes()
}

// JPEGWithExif wraps ExifTIFF in a minimal JPEG: SOI, an APP1 Exif segment
// and EOI. It carries no image data, which is all EXIF readers need.
func JPEGWithExif(dateTimeOriginal string) []byte {
	payload := append([]byte("Exif\x00\x00"), ExifTIFF(dateTimeOriginal)...)

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	buf.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(payload)+2))
	buf.Write(payload)
	buf.Write([]byte{0xFF, 0xD9})
	return buf.Bytes()
}

// WriteExifJPEG writes a JPEG whose DateTimeOriginal is date to dir/name.
func WriteExifJPEG(t testing.TB, dir, name string, date time.Time) string {
	t.Helper()
	return WriteFile(t, dir, name, JPEGWithExif(date.Format("2006:01:02 15:04:05")))
}

// WriteFile writes content to dir/name, creating parent folders.
func WriteFile(t testing.TB, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write test file %s: %v", path, err)
	}
	return path
}

// WriteFileWithModTime is WriteFile followed by setting the modification time.
func WriteFileWithModTime(t testing.TB, dir, name string, content []byte, modTime time.Time) string {
	t.Helper()
	path := WriteFile(t, dir, name, content)
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("Failed to change mod time for %s: %v", path, err)
	}
	return path
}
