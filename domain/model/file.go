package model

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// FormatKind represents the on-disk format of a source file
type FormatKind int

const (
	// FormatGeoJSON represents GeoJSON text files
	FormatGeoJSON FormatKind = iota
	// FormatGeoPackage represents GeoPackage container files
	FormatGeoPackage
	// FormatShapefile represents ESRI Shapefiles
	FormatShapefile
	// FormatUnsupported represents unsupported file type
	FormatUnsupported
)

// File extensions
const (
	// ExtGeoJSON is the GeoJSON file extension
	ExtGeoJSON = ".geojson"
	// ExtGPKG is the GeoPackage file extension
	ExtGPKG = ".gpkg"
	// ExtSHP is the Shapefile geometry file extension
	ExtSHP = ".shp"
	// ExtDBF is the Shapefile attribute table extension
	ExtDBF = ".dbf"
	// ExtCPG is the Shapefile code page sidecar extension
	ExtCPG = ".cpg"
	// ExtGZ is the gzip compression extension
	ExtGZ = ".gz"
	// ExtBZ2 is the bzip2 compression extension
	ExtBZ2 = ".bz2"
	// ExtXZ is the xz compression extension
	ExtXZ = ".xz"
	// ExtZSTD is the zstd compression extension
	ExtZSTD = ".zst"
)

// compressionExts lists the compression suffixes recognized on input files
var compressionExts = []string{ExtGZ, ExtBZ2, ExtXZ, ExtZSTD}

// String returns the string representation of FormatKind
func (f FormatKind) String() string {
	switch f {
	case FormatGeoJSON:
		return "GeoJSON"
	case FormatGeoPackage:
		return "GeoPackage"
	case FormatShapefile:
		return "Shapefile"
	default:
		return "unsupported"
	}
}

// File represents one candidate input file and its detected format
type File struct {
	path   string
	format FormatKind
}

// NewFile creates a new File
func NewFile(path string) *File {
	return &File{
		path:   path,
		format: DetectFormat(path),
	}
}

// Path returns file path
func (f *File) Path() string {
	return f.path
}

// Format returns the detected format
func (f *File) Format() FormatKind {
	return f.format
}

// IsSupported reports whether a codec exists for the file
func (f *File) IsSupported() bool {
	return f.format != FormatUnsupported
}

// Extension returns the extension that decided the format, including any
// compression suffix (e.g. ".geojson.gz"). Unsupported files report their last extension.
func (f *File) Extension() string {
	lower := strings.ToLower(f.path)
	base := TrimCompressionExt(lower)
	ext := filepath.Ext(base)
	return ext + lower[len(base):]
}

// IsCompressed returns true if file is compressed
func (f *File) IsCompressed() bool {
	return f.IsGZ() || f.IsBZ2() || f.IsXZ() || f.IsZSTD()
}

// IsGZ returns true if file is gzip compressed
func (f *File) IsGZ() bool {
	return strings.HasSuffix(strings.ToLower(f.path), ExtGZ)
}

// IsBZ2 returns true if file is bzip2 compressed
func (f *File) IsBZ2() bool {
	return strings.HasSuffix(strings.ToLower(f.path), ExtBZ2)
}

// IsXZ returns true if file is xz compressed
func (f *File) IsXZ() bool {
	return strings.HasSuffix(strings.ToLower(f.path), ExtXZ)
}

// IsZSTD returns true if file is zstd compressed
func (f *File) IsZSTD() bool {
	return strings.HasSuffix(strings.ToLower(f.path), ExtZSTD)
}

// TrimCompressionExt removes one trailing compression extension, if present
func TrimCompressionExt(path string) string {
	lower := strings.ToLower(path)
	for _, ext := range compressionExts {
		if strings.HasSuffix(lower, ext) {
			return path[:len(path)-len(ext)]
		}
	}
	return path
}

// DetectFormat maps a path to its format by extension. GeoJSON may carry a
// compression suffix; GeoPackage and Shapefile need random access and may not.
func DetectFormat(path string) FormatKind {
	lower := strings.ToLower(path)
	base := TrimCompressionExt(lower)
	compressed := base != lower

	switch filepath.Ext(base) {
	case ExtGeoJSON:
		return FormatGeoJSON
	case ExtGPKG:
		if compressed {
			return FormatUnsupported
		}
		return FormatGeoPackage
	case ExtSHP:
		if compressed {
			return FormatUnsupported
		}
		return FormatShapefile
	default:
		return FormatUnsupported
	}
}

// IsSupportedFile checks if the file has a supported extension
func IsSupportedFile(path string) bool {
	return DetectFormat(path) != FormatUnsupported
}

// CompanionPath returns the path of a Shapefile companion file (".dbf", ".cpg")
// sharing the base name of shpPath. An upper-case companion is used when only
// that variant exists.
func CompanionPath(shpPath, ext string) string {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	lower := base + strings.ToLower(ext)
	if _, err := os.Stat(lower); err == nil {
		return lower
	}
	upper := base + strings.ToUpper(ext)
	if _, err := os.Stat(upper); err == nil {
		return upper
	}
	return lower
}

// OpenReader opens file and returns a reader that handles compression
func (f *File) OpenReader() (io.Reader, func() error, error) {
	file, err := os.Open(f.path) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		return nil, nil, err
	}

	var reader io.Reader = file
	closer := file.Close

	switch {
	case f.IsGZ():
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			_ = file.Close() // Ignore close error during error handling
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		reader = gzReader
		closer = func() error {
			_ = gzReader.Close() // Ignore close error in cleanup
			return file.Close()
		}
	case f.IsBZ2():
		reader = bzip2.NewReader(file)
	case f.IsXZ():
		xzReader, err := xz.NewReader(file)
		if err != nil {
			_ = file.Close() // Ignore close error during error handling
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		reader = xzReader
	case f.IsZSTD():
		decoder, err := zstd.NewReader(file)
		if err != nil {
			_ = file.Close() // Ignore close error during error handling
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		reader = decoder
		closer = func() error {
			decoder.Close()
			return file.Close()
		}
	}

	return reader, closer, nil
}
