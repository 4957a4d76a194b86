package model

import "fmt"

// SourceDescriptor identifies one independently schema-checked unit of rows:
// a whole file, or one layer inside a container file.
type SourceDescriptor struct {
	// Path is the file path as resolved by the glob
	Path string
	// Layer is the layer name inside a container, empty for single-layer formats
	Layer string
	// Format is the detected file format
	Format FormatKind
}

// NewSourceDescriptor creates a new SourceDescriptor
func NewSourceDescriptor(path, layer string, format FormatKind) SourceDescriptor {
	return SourceDescriptor{
		Path:   path,
		Layer:  layer,
		Format: format,
	}
}

// IsContainer reports whether the source lives in a multi-layer container,
// in which case the layer provenance column is populated.
func (d SourceDescriptor) IsContainer() bool {
	return d.Format == FormatGeoPackage
}

// String returns "path" or "path (layer)" for diagnostics
func (d SourceDescriptor) String() string {
	if d.Layer == "" {
		return d.Path
	}
	return fmt.Sprintf("%s (layer %s)", d.Path, d.Layer)
}

// Cursor is the resumable position of a query: which source is current and
// how many rows of it have been produced. It never moves backwards.
type Cursor struct {
	// SourceIndex is the index of the current source in the enumeration order
	SourceIndex int
	// Position is the number of rows already produced from the current source
	Position int64
}

// Advance moves the position forward within the current source
func (c *Cursor) Advance(n int) {
	if n > 0 {
		c.Position += int64(n)
	}
}

// NextSource moves the cursor to the beginning of the following source
func (c *Cursor) NextSource() {
	c.SourceIndex++
	c.Position = 0
}

// EncodingOrigin tells which fallback step supplied an encoding label
type EncodingOrigin int

const (
	// EncodingOriginExplicit means the label came from the query options
	EncodingOriginExplicit EncodingOrigin = iota
	// EncodingOriginDBFHeader means the label came from the DBF language driver id
	EncodingOriginDBFHeader
	// EncodingOriginSidecar means the label came from the .cpg sidecar file
	EncodingOriginSidecar
	// EncodingOriginDefault means no other step decided
	EncodingOriginDefault
)

// String returns the string representation of EncodingOrigin
func (o EncodingOrigin) String() string {
	switch o {
	case EncodingOriginExplicit:
		return "explicit"
	case EncodingOriginDBFHeader:
		return "dbf-header"
	case EncodingOriginSidecar:
		return "sidecar-file"
	case EncodingOriginDefault:
		return "default"
	default:
		return "unknown"
	}
}

// EncodingDecision is the resolved attribute text encoding of one Shapefile source
type EncodingDecision struct {
	// Label is the canonical (IANA) encoding name
	Label string
	// Origin is the fallback step that produced Label
	Origin EncodingOrigin
}
