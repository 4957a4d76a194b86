package codec

import (
	"encoding/binary"
	"fmt"
)

// gpkgHeaderSize is the fixed part of a GeoPackage geometry header:
// magic, version, flags and srs_id
const gpkgHeaderSize = 8

// envelopeSizes is indexed by the envelope contents indicator (flags bits 1-3)
var envelopeSizes = [...]int{0, 32, 48, 48, 64}

// GeometryHeader is the decoded GeoPackage binary header preceding the WKB payload
type GeometryHeader struct {
	Version      byte
	LittleEndian bool
	Empty        bool
	Extended     bool
	SRSID        int32
	EnvelopeSize int
}

// Size returns the number of bytes occupied by the header and envelope
func (h GeometryHeader) Size() int {
	return gpkgHeaderSize + h.EnvelopeSize
}

// ParseGeometryHeader decodes the header of a GeoPackage geometry blob
func ParseGeometryHeader(blob []byte) (GeometryHeader, error) {
	if len(blob) < gpkgHeaderSize {
		return GeometryHeader{}, fmt.Errorf("%w: geometry blob of %d bytes is shorter than its header", ErrInvalidData, len(blob))
	}
	if blob[0] != 'G' || blob[1] != 'P' {
		return GeometryHeader{}, fmt.Errorf("%w: geometry blob lacks the GP magic", ErrInvalidData)
	}

	flags := blob[3]
	indicator := int(flags>>1) & 0x07
	if indicator >= len(envelopeSizes) {
		return GeometryHeader{}, fmt.Errorf("%w: invalid envelope indicator %d", ErrInvalidData, indicator)
	}

	h := GeometryHeader{
		Version:      blob[2],
		LittleEndian: flags&0x01 == 1,
		Empty:        flags&0x10 != 0,
		Extended:     flags&0x20 != 0,
		EnvelopeSize: envelopeSizes[indicator],
	}

	var order binary.ByteOrder = binary.BigEndian
	if h.LittleEndian {
		order = binary.LittleEndian
	}
	h.SRSID = int32(order.Uint32(blob[4:8])) //nolint:gosec // srs_id is a signed 32-bit field

	if len(blob) < h.Size() {
		return GeometryHeader{}, fmt.Errorf("%w: geometry blob truncated inside its envelope", ErrInvalidData)
	}
	return h, nil
}

// StripEnvelope returns the WKB payload of a GeoPackage geometry blob. A nil
// blob stays nil; so does a blob flagged empty.
func StripEnvelope(blob []byte) ([]byte, error) {
	if blob == nil {
		return nil, nil
	}
	h, err := ParseGeometryHeader(blob)
	if err != nil {
		return nil, err
	}
	if h.Extended {
		return nil, fmt.Errorf("%w: extended GeoPackage geometry types are not supported", ErrInvalidData)
	}
	payload := blob[h.Size():]
	if h.Empty && len(payload) == 0 {
		return nil, nil
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}
