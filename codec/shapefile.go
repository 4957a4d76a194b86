package codec

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/nao1215/streadmulti/domain/model"
	"go.uber.org/zap"
)

const (
	dbfHeaderSize     = 32
	dbfFieldSize      = 32
	dbfFieldTerminate = 0x0D
	dbfLDIDOffset     = 29

	// julianEpochDay is the julian day number of 1970-01-01
	julianEpochDay = 2440588
)

// ShapefileCodec reads a .shp file and its companion .dbf attribute table.
type ShapefileCodec struct{}

// Format implements Codec
func (c *ShapefileCodec) Format() model.FormatKind {
	return model.FormatShapefile
}

// Sources implements Codec. A Shapefile is always one source.
func (c *ShapefileCodec) Sources(_ context.Context, path string) ([]model.SourceDescriptor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return singleSource(path, model.FormatShapefile), nil
}

// Open implements Codec. The attribute encoding is resolved here, once, and
// applied to every string the source produces.
func (c *ShapefileCodec) Open(_ context.Context, desc model.SourceDescriptor, cfg Config) (Source, error) {
	dbfPath := model.CompanionPath(desc.Path, model.ExtDBF)
	if _, err := os.Stat(dbfPath); err != nil {
		return nil, fmt.Errorf("%w: %s: attribute table %s: %v", ErrCompanionFile, desc.Path, dbfPath, err)
	}

	dbf, err := openDBF(dbfPath)
	if err != nil {
		return nil, err
	}

	decision, err := ResolveEncoding(desc.Path, cfg.Encoding, dbf.header.ldid, cfg.logger())
	if err != nil {
		_ = dbf.close() // Ignore close error during error handling
		return nil, err
	}
	decode, err := newTextDecoder(decision.Label)
	if err != nil {
		_ = dbf.close() // Ignore close error during error handling
		return nil, err
	}

	schema, err := dbf.schema(decode)
	if err != nil {
		_ = dbf.close() // Ignore close error during error handling
		return nil, fmt.Errorf("%s: %w", desc.Path, err)
	}

	reader, err := shp.Open(desc.Path)
	if err != nil {
		_ = dbf.close() // Ignore close error during error handling
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidData, desc.Path, err)
	}

	cfg.logger().Debug("opened Shapefile source",
		zap.String("path", desc.Path),
		zap.String("encoding", decision.Label),
		zap.Stringer("encoding_origin", decision.Origin),
		zap.Uint32("records", dbf.header.records),
		zap.Stringer("schema", schema))

	return &shapefileSource{
		desc:     desc,
		shp:      reader,
		dbf:      dbf,
		schema:   schema,
		decision: decision,
		decode:   decode,
	}, nil
}

// dbfHeader holds the parts of the DBF file header the reader needs
type dbfHeader struct {
	records   uint32
	headerLen uint16
	recordLen uint16
	ldid      byte
}

// dbfReader reads DBF records sequentially
type dbfReader struct {
	path   string
	file   *os.File
	r      *bufio.Reader
	header dbfHeader
	fields []shp.Field
	record []byte
	read   uint32
}

func openDBF(path string) (*dbfReader, error) {
	f, err := os.Open(path) //nolint:gosec // companion of a user-provided path
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompanionFile, path, err)
	}

	d := &dbfReader{path: path, file: f}
	if err := d.readHeader(); err != nil {
		_ = f.Close() // Ignore close error during error handling
		return nil, err
	}
	if _, err := f.Seek(int64(d.header.headerLen), io.SeekStart); err != nil {
		_ = f.Close() // Ignore close error during error handling
		return nil, fmt.Errorf("%w: %s: %v", ErrCompanionFile, path, err)
	}
	d.r = bufio.NewReader(f)
	d.record = make([]byte, d.header.recordLen)
	return d, nil
}

func (d *dbfReader) corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrCompanionFile, d.path, fmt.Sprintf(format, args...))
}

// readHeader parses the fixed header and the field descriptors
func (d *dbfReader) readHeader() error {
	var hdr [dbfHeaderSize]byte
	if _, err := io.ReadFull(d.file, hdr[:]); err != nil {
		return d.corrupt("reading header: %v", err)
	}
	d.header = dbfHeader{
		records:   binary.LittleEndian.Uint32(hdr[4:8]),
		headerLen: binary.LittleEndian.Uint16(hdr[8:10]),
		recordLen: binary.LittleEndian.Uint16(hdr[10:12]),
		ldid:      hdr[dbfLDIDOffset],
	}

	width := 1 // deletion flag
	offset := dbfHeaderSize
	buf := make([]byte, dbfFieldSize)
	for offset+dbfFieldSize <= int(d.header.headerLen) {
		if _, err := io.ReadFull(d.file, buf[:1]); err != nil {
			return d.corrupt("reading field descriptors: %v", err)
		}
		if buf[0] == dbfFieldTerminate {
			break
		}
		if _, err := io.ReadFull(d.file, buf[1:]); err != nil {
			return d.corrupt("reading field descriptors: %v", err)
		}
		var field shp.Field
		if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &field); err != nil {
			return d.corrupt("decoding field descriptor: %v", err)
		}
		d.fields = append(d.fields, field)
		width += int(field.Size)
		offset += dbfFieldSize
	}

	if width > int(d.header.recordLen) {
		return d.corrupt("fields span %d bytes but records are %d bytes", width, d.header.recordLen)
	}
	return nil
}

// schema builds the source schema: geometry first, then the DBF fields
func (d *dbfReader) schema(decode textDecoder) (model.Schema, error) {
	schema := make(model.Schema, 0, len(d.fields)+1)
	schema = append(schema, model.Column{Name: DefaultGeometryColumn, Type: model.ColumnTypeGeometry})

	for _, f := range d.fields {
		raw := f.Name[:]
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		name, err := decode(bytes.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: field name: %v", ErrInvalidData, err)
		}
		colType, err := dbfColumnType(f.Fieldtype)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if schema.Has(name) {
			return nil, fmt.Errorf("%w: %q", model.ErrDuplicateColumnName, name)
		}
		schema = append(schema, model.Column{Name: name, Type: colType})
	}
	return schema, nil
}

// dbfColumnType maps a DBF field type code to a column type
func dbfColumnType(code byte) (model.ColumnType, error) {
	switch code {
	case 'C', 'D', 'M':
		return model.ColumnTypeVarchar, nil
	case 'L':
		return model.ColumnTypeBoolean, nil
	case 'I':
		return model.ColumnTypeInteger, nil
	case 'N', 'F', 'O', 'Y', 'B', '@', 'T':
		return model.ColumnTypeDouble, nil
	default:
		return 0, fmt.Errorf("%w: DBF field type %q", ErrUnsupportedColumnType, code)
	}
}

// next returns the raw bytes of the next record, or io.EOF after the last one
func (d *dbfReader) next() ([]byte, error) {
	if d.read >= d.header.records {
		return nil, io.EOF
	}
	if _, err := io.ReadFull(d.r, d.record); err != nil {
		return nil, d.corrupt("record %d: %v", d.read, err)
	}
	d.read++
	return d.record, nil
}

func (d *dbfReader) close() error {
	return d.file.Close()
}

// decodeCell converts one fixed-width DBF cell
func decodeCell(code byte, cell []byte, decode textDecoder) (any, error) {
	switch code {
	case 'C':
		text := bytes.TrimRight(cell, " \x00")
		if len(text) == 0 {
			return nil, nil
		}
		return decode(text)
	case 'D':
		text := bytes.TrimSpace(bytes.Trim(cell, "\x00"))
		if len(text) == 0 {
			return nil, nil
		}
		t, err := time.Parse("20060102", string(text))
		if err != nil {
			return nil, err
		}
		return t.Format(time.DateOnly), nil
	case 'M':
		return nil, nil
	case 'L':
		if len(cell) == 0 {
			return nil, nil
		}
		switch cell[0] {
		case 'T', 't', 'Y', 'y':
			return true, nil
		case 'F', 'f', 'N', 'n':
			return false, nil
		default:
			return nil, nil
		}
	case 'N', 'F':
		text := bytes.TrimSpace(bytes.Trim(cell, "\x00"))
		if len(text) == 0 || text[0] == '*' {
			return nil, nil
		}
		return strconv.ParseFloat(string(text), 64)
	case 'I':
		if len(cell) < 4 {
			return nil, fmt.Errorf("integer cell of %d bytes", len(cell))
		}
		return int64(int32(binary.LittleEndian.Uint32(cell))), nil //nolint:gosec // signed 32-bit field
	case 'O', 'B':
		if len(cell) < 8 {
			return nil, fmt.Errorf("double cell of %d bytes", len(cell))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(cell)), nil
	case 'Y':
		if len(cell) < 8 {
			return nil, fmt.Errorf("currency cell of %d bytes", len(cell))
		}
		return float64(int64(binary.LittleEndian.Uint64(cell))) / 10000, nil //nolint:gosec // signed 64-bit field
	case '@', 'T':
		if len(cell) < 8 {
			return nil, fmt.Errorf("timestamp cell of %d bytes", len(cell))
		}
		day := int64(int32(binary.LittleEndian.Uint32(cell[:4])))    //nolint:gosec // signed 32-bit field
		millis := int64(int32(binary.LittleEndian.Uint32(cell[4:8]))) //nolint:gosec // signed 32-bit field
		if day == 0 && millis == 0 {
			return nil, nil
		}
		return float64((day-julianEpochDay)*86400) + float64(millis)/1000, nil
	default:
		return nil, fmt.Errorf("%w: DBF field type %q", ErrUnsupportedColumnType, code)
	}
}

type shapefileSource struct {
	desc     model.SourceDescriptor
	shp      *shp.Reader
	dbf      *dbfReader
	schema   model.Schema
	decision model.EncodingDecision
	decode   textDecoder
	position int64
}

func (s *shapefileSource) Descriptor() model.SourceDescriptor { return s.desc }

func (s *shapefileSource) Schema() model.Schema { return s.schema }

func (s *shapefileSource) Position() int64 { return s.position }

// EncodingDecision returns the attribute encoding resolved when the source was opened
func (s *shapefileSource) EncodingDecision() model.EncodingDecision { return s.decision }

func (s *shapefileSource) mismatch(shapes string) error {
	return fmt.Errorf("%w: %s: %s shape records but %d attribute records",
		ErrCompanionFile, s.desc.Path, shapes, s.dbf.header.records)
}

// ReadBatch implements Source. Shape record N pairs with attribute record N.
func (s *shapefileSource) ReadBatch(ctx context.Context, max int) ([]model.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]model.Row, 0, max)
	for len(rows) < max {
		if !s.shp.Next() {
			if err := s.shp.Err(); err != nil {
				return nil, fmt.Errorf("%w: %s: record %d: %v", ErrInvalidData, s.desc.Path, s.position, err)
			}
			if s.position < int64(s.dbf.header.records) {
				return nil, s.mismatch(strconv.FormatInt(s.position, 10))
			}
			break
		}

		record, err := s.dbf.next()
		if errors.Is(err, io.EOF) {
			return nil, s.mismatch("more than " + strconv.FormatInt(s.position, 10))
		}
		if err != nil {
			return nil, err
		}

		row, err := s.convert(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		s.position++
	}

	if len(rows) == 0 {
		return nil, io.EOF
	}
	return rows, nil
}

func (s *shapefileSource) convert(record []byte) (model.Row, error) {
	row := make(model.Row, len(s.schema))

	_, shape := s.shp.Shape()
	geom, err := shapeToWKB(shape)
	if err != nil {
		return nil, fmt.Errorf("%s: record %d: %w", s.desc.Path, s.position, err)
	}
	if geom != nil {
		row[0] = geom
	}

	offset := 1 // deletion flag
	for i, f := range s.dbf.fields {
		cell := record[offset : offset+int(f.Size)]
		offset += int(f.Size)

		v, err := decodeCell(f.Fieldtype, cell, s.decode)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: record %d field %q: %v",
				ErrInvalidData, s.desc.Path, s.position, s.schema[i+1].Name, err)
		}
		row[i+1] = v
	}
	return row, nil
}

// Close implements Source
func (s *shapefileSource) Close() error {
	s.shp.Close()
	return s.dbf.close()
}
