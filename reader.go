package streadmulti

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"

	"github.com/nao1215/streadmulti/codec"
	"github.com/nao1215/streadmulti/domain/model"
	"go.uber.org/zap"
)

// State is the position of a Reader in its source list
type State int

const (
	// StateNotStarted means no batch has been requested yet
	StateNotStarted State = iota
	// StateSourceOpen means a source is being read
	StateSourceOpen
	// StateExhausted means every source has been read
	StateExhausted
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateSourceOpen:
		return "source-open"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Reader is one query: a forward-only stream of row batches over every source
// matched by a glob pattern. At most one source is open at a time. A Reader is
// not safe for concurrent use.
type Reader struct {
	opts     Options
	logger   *zap.Logger
	cfg      codec.Config
	sources  []model.SourceDescriptor
	warnings []Warning

	canonical   model.Schema
	output      model.Schema
	fileColumn  string
	layerColumn string

	cursor  model.Cursor
	state   State
	current codec.Source
	coerce  []coercion

	err    error
	closed bool
}

// Open resolves pattern, detects the format of every matched file, enumerates
// the sources and opens the first one to fix the canonical schema. Nothing
// beyond the first source is read unless eager validation is enabled.
func Open(ctx context.Context, pattern string, opts ...Options) (*Reader, error) {
	options := NewOptions()
	if len(opts) > 0 {
		options = opts[0]
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	if options.Encoding != "" {
		if _, err := codec.NormalizeEncodingLabel(options.Encoding); err != nil {
			return nil, NewErrorContext("open", "").WithDetails("encoding option").Error(err)
		}
	}

	paths, err := ResolveGlob(pattern)
	if err != nil {
		return nil, err
	}

	files := make([]*model.File, 0, len(paths))
	for _, path := range paths {
		file := model.NewFile(path)
		if !file.IsSupported() {
			return nil, fmt.Errorf("%w: %s (extension %q)", ErrUnsupportedFormat, path, file.Extension())
		}
		files = append(files, file)
	}

	logger := options.logger()
	sources, warnings, err := enumerateSources(ctx, files, options.Layer, logger)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: pattern %q", ErrNoSources, pattern)
	}

	r := &Reader{
		opts:     options,
		logger:   logger,
		cfg:      codec.Config{Encoding: options.Encoding, Logger: logger},
		sources:  sources,
		warnings: warnings,
	}
	if err := r.openCurrent(ctx); err != nil {
		return nil, err
	}
	r.fileColumn, r.layerColumn = provenanceNames(r.canonical)
	r.output = outputSchema(r.canonical, r.fileColumn, r.layerColumn)

	if options.EagerValidation {
		if err := r.validateAll(ctx); err != nil {
			_ = r.Close() // Ignore close error during error handling
			return nil, err
		}
	}

	logger.Debug("query opened",
		zap.String("pattern", pattern),
		zap.Int("sources", len(sources)),
		zap.Stringer("schema", r.output))
	return r, nil
}

// validateAll opens every source after the first, checks its schema and closes it
func (r *Reader) validateAll(ctx context.Context) error {
	for _, desc := range r.sources[1:] {
		src, err := r.openSource(ctx, desc)
		if err != nil {
			return err
		}
		_, err = reconcile(r.canonical, desc, src.Schema())
		if closeErr := src.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) openSource(ctx context.Context, desc model.SourceDescriptor) (codec.Source, error) {
	c, err := codec.ForFormat(desc.Format)
	if err != nil {
		return nil, NewErrorContext("open source", desc.Path).WithLayer(desc.Layer).Error(err)
	}
	src, err := c.Open(ctx, desc, r.cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = errors.Join(ErrFileNotFound, err)
		}
		return nil, NewErrorContext("open source", desc.Path).WithLayer(desc.Layer).Error(err)
	}
	return src, nil
}

// openCurrent opens the source under the cursor and reconciles its schema.
// The first source opened fixes the canonical schema.
func (r *Reader) openCurrent(ctx context.Context) error {
	desc := r.sources[r.cursor.SourceIndex]
	src, err := r.openSource(ctx, desc)
	if err != nil {
		return err
	}

	if r.canonical == nil {
		r.canonical = src.Schema()
	} else {
		coerce, err := reconcile(r.canonical, desc, src.Schema())
		if err != nil {
			_ = src.Close() // Ignore close error during error handling
			return err
		}
		r.coerce = coerce
	}

	r.current = src
	r.logger.Debug("source opened",
		zap.Int("index", r.cursor.SourceIndex),
		zap.Stringer("source", desc))
	return nil
}

func (r *Reader) closeCurrent() error {
	if r.current == nil {
		return nil
	}
	desc := r.current.Descriptor()
	err := r.current.Close()
	r.current = nil
	r.coerce = nil
	r.logger.Debug("source closed",
		zap.Stringer("source", desc),
		zap.Int64("rows", r.cursor.Position))
	if err != nil {
		return NewErrorContext("close source", desc.Path).WithLayer(desc.Layer).Error(err)
	}
	return nil
}

// fail records a fatal error; every later call returns it
func (r *Reader) fail(err error) error {
	r.err = err
	if closeErr := r.closeCurrent(); closeErr != nil {
		r.err = errors.Join(err, closeErr)
	}
	return r.err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Next returns the next batch of rows. Batches are never empty; io.EOF is
// returned once every source is exhausted. Cancellation of ctx stops progress
// without consuming rows, so Next may be called again with a live context.
func (r *Reader) Next(ctx context.Context) (*model.RowBatch, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.state == StateExhausted {
		return nil, io.EOF
	}
	r.state = StateSourceOpen

	for {
		if r.current == nil {
			if r.cursor.SourceIndex >= len(r.sources) {
				r.state = StateExhausted
				return nil, io.EOF
			}
			if err := r.openCurrent(ctx); err != nil {
				if isCancellation(err) {
					return nil, err
				}
				return nil, r.fail(err)
			}
		}

		rows, err := r.current.ReadBatch(ctx, r.opts.batchSize())
		if errors.Is(err, io.EOF) {
			if err := r.closeCurrent(); err != nil {
				return nil, r.fail(err)
			}
			r.cursor.NextSource()
			continue
		}
		if err != nil {
			if isCancellation(err) {
				return nil, err
			}
			var mismatch *SchemaMismatchError
			if !errors.As(err, &mismatch) {
				desc := r.current.Descriptor()
				err = NewErrorContext("read source", desc.Path).WithLayer(desc.Layer).Error(err)
			}
			return nil, r.fail(err)
		}

		r.cursor.Advance(len(rows))
		return r.assemble(rows), nil
	}
}

// assemble applies coercions and appends the provenance columns
func (r *Reader) assemble(rows []model.Row) *model.RowBatch {
	desc := r.current.Descriptor()
	var layer any
	if desc.IsContainer() {
		layer = desc.Layer
	}

	n := len(r.canonical)
	out := make([]model.Row, len(rows))
	for i, row := range rows {
		full := make(model.Row, n+2)
		copy(full, row)
		for c, fn := range r.coerce {
			if fn != nil {
				full[c] = fn(full[c])
			}
		}
		full[n] = desc.Path
		full[n+1] = layer
		out[i] = full
	}
	return &model.RowBatch{Schema: slices.Clone(r.output), Rows: out}
}

// ReadAll drains the reader and returns every remaining row
func (r *Reader) ReadAll(ctx context.Context) ([]model.Row, error) {
	var rows []model.Row
	for {
		batch, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, batch.Rows...)
	}
}

// Schema returns the output schema: the canonical columns followed by the
// file and layer provenance columns. The result is a copy.
func (r *Reader) Schema() model.Schema {
	return slices.Clone(r.output)
}

// DataSchema returns a copy of the canonical schema without provenance columns
func (r *Reader) DataSchema() model.Schema {
	return slices.Clone(r.canonical)
}

// ProvenanceColumns returns the names chosen for the file and layer columns
func (r *Reader) ProvenanceColumns() (file, layer string) {
	return r.fileColumn, r.layerColumn
}

// Cursor returns the current position
func (r *Reader) Cursor() model.Cursor {
	return r.cursor
}

// State returns the current state
func (r *Reader) State() State {
	return r.state
}

// Sources returns the enumerated sources in read order
func (r *Reader) Sources() []model.SourceDescriptor {
	out := make([]model.SourceDescriptor, len(r.sources))
	copy(out, r.sources)
	return out
}

// Warnings returns the non-fatal diagnostics raised by Open
func (r *Reader) Warnings() []Warning {
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Close releases the open source. Calling Close more than once is safe.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.closeCurrent()
}
