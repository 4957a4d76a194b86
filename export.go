package streadmulti

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
)

// Export drains r into a file at path. CSV and TSV output carries a header
// row and writes geometry and blob values as hex; Parquet output keeps them binary.
func Export(ctx context.Context, r *Reader, path string, options ExportOptions) error {
	var err error
	switch options.Format {
	case OutputFormatCSV, OutputFormatTSV:
		err = exportText(ctx, r, path, options)
	case OutputFormatParquet:
		if options.Compression != CompressionNone {
			return fmt.Errorf("%w: parquet output does not take stream compression", ErrInvalidOption)
		}
		err = exportParquet(ctx, r, path)
	default:
		return fmt.Errorf("%w: output format %v", ErrInvalidOption, options.Format)
	}
	if err != nil {
		return NewErrorContext("export", path).WithDetails(options.Format.String()).Error(err)
	}
	return nil
}

func exportText(ctx context.Context, r *Reader, path string, options ExportOptions) (err error) {
	writer, cleanup, err := createCompressedFile(path, options.Compression)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(writer)
	if options.Format == OutputFormatTSV {
		w.Comma = '\t'
	}

	if err := w.Write(r.Schema().Names()); err != nil {
		return err
	}

	record := make([]string, len(r.Schema()))
	for {
		batch, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		for _, row := range batch.Rows {
			for i, v := range row {
				record[i] = formatText(v)
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

// formatText renders a value for delimited text output
func formatText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []byte:
		return hex.EncodeToString(val)
	default:
		return fmt.Sprint(val)
	}
}

func exportParquet(ctx context.Context, r *Reader, path string) (err error) {
	file, err := os.Create(path) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		// The parquet writer may already have closed the file.
		if cerr := file.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
			err = cerr
		}
	}()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Zstd))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(NewArrowSchema(r.Schema()), file, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	mem := memory.NewGoAllocator()
	for {
		batch, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = writer.Close() // Ignore close error during error handling
			return err
		}

		rec, err := BatchToRecord(mem, batch)
		if err != nil {
			_ = writer.Close() // Ignore close error during error handling
			return err
		}
		err = writer.Write(rec)
		rec.Release()
		if err != nil {
			_ = writer.Close() // Ignore close error during error handling
			return fmt.Errorf("failed to write parquet batch: %w", err)
		}
	}
	return writer.Close()
}
