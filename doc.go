// Package streadmulti reads GeoJSON, GeoPackage and Shapefile files matched by
// one glob pattern as a single stream of row batches.
//
// Every matched file is split into sources: a GeoJSON file or a Shapefile is
// one source, a GeoPackage contributes one source per feature layer. The
// first source fixes the canonical schema and every later source must have
// the same column names in the same order. Geometry always arrives as WKB,
// and two provenance columns name the originating file and, for GeoPackage
// rows, the layer.
//
// # Features
//
//   - Glob patterns with "**" and a leading "~"
//   - Optional GeoPackage layer filter with per-file warnings
//   - Shapefile attribute decoding from an explicit label, the DBF language
//     driver id or the .cpg sidecar
//   - Compressed GeoJSON input (gzip, bzip2, xz, zstandard)
//   - Arrow record conversion and CSV, TSV or Parquet export
//   - A database/sql driver in the driver sub package
//
// # Basic Usage
//
//	r, err := streadmulti.Open(ctx, "data/*.geojson")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	for {
//	    batch, err := r.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // use batch.Rows
//	}
//
// # Options
//
//	opts := streadmulti.NewOptions().
//	    WithLayer("roads").
//	    WithEncoding("CP932").
//	    WithBatchSize(512)
//	r, err := streadmulti.Open(ctx, "~/gis/**/*.gpkg", opts)
//
// # Provenance Columns
//
// The file and layer columns are named ".filename" and ".layer". When a data
// column already uses one of those names, dots are prefixed until the name is
// free. The layer column is NULL for GeoJSON and Shapefile rows.
//
// # Errors
//
// A schema divergence is reported as *SchemaMismatchError, which wraps
// ErrSchemaMismatch and names the file, column index, expected name and
// actual name. Fatal errors are sticky: once Next fails it keeps failing.
package streadmulti
