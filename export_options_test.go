package streadmulti

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format OutputFormat
		name   string
		ext    string
	}{
		{format: OutputFormatCSV, name: "csv", ext: ".csv"},
		{format: OutputFormatTSV, name: "tsv", ext: ".tsv"},
		{format: OutputFormatParquet, name: "parquet", ext: ".parquet"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.format.String())
		assert.Equal(t, tt.ext, tt.format.Extension())
	}
}

func TestCompressionType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		compression CompressionType
		name        string
		ext         string
	}{
		{compression: CompressionNone, name: "none", ext: ""},
		{compression: CompressionGZ, name: "gz", ext: ".gz"},
		{compression: CompressionXZ, name: "xz", ext: ".xz"},
		{compression: CompressionZSTD, name: "zstd", ext: ".zst"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.compression.String())
		assert.Equal(t, tt.ext, tt.compression.Extension())
	}
}

func TestExportOptions_FileExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		options ExportOptions
		want    string
	}{
		{name: "default", options: NewExportOptions(), want: ".csv"},
		{name: "tsv gz", options: NewExportOptions().WithFormat(OutputFormatTSV).WithCompression(CompressionGZ), want: ".tsv.gz"},
		{name: "csv xz", options: NewExportOptions().WithCompression(CompressionXZ), want: ".csv.xz"},
		{name: "csv zstd", options: NewExportOptions().WithCompression(CompressionZSTD), want: ".csv.zst"},
		{name: "parquet", options: NewExportOptions().WithFormat(OutputFormatParquet), want: ".parquet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.options.FileExtension())
		})
	}
}

func TestExportOptions_ChainedMethods(t *testing.T) {
	t.Parallel()

	base := NewExportOptions()
	options := base.WithFormat(OutputFormatParquet).WithCompression(CompressionZSTD)

	assert.Equal(t, OutputFormatParquet, options.Format)
	assert.Equal(t, CompressionZSTD, options.Compression)
	assert.Equal(t, ExportOptions{Format: OutputFormatCSV, Compression: CompressionNone}, base)
}
