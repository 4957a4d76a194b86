package streadmulti

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func decompress(t *testing.T, compressionType CompressionType, data []byte) string {
	t.Helper()

	var r io.Reader
	switch compressionType {
	case CompressionNone:
		r = bytes.NewReader(data)
	case CompressionGZ:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		r = gz
	case CompressionXZ:
		xr, err := xz.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		r = xr
	case CompressionZSTD:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	}

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestNewCompressedWriter(t *testing.T) {
	t.Parallel()

	const content = "geometry,name\n0101000000000000000000f03f000000000000f03f,a\n"

	for _, compressionType := range []CompressionType{CompressionNone, CompressionGZ, CompressionXZ, CompressionZSTD} {
		t.Run(compressionType.String(), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w, cleanup, err := newCompressedWriter(&buf, compressionType)
			require.NoError(t, err)

			_, err = io.WriteString(w, content)
			require.NoError(t, err)
			require.NoError(t, cleanup())

			assert.Equal(t, content, decompress(t, compressionType, buf.Bytes()))
		})
	}
}

func TestNewCompressedWriter_Unknown(t *testing.T) {
	t.Parallel()

	_, _, err := newCompressedWriter(io.Discard, CompressionType(42))
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestCreateCompressedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv.gz")
	w, cleanup, err := createCompressedFile(path, CompressionGZ)
	require.NoError(t, err)
	_, err = io.WriteString(w, "a,b\n")
	require.NoError(t, err)
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", decompress(t, CompressionGZ, data))

	_, _, err = createCompressedFile(filepath.Join(t.TempDir(), "missing", "out.csv"), CompressionNone)
	assert.Error(t, err)
}
