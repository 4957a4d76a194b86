package codec

import (
	"compress/gzip"
	"os"
	"testing"

	"github.com/nao1215/streadmulti/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeGzip(t *testing.T, path, content string) {
	t.Helper()

	f, err := os.Create(path) //nolint:gosec // test path
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	_, err = gw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())
}

func TestForFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format  model.FormatKind
		wantErr bool
	}{
		{format: model.FormatGeoJSON},
		{format: model.FormatGeoPackage},
		{format: model.FormatShapefile},
		{format: model.FormatUnsupported, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			t.Parallel()

			c, err := ForFormat(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, c.Format())
		})
	}
}

func TestConfig_Logger(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, Config{}.logger())

	l := zap.NewExample()
	assert.Same(t, l, Config{Logger: l}.logger())
}
