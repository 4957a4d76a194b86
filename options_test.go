package streadmulti

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		opts := NewOptions()
		assert.Equal(t, DefaultBatchSize, opts.BatchSize)
		assert.Empty(t, opts.Layer)
		assert.Empty(t, opts.Encoding)
		assert.False(t, opts.EagerValidation)
		assert.NotNil(t, opts.logger())
		assert.NoError(t, opts.validate())
	})

	t.Run("with methods return copies", func(t *testing.T) {
		t.Parallel()

		logger := zap.NewExample()
		base := NewOptions()
		opts := base.WithLayer("roads").
			WithEncoding("CP932").
			WithBatchSize(10).
			WithEagerValidation(true).
			WithLogger(logger)

		assert.Equal(t, "roads", opts.Layer)
		assert.Equal(t, "CP932", opts.Encoding)
		assert.Equal(t, 10, opts.batchSize())
		assert.True(t, opts.EagerValidation)
		assert.Same(t, logger, opts.logger())
		assert.Equal(t, NewOptions(), base)
	})

	t.Run("batch size", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, DefaultBatchSize, Options{}.batchSize())
		assert.ErrorIs(t, NewOptions().WithBatchSize(-5).validate(), ErrInvalidOption)
	})
}

func TestErrorContext(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")

	tests := []struct {
		name string
		ec   *ErrorContext
		want string
	}{
		{
			name: "operation only",
			ec:   NewErrorContext("open", ""),
			want: "streadmulti: open failed: boom",
		},
		{
			name: "file and layer",
			ec:   NewErrorContext("read source", "/data/a.gpkg").WithLayer("roads"),
			want: "streadmulti: read source failed, file: /data/a.gpkg, layer: roads: boom",
		},
		{
			name: "details",
			ec:   NewErrorContext("export", "out.csv").WithDetails("csv"),
			want: "streadmulti: export failed, file: out.csv, details: csv: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.ec.Error(base)
			assert.EqualError(t, err, tt.want)
			assert.ErrorIs(t, err, base)
		})
	}

	assert.EqualError(t, NewErrorContext("close", "x").Error(nil), "streadmulti: close failed, file: x")
}
