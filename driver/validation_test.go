package driver

import (
	"testing"

	"github.com/nao1215/streadmulti"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dsn  string
		want Config
	}{
		{
			name: "pattern only",
			dsn:  "data/*.geojson",
			want: Config{Pattern: "data/*.geojson", Table: DefaultTableName, Options: streadmulti.NewOptions()},
		},
		{
			name: "question mark wildcard",
			dsn:  "data/points?.geojson",
			want: Config{Pattern: "data/points?.geojson", Table: DefaultTableName, Options: streadmulti.NewOptions()},
		},
		{
			name: "all parameters",
			dsn:  "data/*.gpkg?layer=roads&encoding=CP932&batch_size=16&eager=true&table=roads",
			want: Config{
				Pattern: "data/*.gpkg",
				Table:   "roads",
				Options: streadmulti.NewOptions().
					WithLayer("roads").
					WithEncoding("CP932").
					WithBatchSize(16).
					WithEagerValidation(true),
			},
		},
		{
			name: "escaped layer name",
			dsn:  "a.gpkg?layer=main%20roads",
			want: Config{Pattern: "a.gpkg", Table: DefaultTableName, Options: streadmulti.NewOptions().WithLayer("main roads")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDSN(tt.dsn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDSN_Invalid(t *testing.T) {
	t.Parallel()

	dsns := []string{
		"",
		"?layer=roads",
		"a.gpkg?color=red",
		"a.gpkg?batch_size=zero",
		"a.gpkg?batch_size=-1",
		"a.gpkg?eager=maybe",
		"a.gpkg?table=st read",
		"a.gpkg?layer=%zz",
		"a\x00.gpkg",
	}
	for _, dsn := range dsns {
		_, err := ParseDSN(dsn)
		assert.ErrorIs(t, err, ErrInvalidDSN, dsn)
	}
}

func TestValidateColumnCount(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateColumnCount(MaxColumnCount))
	assert.ErrorIs(t, ValidateColumnCount(MaxColumnCount+1), ErrTooManyColumns)
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `".filename"`, quoteIdent(".filename"))
	assert.Equal(t, `"say ""hi"""`, quoteIdent(`say "hi"`))
}
