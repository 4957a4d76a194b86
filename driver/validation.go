package driver

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/nao1215/streadmulti"
)

// DefaultTableName is the table that receives the unified stream
const DefaultTableName = "st_read"

// MaxColumnCount defines the maximum number of columns allowed in the loaded table
const MaxColumnCount = 2000

// identifierPattern restricts table names to plain SQL identifiers
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config is a parsed data source name
type Config struct {
	// Pattern is the glob pattern handed to streadmulti.Open
	Pattern string
	// Table is the name of the table the stream is loaded into
	Table string
	// Options are the query options
	Options streadmulti.Options
}

// ParseDSN splits a data source name of the form
//
//	pattern[?layer=NAME&encoding=LABEL&batch_size=N&eager=BOOL&table=NAME]
//
// The text after the last '?' is treated as parameters only when it contains
// '=', so '?' stays usable as a glob wildcard.
func ParseDSN(dsn string) (Config, error) {
	cfg := Config{
		Pattern: dsn,
		Table:   DefaultTableName,
		Options: streadmulti.NewOptions(),
	}

	if i := strings.LastIndex(dsn, "?"); i >= 0 && strings.Contains(dsn[i+1:], "=") {
		cfg.Pattern = dsn[:i]
		params, err := url.ParseQuery(dsn[i+1:])
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidDSN, err)
		}
		if err := cfg.apply(params); err != nil {
			return Config{}, err
		}
	}

	if strings.TrimSpace(cfg.Pattern) == "" {
		return Config{}, fmt.Errorf("%w: empty pattern", ErrInvalidDSN)
	}
	if strings.Contains(cfg.Pattern, "\x00") {
		return Config{}, fmt.Errorf("%w: pattern contains a null byte", ErrInvalidDSN)
	}
	return cfg, nil
}

func (c *Config) apply(params url.Values) error {
	for key, values := range params {
		value := values[len(values)-1]
		switch key {
		case "layer":
			c.Options = c.Options.WithLayer(value)
		case "encoding":
			c.Options = c.Options.WithEncoding(value)
		case "batch_size":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: batch_size %q", ErrInvalidDSN, value)
			}
			c.Options = c.Options.WithBatchSize(n)
		case "eager":
			eager, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%w: eager %q", ErrInvalidDSN, value)
			}
			c.Options = c.Options.WithEagerValidation(eager)
		case "table":
			if !identifierPattern.MatchString(value) {
				return fmt.Errorf("%w: table %q is not a plain identifier", ErrInvalidDSN, value)
			}
			c.Table = value
		default:
			return fmt.Errorf("%w: unknown parameter %q", ErrInvalidDSN, key)
		}
	}
	return nil
}

// ValidateColumnCount checks if the number of columns is within acceptable limits
func ValidateColumnCount(columnCount int) error {
	if columnCount > MaxColumnCount {
		return fmt.Errorf("%w: %d columns exceed the limit of %d", ErrTooManyColumns, columnCount, MaxColumnCount)
	}
	return nil
}

// quoteIdent quotes a column name for SQLite
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
