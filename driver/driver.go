package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/streadmulti"
	"github.com/nao1215/streadmulti/domain/model"
	"modernc.org/sqlite"
)

// DriverName is the name for the streadmulti driver
const DriverName = "streadmulti"

// Register registers the streadmulti driver with database/sql
func Register() {
	sql.Register(DriverName, NewDriver())
}

func init() {
	// Auto-register the driver on import
	Register()
}

// Open opens a database whose table st_read holds every row matched by pattern.
//
// Example usage:
//
//	db, err := driver.Open("data/**/*.geojson")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}
	// Each connection holds its own in-memory copy; one is enough.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close() // Ignore close error during error handling
		return nil, err
	}
	return db, nil
}

// Driver implements database/sql/driver.Driver interface.
type Driver struct{}

// Connector implements database/sql/driver.Connector interface.
// It holds the parsed data source name.
type Connector struct {
	driver *Driver
	cfg    Config
}

// Connection implements database/sql/driver.Conn interface.
// It wraps an in-memory SQLite connection that holds the loaded stream.
type Connection struct {
	conn driver.Conn
}

// Transaction implements database/sql/driver.Tx interface.
type Transaction struct {
	tx driver.Tx
}

// NewDriver creates a new streadmulti driver
func NewDriver() *Driver {
	return &Driver{}
}

// Open implements driver.Driver interface
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	connector, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// OpenConnector implements driver.DriverContext interface
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return &Connector{
		driver: d,
		cfg:    cfg,
	}, nil
}

// Connect implements driver.Connector interface
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	sqliteDriver := &sqlite.Driver{}
	conn, err := sqliteDriver.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory database: %w", err)
	}

	if err := c.load(ctx, conn); err != nil {
		_ = conn.Close() // Ignore close error since we're already returning an error
		return nil, fmt.Errorf("failed to load %s: %w", c.cfg.Pattern, err)
	}
	return &Connection{conn: conn}, nil
}

// Driver implements driver.Connector interface
func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// load streams every batch of the query into the target table inside one transaction
func (c *Connector) load(ctx context.Context, conn driver.Conn) (err error) {
	r, err := streadmulti.Open(ctx, c.cfg.Pattern, c.cfg.Options)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	schema := r.Schema()
	if err := ValidateColumnCount(len(schema)); err != nil {
		return err
	}
	if err := execStatement(ctx, conn, buildCreateTableQuery(c.cfg.Table, schema), nil); err != nil {
		return err
	}

	beginner, ok := conn.(driver.ConnBeginTx)
	if !ok {
		return ErrBeginTxNotSupported
	}
	tx, err := beginner.BeginTx(ctx, driver.TxOptions{})
	if err != nil {
		return err
	}

	if err := insertStream(ctx, conn, r, buildInsertQuery(c.cfg.Table, len(schema))); err != nil {
		_ = tx.Rollback() // Ignore rollback error during error handling
		return err
	}
	return tx.Commit()
}

// buildCreateTableQuery constructs a CREATE TABLE query for the stream schema
func buildCreateTableQuery(table string, schema model.Schema) string {
	columns := make([]string, 0, len(schema))
	for _, col := range schema {
		columns = append(columns, fmt.Sprintf(`%s %s`, quoteIdent(col.Name), col.Type.SQLType()))
	}
	return fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(table), strings.Join(columns, ", "))
}

// buildInsertQuery constructs an INSERT query with count placeholders
func buildInsertQuery(table string, count int) string {
	return fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, quoteIdent(table), buildPlaceholders(count))
}

// buildPlaceholders creates placeholder string for prepared statements
func buildPlaceholders(count int) string {
	if count == 0 {
		return ""
	}
	return strings.Repeat("?, ", count-1) + "?"
}

func insertStream(ctx context.Context, conn driver.Conn, r *streadmulti.Reader, query string) error {
	preparer, ok := conn.(driver.ConnPrepareContext)
	if !ok {
		return ErrPrepareContextNotSupported
	}
	stmt, err := preparer.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for {
		batch, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, row := range batch.Rows {
			if err := execStatement(ctx, stmt, "", toNamedValues(row)); err != nil {
				return err
			}
		}
	}
}

// execStatement runs a query on a connection or executes a prepared statement
func execStatement(ctx context.Context, target any, query string, args []driver.NamedValue) error {
	switch stmt := target.(type) {
	case driver.Conn:
		preparer, ok := stmt.(driver.ConnPrepareContext)
		if !ok {
			return ErrPrepareContextNotSupported
		}
		prepared, err := preparer.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer prepared.Close()
		return execStatement(ctx, prepared, "", args)

	case driver.StmtExecContext:
		_, err := stmt.ExecContext(ctx, args)
		return err

	default:
		return ErrStmtExecContextNotSupported
	}
}

// toNamedValues converts a stream row to positional driver arguments
func toNamedValues(row model.Row) []driver.NamedValue {
	args := make([]driver.NamedValue, len(row))
	for i, v := range row {
		args[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return args
}

// Close implements driver.Conn interface
func (conn *Connection) Close() error {
	if conn.conn != nil {
		return conn.conn.Close()
	}
	return nil
}

// Begin implements driver.Conn interface (deprecated, use BeginTx instead)
func (conn *Connection) Begin() (driver.Tx, error) {
	return conn.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx interface
func (conn *Connection) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if connBeginTx, ok := conn.conn.(driver.ConnBeginTx); ok {
		tx, err := connBeginTx.BeginTx(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &Transaction{tx: tx}, nil
	}
	return nil, ErrBeginTxNotSupported
}

// Commit implements driver.Tx interface
func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

// Rollback implements driver.Tx interface
func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

// Prepare implements driver.Conn interface (deprecated, use PrepareContext instead)
func (conn *Connection) Prepare(query string) (driver.Stmt, error) {
	return conn.PrepareContext(context.Background(), query)
}

// PrepareContext implements driver.ConnPrepareContext interface
func (conn *Connection) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if connPrepareCtx, ok := conn.conn.(driver.ConnPrepareContext); ok {
		return connPrepareCtx.PrepareContext(ctx, query)
	}
	return nil, ErrPrepareContextNotSupported
}
