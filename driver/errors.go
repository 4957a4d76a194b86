package driver

import "errors"

// Predefined errors
var (
	// ErrInvalidDSN is returned when the data source name cannot be parsed
	ErrInvalidDSN = errors.New("streadmulti driver: invalid data source name")

	// ErrTooManyColumns is returned when the stream has more columns than the loader accepts
	ErrTooManyColumns = errors.New("streadmulti driver: too many columns")

	// ErrStmtExecContextNotSupported is returned when statement does not support ExecContext
	ErrStmtExecContextNotSupported = errors.New("streadmulti driver: statement does not support ExecContext")

	// ErrBeginTxNotSupported is returned when underlying connection does not support BeginTx
	ErrBeginTxNotSupported = errors.New("streadmulti driver: underlying connection does not support BeginTx")

	// ErrPrepareContextNotSupported is returned when underlying connection does not support PrepareContext
	ErrPrepareContextNotSupported = errors.New("streadmulti driver: underlying connection does not support PrepareContext")
)
