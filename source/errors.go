package source

import "errors"

var (
	// ErrUnsupportedFormat is returned for files whose extension has no reader.
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// ErrUnknownEncoding is returned when a CSV charset name cannot be resolved.
	ErrUnknownEncoding = errors.New("unknown text encoding")

	// ErrNoTable is returned when an HTML document has no table to read.
	ErrNoTable = errors.New("no table found")

	// ErrNotObject is returned when a JSON record is not an object.
	ErrNotObject = errors.New("json record is not an object")

	// ErrUnknownDriver is returned for SQL drivers rowseek does not register.
	ErrUnknownDriver = errors.New("unknown sql driver")

	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
