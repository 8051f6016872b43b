package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceIDRequired is returned when a load is attempted without a source ID.
	ErrSourceIDRequired = errors.New("source id required")

	// ErrReaderRequired is returned when a load is attempted without a reader.
	ErrReaderRequired = errors.New("reader required")

	// ErrNoColumns is returned when a reader yields an empty header.
	ErrNoColumns = errors.New("source has no columns")

	// ErrRowWidth is returned when a record's width differs from the header's.
	ErrRowWidth = errors.New("inconsistent row width")
)

// LoadError describes why a source could not be loaded. Row is the offending
// record's ordinal, or -1 when the failure is not tied to a record.
type LoadError struct {
	SourceID string
	Row      int
	Err      error
}

func newLoadError(sourceID string, err error) *LoadError {
	return &LoadError{SourceID: sourceID, Row: -1, Err: err}
}

func (e *LoadError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("load %s: row %d: %v", e.SourceID, e.Row, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.SourceID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
