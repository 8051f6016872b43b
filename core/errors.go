// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidQuery indicates a QuerySpec failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrDuplicateColumn indicates a header names the same column twice.
	ErrDuplicateColumn = errors.New("duplicate column name")

	// ErrEmptyColumnName indicates a header contains a blank column name.
	ErrEmptyColumnName = errors.New("column name cannot be empty")

	// ErrRowWidth indicates a row has a different number of values than its header.
	ErrRowWidth = errors.New("row width does not match header")

	// ErrUnrenderable indicates a value has no canonical text form.
	ErrUnrenderable = errors.New("value cannot be rendered as text")
)

// InvalidQueryError reports which part of a QuerySpec was rejected.
type InvalidQueryError struct {
	Field  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidQuery, e.Field, e.Reason)
}

func (e *InvalidQueryError) Unwrap() error {
	return ErrInvalidQuery
}

// Warning reasons attached to FieldCoercionWarning.
const (
	ReasonUnparseableDate = "unparseable_date"
	ReasonUnrenderable    = "unrenderable_value"
)

// FieldCoercionWarning records a field value that could not be interpreted.
// Warnings never abort a query; they accumulate on the result set.
type FieldCoercionWarning struct {
	SourceID string
	RowID    int
	Column   string
	Value    string
	Reason   string
}

func (w FieldCoercionWarning) String() string {
	return fmt.Sprintf("%s row %d column %q: %s (%q)", w.SourceID, w.RowID, w.Column, w.Reason, w.Value)
}
