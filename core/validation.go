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
	"fmt"
	"strings"
)

// ValidateQuerySpec validates a QuerySpec before any row is touched.
//
// Validation rules:
//   - spec must not be nil
//   - Threshold must be within 0..100 in both modes
//   - Limit must not be negative
//   - DateRange.Start must not be after DateRange.End
//   - column names and filter columns must not be blank
//
// NOT validated:
//   - column and source names that match nothing (they scope the query to nothing)
//   - an absent query (browse mode)
func ValidateQuerySpec(spec *QuerySpec) error {
	if spec == nil {
		return &InvalidQueryError{Field: "spec", Reason: "spec is nil"}
	}

	if spec.Threshold < 0 || spec.Threshold > 100 {
		return &InvalidQueryError{Field: "threshold", Reason: fmt.Sprintf("must be within 0..100, got %d", spec.Threshold)}
	}

	if spec.Limit < 0 {
		return &InvalidQueryError{Field: "limit", Reason: fmt.Sprintf("must not be negative, got %d", spec.Limit)}
	}

	if dr := spec.DateRange; dr != nil {
		if dr.Start != nil && dr.End != nil && dr.Start.After(*dr.End) {
			return &InvalidQueryError{Field: "date_range", Reason: "start is after end"}
		}
		for _, c := range dr.Columns {
			if strings.TrimSpace(c) == "" {
				return &InvalidQueryError{Field: "date_range.columns", Reason: "blank column name"}
			}
		}
	}

	for _, c := range spec.Columns {
		if strings.TrimSpace(c) == "" {
			return &InvalidQueryError{Field: "columns", Reason: "blank column name"}
		}
	}

	for _, f := range spec.Filters {
		if strings.TrimSpace(f.Column) == "" {
			return &InvalidQueryError{Field: "filters", Reason: "blank filter column"}
		}
	}

	return nil
}
