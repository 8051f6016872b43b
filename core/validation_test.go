package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateQuerySpec(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		spec      *QuerySpec
		wantField string
	}{
		{
			name: "valid browse spec",
			spec: NewQuerySpec(),
		},
		{
			name: "valid fuzzy spec",
			spec: NewQuerySpec(WithQuery("anna"), WithFuzzy(70)),
		},
		{
			name: "threshold zero allowed",
			spec: NewQuerySpec(WithQuery("anna"), WithFuzzy(0)),
		},
		{
			name:      "out of range threshold in exact mode",
			spec:      &QuerySpec{Query: "anna", Threshold: 500},
			wantField: "threshold",
		},
		{
			name:      "threshold above 100 without mode",
			spec:      &QuerySpec{Threshold: 150},
			wantField: "threshold",
		},
		{
			name:      "nil spec",
			spec:      nil,
			wantField: "spec",
		},
		{
			name:      "threshold above 100",
			spec:      NewQuerySpec(WithFuzzy(101)),
			wantField: "threshold",
		},
		{
			name:      "negative threshold",
			spec:      NewQuerySpec(WithFuzzy(-1)),
			wantField: "threshold",
		},
		{
			name:      "negative limit",
			spec:      NewQuerySpec(WithLimit(-5)),
			wantField: "limit",
		},
		{
			name:      "start after end",
			spec:      NewQuerySpec(WithDateRange(&jan31, &jan1)),
			wantField: "date_range",
		},
		{
			name: "start equals end",
			spec: NewQuerySpec(WithDateRange(&jan1, &jan1)),
		},
		{
			name:      "blank date column",
			spec:      NewQuerySpec(WithDateRange(&jan1, nil, " ")),
			wantField: "date_range.columns",
		},
		{
			name:      "blank target column",
			spec:      NewQuerySpec(WithColumns("")),
			wantField: "columns",
		},
		{
			name:      "blank filter column",
			spec:      NewQuerySpec(WithFilter(" ", "x")),
			wantField: "filters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuerySpec(tt.spec)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateQuerySpec() unexpected error: %v", err)
				}
				return
			}

			if !errors.Is(err, ErrInvalidQuery) {
				t.Fatalf("ValidateQuerySpec() error = %v, want ErrInvalidQuery", err)
			}
			var qerr *InvalidQueryError
			if !errors.As(err, &qerr) {
				t.Fatalf("error is not *InvalidQueryError: %T", err)
			}
			if qerr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", qerr.Field, tt.wantField)
			}
		})
	}
}
