package db

import (
	"errors"
	"testing"

	"github.com/raphaelgruber/texmtlx/internal/sink"
	"github.com/surrealdb/surrealdb.go"
)

func TestWrapQueryError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"duplicate record", &surrealdb.QueryError{Message: "Database record `material_node:x` already exists"}, sink.ErrNodeExists},
		{"index violation", &surrealdb.QueryError{Message: "Database index `unique_input` already contains 'x'"}, sink.ErrNodeExists},
		{"conflict", &surrealdb.QueryError{Message: "Transaction conflict: resource busy"}, ErrTransactionConflict},
		{"unrelated", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapQueryError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("wrapQueryError(nil) = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("wrapQueryError(%v) = %v, want errors.Is %v", tt.err, got, tt.want)
			}
		})
	}
}
