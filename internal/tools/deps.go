// Package tools provides MCP tool handlers and registration.
package tools

import (
	"log/slog"

	"github.com/go-git/go-billy/v5"
	"github.com/raphaelgruber/texmtlx/internal/graph"
	"github.com/raphaelgruber/texmtlx/internal/sink"
	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Tax       *taxonomy.Taxonomy
	FS        billy.Filesystem
	Synthesis graph.Options
	Sink      sink.Sink // nil disables materialization
	Library   string
	Logger    *slog.Logger
}
