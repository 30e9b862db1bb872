package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/raphaelgruber/texmtlx/internal/parser"
)

// NewClassifyHandler classifies a single file name without touching the
// file system.
func NewClassifyHandler(deps *Dependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := req.RequireString("path")
		if err != nil || p == "" {
			return ErrorResult("Path cannot be empty", "Provide a texture file path"), nil
		}

		ct, ok := parser.Classify(deps.Tax, p)
		if !ok {
			return ErrorResult("Not a recognized texture: "+p,
				"Expected <material>_<descriptor>.<ext> with an image extension; call list_roles for descriptors"), nil
		}

		deps.Logger.Debug("classified texture", "path", ct.Path, "material", ct.Material, "role", ct.Role)
		return JSONResult(ct), nil
	}
}
