package tools

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/raphaelgruber/texmtlx/internal/export"
	"github.com/raphaelgruber/texmtlx/internal/graph"
	"github.com/raphaelgruber/texmtlx/internal/service"
	"github.com/raphaelgruber/texmtlx/internal/sink"
)

// NewSynthesizeHandler builds one material's network and returns it as a
// document, optionally materializing it into the configured library.
func NewSynthesizeHandler(deps *Dependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		material, err := req.RequireString("material")
		if err != nil || material == "" {
			return ErrorResult("Material cannot be empty", "Call scan_materials to list material names"), nil
		}
		format := req.GetString("format", "mtlx")
		if format != "mtlx" && format != "json" {
			return ErrorResult("Unknown format: "+format, "Use mtlx or json"), nil
		}

		result, errResult := scanDirs(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		set, ok := result.Sets[material]
		if !ok {
			return ErrorResult("Unknown material: "+material,
				fmt.Sprintf("Found: %v", service.SortedNames(result.Sets))), nil
		}

		opts := deps.Synthesis
		opts.ConvertToCache = req.GetBool("tx", false)
		g, err := graph.NewEngine(deps.Tax, opts).Synthesize(set)
		if err != nil {
			deps.Logger.Error("synthesis failed", "material", material, "error", err)
			return ErrorResult("Synthesis failed: "+err.Error(), ""), nil
		}

		var buf bytes.Buffer
		if format == "json" {
			err = export.WriteJSON(&buf, g)
		} else {
			err = export.WriteMaterialX(&buf, g)
		}
		if err != nil {
			return ErrorResult("Export failed: "+err.Error(), ""), nil
		}

		if req.GetBool("materialize", false) {
			if deps.Sink == nil {
				return ErrorResult("No material library configured", "Retry without materialize"), nil
			}
			h, err := sink.Materialize(ctx, deps.Sink, deps.Library, g)
			if err != nil {
				deps.Logger.Error("materialize failed", "material", material, "error", err)
				return ErrorResult("Materialize failed: "+err.Error(), "Check that the library exists and is unlocked"), nil
			}
			deps.Logger.Info("material created", "material", g.Name, "handle", h)
			return &mcp.CallToolResult{Content: []mcp.Content{
				mcp.NewTextContent(buf.String()),
				mcp.NewTextContent("Created " + string(h)),
			}}, nil
		}

		return TextResult(buf.String()), nil
	}
}
