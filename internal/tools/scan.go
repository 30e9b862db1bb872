package tools

import (
	"context"
	"path"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/raphaelgruber/texmtlx/internal/models"
	"github.com/raphaelgruber/texmtlx/internal/service"
)

// ScanOutput is the scan_materials response.
type ScanOutput struct {
	Materials    []*models.MaterialTextureSet `json:"materials"`
	FilesSeen    int                          `json:"files_seen"`
	Classified   int                          `json:"classified"`
	Unclassified []string                     `json:"unclassified,omitempty"`
}

// scanDirs validates the dirs argument and scans it.
func scanDirs(deps *Dependencies, req mcp.CallToolRequest) (*service.ScanResult, *mcp.CallToolResult) {
	dirs, err := req.RequireStringSlice("dirs")
	if err != nil || len(dirs) == 0 {
		return nil, ErrorResult("dirs cannot be empty", "Provide at least one absolute folder path")
	}
	for i, d := range dirs {
		if !path.IsAbs(d) {
			return nil, ErrorResult("Folder must be absolute: "+d, "Pass full paths such as /job/tex")
		}
		dirs[i] = path.Clean(d)
	}

	scanner := service.NewScanner(deps.FS, deps.Tax)
	result, err := scanner.Scan(dirs, req.GetBool("recursive", false))
	if err != nil {
		deps.Logger.Error("scan failed", "dirs", dirs, "error", err)
		return nil, ErrorResult("Scan failed: "+err.Error(), "Check that every folder exists")
	}
	return result, nil
}

// NewScanHandler scans folders and reports the material sets found.
func NewScanHandler(deps *Dependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, errResult := scanDirs(deps, req)
		if errResult != nil {
			return errResult, nil
		}

		out := ScanOutput{
			FilesSeen:    result.FilesSeen,
			Classified:   result.Classified,
			Unclassified: result.Unclassified,
		}
		for _, name := range service.SortedNames(result.Sets) {
			out.Materials = append(out.Materials, result.Sets[name])
		}

		deps.Logger.Info("scan completed", "materials", len(out.Materials), "files", out.FilesSeen)
		return JSONResult(out), nil
	}
}
