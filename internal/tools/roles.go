package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

type roleEntry struct {
	Priority    int      `json:"priority"`
	Role        string   `json:"role"`
	Fragments   []string `json:"fragments"`
	ShaderInput string   `json:"shader_input,omitempty"`
	ColorSpace  string   `json:"color_space"`
	Signature   string   `json:"signature"`
}

// NewListRolesHandler returns the role table.
func NewListRolesHandler(deps *Dependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		roles := deps.Tax.Roles()
		entries := make([]roleEntry, 0, len(roles))
		for i, rs := range roles {
			entries = append(entries, roleEntry{
				Priority:    i + 1,
				Role:        string(rs.Role),
				Fragments:   rs.Fragments,
				ShaderInput: rs.ShaderInput,
				ColorSpace:  string(rs.ColorSpace),
				Signature:   string(rs.Signature),
			})
		}
		return JSONResult(entries), nil
	}
}
