package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(s *mcpserver.MCPServer, deps *Dependencies) {
	s.AddTool(mcp.NewTool("list_roles",
		mcp.WithDescription("List the texture roles in priority order with their name fragments and shader inputs"),
	), NewListRolesHandler(deps))

	s.AddTool(mcp.NewTool("classify_texture",
		mcp.WithDescription("Infer the material name and texture role of an image file from its name"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Texture file path or file name")),
	), NewClassifyHandler(deps))

	s.AddTool(mcp.NewTool("scan_materials",
		mcp.WithDescription("Scan folders for textures and group them into materials"),
		mcp.WithArray("dirs", mcp.Required(), mcp.Description("Absolute folder paths"), mcp.WithStringItems()),
		mcp.WithBoolean("recursive", mcp.Description("Include subfolders")),
	), NewScanHandler(deps))

	s.AddTool(mcp.NewTool("synthesize_material",
		mcp.WithDescription("Build the shader network of one scanned material and return it as MaterialX or JSON"),
		mcp.WithArray("dirs", mcp.Required(), mcp.Description("Absolute folder paths holding the material's textures"), mcp.WithStringItems()),
		mcp.WithString("material", mcp.Required(), mcp.Description("Material name as reported by scan_materials")),
		mcp.WithBoolean("recursive", mcp.Description("Include subfolders")),
		mcp.WithString("format", mcp.Enum("mtlx", "json"), mcp.Description("Output format, default mtlx")),
		mcp.WithBoolean("tx", mcp.Description("Reference converted .tx cache files")),
		mcp.WithBoolean("materialize", mcp.Description("Also create the network in the material library")),
	), NewSynthesizeHandler(deps))
}
