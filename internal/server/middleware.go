package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// maxArgLogLen is the maximum length for logged arguments before truncation.
const maxArgLogLen = 200

// slowRequestThreshold is the duration above which tool calls are logged at WARN level.
const slowRequestThreshold = 100 * time.Millisecond

// LoggingMiddleware logs every tool call with its duration.
// Slow calls (>100ms) are logged at WARN level and tool errors at ERROR.
// Arguments are truncated to 200 characters.
func LoggingMiddleware(logger *slog.Logger) mcpserver.ToolHandlerMiddleware {
	return func(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			result, err := next(ctx, req)
			duration := time.Since(start)

			attrs := []any{
				"tool", req.Params.Name,
				"duration_ms", duration.Milliseconds(),
			}
			if args := formatArgs(req); args != "" {
				attrs = append(attrs, "args", truncate(args, maxArgLogLen))
			}

			switch {
			case err != nil:
				attrs = append(attrs, "error", err.Error())
				logger.Error("tool call failed", attrs...)
			case result != nil && result.IsError:
				logger.Warn("tool returned error", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow tool call", attrs...)
			default:
				logger.Debug("tool call completed", attrs...)
			}

			return result, err
		}
	}
}

func formatArgs(req mcp.CallToolRequest) string {
	args := req.GetArguments()
	if len(args) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", args)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
