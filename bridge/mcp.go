package bridge

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// InputSchema builds a JSON schema object for tool arguments.
func InputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// RegisterMCPTool exposes msgType as an MCP tool: the tool arguments are the
// message payload and the handler response is returned as text content.
func (r *Router) RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, msgType string) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var payload []byte
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			payload = req.Params.Arguments
		}
		if payload != nil && !json.Valid(payload) {
			var res mcp.CallToolResult
			res.SetError(errors.New("invalid arguments: not JSON"))
			return &res, nil
		}

		out, err := r.Call(ctx, msgType, payload)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(out)}},
		}, nil
	})
}
