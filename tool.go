package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names as exposed to MCP clients.
const (
	ToolNameArchitect          = "architect"
	ToolNameThink              = "think"
	ToolNameLLMGateway         = "llm_gateway"
	ToolNameSequentialThinking = "sequential_thinking"
)

// Tool is the contract every thinking tool implements. Well-behaved tools
// convert their own failures into error-classed results and return a nil
// error; a non-nil error (or a panic) is a last-resort escape hatch that the
// dispatcher converts into an error envelope.
type Tool interface {
	Name() string
	Definition() mcp.Tool
	Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// errorResult builds the two-part error envelope shared by all tools: a
// user-facing hint followed by the detailed message for the assistant.
func errorResult(toolName, errMessage, userHint string) *mcp.CallToolResult {
	if userHint == "" {
		userHint = fmt.Sprintf("An error occurred while executing the %s tool. Please try again later.", toolName)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Annotated: mcp.Annotated{
					Annotations: &mcp.Annotations{
						Audience: []mcp.Role{mcp.RoleUser},
						Priority: 1.0,
					},
				},
				Type: "text",
				Text: userHint,
			},
			mcp.TextContent{
				Annotated: mcp.Annotated{
					Annotations: &mcp.Annotations{
						Audience: []mcp.Role{mcp.RoleAssistant},
						Priority: 0.8,
					},
				},
				Type: "text",
				Text: fmt.Sprintf("Error executing %s tool: %s", toolName, errMessage),
			},
		},
		IsError: true,
	}
}

// stringArg extracts a non-empty string argument.
func stringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
