package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"thinkgate/utils"
)

const thinkDescription = `Use this tool to thoroughly analyze code issues, brainstorm potential solutions, ` +
	`and plan improvements or refactors without altering the repository. It helps structure your ` +
	`thought process while keeping the code intact.`

const thinkSystemPrompt = `Use this tool to explore problems, design refactoring plans, propose new features, and debug existing code.
Log your thought process thoroughly but avoid direct modifications to the repository. Keep your ideas structured, actionable, and concise.

When analyzing problems:
1. Describe the problem in your own words
2. Break down the problem into smaller components
3. Propose several solution options
4. Analyze each solution in terms of:
   - Implementation complexity
   - Potential side effects
   - Solution scalability
   - Alignment with architectural principles
5. Recommend the best approach with detailed justification

Avoid generic phrases and obvious recommendations. Provide specific, actionable advice backed by
technical details. If you're uncertain about something, clearly indicate areas that require further
investigation.`

// ThinkTool analyzes a free-form thought through the LLM backend. Unlike the
// other forwarding tools it degrades gracefully: without a configured backend
// (or on a backend failure) it still succeeds, echoing the thought back.
type ThinkTool struct {
	client AIClient
	logger *log.Logger
}

func NewThinkTool(client AIClient, logger *log.Logger) *ThinkTool {
	return &ThinkTool{client: client, logger: logger}
}

func (t *ThinkTool) Name() string { return ToolNameThink }

func (t *ThinkTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolNameThink,
		mcp.WithDescription(thinkDescription),
		mcp.WithString("thought",
			mcp.Required(),
			mcp.Description("Your detailed thoughts about the problem or idea"),
		),
		mcp.WithString("context",
			mcp.Description("Optional context from previous conversation or system state"),
		),
		mcp.WithTitleAnnotation("Thought Analyzer"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *ThinkTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	thought, ok := stringArg(args, "thought")
	if !ok {
		return errorResult(t.Name(), "thought parameter is required",
			"The thought parameter is required and must be a non-empty string."), nil
	}
	t.logger.Debug("handling think tool", "thought", utils.TruncateStr(thought, 100))

	if !t.client.IsInitialized() {
		t.logger.Info("no LLM API key configured, returning basic response")
		return textResult(fmt.Sprintf(
			"Your thought has been logged: %s\n\n(Set LLM_THINK_API_KEY or LLM_OPENAI_API_KEY env var for enhanced thinking)",
			thought)), nil
	}

	content := fmt.Sprintf("Analyze this thought and provide structured insights:\n%s", thought)
	if contextBlock, ok := stringArg(args, "context"); ok {
		content += fmt.Sprintf("\n\nContext: <context>\n%s\n</context>", contextBlock)
	}

	response, err := t.client.Process(ctx, thinkSystemPrompt, content, ProcessOptions{})
	if err != nil {
		// Enhancement is optional: fall back to the basic echo on failure.
		t.logger.Error("think LLM call failed, falling back", "error", err)
		return textResult(fmt.Sprintf(
			"Your thought has been logged: %s\n\n(Note: AI enhancement failed: %v)", thought, err)), nil
	}

	t.logger.Debug("received response from LLM")
	return textResult(fmt.Sprintf("Thought processed and enhanced:\n\n%s", response)), nil
}
