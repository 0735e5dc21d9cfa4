package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"thinkgate/utils"
)

const architectDescription = `A tool for analyzing technical requirements and creating detailed implementation plans. ` +
	`Use it to plan feature implementations, solve technical problems, or structure your code.`

const architectSystemPrompt = `You are an expert software architect tasked with analyzing technical requirements and producing clear, actionable implementation plans.
A junior software engineer will carry out these plans, so your explanations must be specific and detailed.
Your role is to guide the implementation without writing actual code.

Please follow these steps to create your implementation plan:

1. Requirement Analysis:
   - Carefully review the provided context and requirements.
   - Identify the core functionality that needs to be implemented.
   - Note any constraints or limitations mentioned.

2. Technical Approach:
   - Define a clear technical approach to address the requirements.
   - Specify the technologies, frameworks, or libraries that should be used.
   - Outline any design patterns or architectural approaches that are appropriate.

3. Implementation Breakdown:
   - Break down the implementation into concrete, actionable steps.
   - Ensure each step is at an appropriate level of abstraction for a junior engineer.
   - Provide clear explanations for why each step is necessary.

4. Final Review:
   - Ensure your plan is focused, specific, and actionable.
   - Verify that you haven't included any actual code.
   - Make sure your plan addresses all the requirements and considers the given context.

Your final output should be a numbered implementation plan with substeps. Keep your response
focused on providing a clear plan a junior engineer can follow, without writing code.`

// ArchitectTool forwards a technical request to the LLM backend with an
// architecture planning prompt. It requires a configured backend.
type ArchitectTool struct {
	client AIClient
	logger *log.Logger
}

func NewArchitectTool(client AIClient, logger *log.Logger) *ArchitectTool {
	return &ArchitectTool{client: client, logger: logger}
}

func (t *ArchitectTool) Name() string { return ToolNameArchitect }

func (t *ArchitectTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolNameArchitect,
		mcp.WithDescription(architectDescription),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The technical request or coding task to analyze"),
		),
		mcp.WithString("context",
			mcp.Description("Optional context from previous conversation or system state"),
		),
		mcp.WithTitleAnnotation("Software Architecture Planner"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *ArchitectTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	prompt, ok := stringArg(args, "prompt")
	if !ok {
		return errorResult(t.Name(), "prompt parameter is required",
			"The prompt parameter is required and must be a non-empty string."), nil
	}
	t.logger.Debug("handling architect tool", "prompt", utils.TruncateStr(prompt, 100))

	if !t.client.IsInitialized() {
		t.logger.Info("no LLM API key configured for architect tool")
		return errorResult(t.Name(), "API key not configured",
			"Architect tool requires LLM API key to be configured. Please check server configuration."), nil
	}

	content := prompt
	if contextBlock, ok := stringArg(args, "context"); ok {
		content = fmt.Sprintf("Here is the context for the project:\n<context>\n%s\n</context>\n\n"+
			"And here are the specific technical requirements you need to analyze:\n<requirements>\n%s\n</requirements>",
			contextBlock, prompt)
	}

	response, err := t.client.Process(ctx, architectSystemPrompt, content, ProcessOptions{})
	if err != nil {
		t.logger.Error("architect LLM call failed", "error", err)
		return errorResult(t.Name(), err.Error(),
			"Error generating architecture plan. Please try again later."), nil
	}

	t.logger.Debug("architect response generated")
	return textResult(response), nil
}
