package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"thinkgate/utils"
)

const gatewayDescription = `A tool for direct interaction with a specialized artificial intelligence model. ` +
	`Use it when you need answers to specific questions, content generation, or text analysis.`

const gatewaySystemPrompt = `You are a specialized artificial intelligence model optimized to support software developers.
Your task is to provide clear, specific, and helpful answers to technical questions.

Follow these principles in your responses:

1. Be precise and specific. Avoid generalities and vague answers.
2. Provide contextual examples when appropriate.
3. If you're unsure about an answer, honestly acknowledge this and suggest possible directions for research.
4. Use structured formats for complex information (lists, tables, etc.).
5. For code examples, always specify the programming language and include comments.
6. If a question is unclear, try to understand its intent before responding.

Your response should be well-structured, concise, and understandable for developers of any level.`

const gatewayCodeSystemPrompt = `You are a specialized artificial intelligence model optimized for analyzing, developing, and explaining code.
Your task is to provide high-quality solutions for programming and development problems.

Follow these principles in your responses:

1. Prioritize code quality and correctness over brevity.
2. Always explain key parts of your code, especially non-standard approaches.
3. Consider edge cases and possible errors.
4. Follow accepted practices and coding styles for the specific programming language.
5. Include test examples when appropriate.
6. Pay attention to the performance and scalability of your solution.

Your response should help the developer not only solve the current problem but also improve their
understanding of the underlying concepts.`

const gatewayEducationalSystemPrompt = `You are a specialized artificial intelligence model optimized for teaching and explaining complex technical concepts.
Your task is to make complex topics understandable and accessible.

Follow these principles in your responses:

1. Start with a simple explanation, then gradually increase complexity.
2. Use metaphors, analogies, and visual descriptions when they help explain a concept.
3. Break down complex ideas into simpler components.
4. Provide practical examples to demonstrate concepts in action.
5. Connect new concepts to already familiar ones.
6. Define unfamiliar terms and avoid jargon without explanation.

Your response should leave the user with a deeper understanding of the topic and the ability to
apply this knowledge practically.`

// LLMGatewayTool gives raw access to the LLM backend with selectable system
// prompt variants. A caller-supplied system prompt takes precedence over the
// named variants.
type LLMGatewayTool struct {
	client AIClient
	logger *log.Logger
}

func NewLLMGatewayTool(client AIClient, logger *log.Logger) *LLMGatewayTool {
	return &LLMGatewayTool{client: client, logger: logger}
}

func (t *LLMGatewayTool) Name() string { return ToolNameLLMGateway }

func (t *LLMGatewayTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolNameLLMGateway,
		mcp.WithDescription(gatewayDescription),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Message or query to the LLM"),
		),
		mcp.WithString("context",
			mcp.Description("Additional context to improve the response"),
		),
		mcp.WithString("systemPrompt",
			mcp.Description("System prompt for the LLM (replaces the default)"),
		),
		mcp.WithString("systemPromptType",
			mcp.Description("Type of system prompt: default, code, or educational"),
			mcp.Enum("default", "code", "educational"),
		),
		mcp.WithNumber("temperature",
			mcp.Description("Creativity level of the response (0.0 - deterministic, 1.0 - creative)"),
			mcp.Min(0),
			mcp.Max(1),
		),
		mcp.WithNumber("maxTokens",
			mcp.Description("Maximum number of tokens in the response"),
			mcp.Min(1),
		),
		mcp.WithTitleAnnotation("Specialized Language Model Gateway"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

func (t *LLMGatewayTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	message, ok := stringArg(args, "message")
	if !ok {
		return errorResult(t.Name(), "message parameter is required",
			"The message parameter is required and must be a non-empty string."), nil
	}
	t.logger.Debug("handling llm_gateway request", "message", utils.TruncateStr(message, 100))

	if !t.client.IsInitialized() {
		t.logger.Info("no LLM API key configured for llm_gateway tool")
		return errorResult(t.Name(), "API key not configured",
			"LLM Gateway tool requires LLM API key to be configured. Please check server configuration."), nil
	}

	systemPrompt := selectGatewayPrompt(args)

	content := message
	if contextBlock, ok := stringArg(args, "context"); ok {
		content = fmt.Sprintf("%s\n\nAdditional context:\n%s", message, contextBlock)
	}

	opts := ProcessOptions{}
	if temp, ok := args["temperature"].(float64); ok {
		opts.Temperature = temp
	}
	if maxTokens, ok := args["maxTokens"].(float64); ok {
		opts.MaxTokens = int(maxTokens)
	}

	response, err := t.client.Process(ctx, systemPrompt, content, opts)
	if err != nil {
		t.logger.Error("llm_gateway LLM call failed", "error", err)
		return errorResult(t.Name(), err.Error(),
			"An error occurred while interacting with the LLM model. Please try again later."), nil
	}

	modelInfo := fmt.Sprintf("Model used: %s (%s)",
		withDefault(t.client.ModelName(), "not specified"), t.client.ProviderName())

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Annotated: mcp.Annotated{
					Annotations: &mcp.Annotations{
						Audience: []mcp.Role{mcp.RoleUser, mcp.RoleAssistant},
						Priority: 1.0,
					},
				},
				Type: "text",
				Text: response,
			},
			mcp.TextContent{
				Annotated: mcp.Annotated{
					Annotations: &mcp.Annotations{
						Audience: []mcp.Role{mcp.RoleUser, mcp.RoleAssistant},
						Priority: 0.3,
					},
				},
				Type: "text",
				Text: modelInfo,
			},
		},
	}, nil
}

// selectGatewayPrompt picks the system prompt: caller override first, then
// the named variant, then the default.
func selectGatewayPrompt(args map[string]interface{}) string {
	if override, ok := stringArg(args, "systemPrompt"); ok {
		return override
	}
	switch args["systemPromptType"] {
	case "code":
		return gatewayCodeSystemPrompt
	case "educational":
		return gatewayEducationalSystemPrompt
	default:
		return gatewaySystemPrompt
	}
}
