package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "thinkgate"
	serverVersion = "1.0.0"
)

func main() {
	// CLI flags
	transport := flag.String("transport", "stdio", "Transport mode: stdio or sse")
	port := flag.String("port", "8080", "Port for SSE server (only used with -transport=sse)")
	baseURL := flag.String("base-url", "", "Base URL for SSE server (default: http://localhost:<port>)")
	flag.Parse()

	// Also check environment variables
	if t := os.Getenv("MCP_TRANSPORT"); t != "" && *transport == "stdio" {
		*transport = t
	}
	if p := os.Getenv("MCP_PORT"); p != "" && *port == "8080" {
		*port = p
	}
	if b := os.Getenv("MCP_BASE_URL"); b != "" && *baseURL == "" {
		*baseURL = b
	}

	// .env is optional; real env vars win over file values.
	_ = godotenv.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          serverName,
	})

	cfg := LoadConfig(logger)
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warn("unknown log level, using info", "level", cfg.LogLevel)
	}

	factory := NewClientFactory(cfg, logger)
	defer factory.Close()

	tools := []Tool{
		NewArchitectTool(factory.ClientFor(ToolNameArchitect), logger),
		NewThinkTool(factory.ClientFor(ToolNameThink), logger),
		NewLLMGatewayTool(factory.ClientFor(ToolNameLLMGateway), logger),
		NewSequentialThinkingTool(logger),
	}

	registry := NewToolRegistry(tools, cfg.DisabledTools, logger)
	dispatcher := NewDispatcher(registry, logger)

	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithRecovery(),
	)

	dispatcher.SetToolsChangedFunc(func() {
		s.SendNotificationToAllClients("notifications/tools/list_changed", nil)
	})

	for _, def := range dispatcher.ListTools() {
		name := def.Name
		s.AddTool(def, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})
			if args == nil {
				args = map[string]interface{}{}
			}
			var progressToken mcp.ProgressToken
			if request.Params.Meta != nil {
				progressToken = request.Params.Meta.ProgressToken
			}
			return dispatcher.CallTool(ctx, name, args, progressToken), nil
		})
	}

	printStatus(logger, registry, factory)

	// Start server based on transport mode
	switch *transport {
	case "sse":
		if *baseURL == "" {
			*baseURL = fmt.Sprintf("http://localhost:%s", *port)
		}

		sseServer := server.NewSSEServer(s,
			server.WithBaseURL(*baseURL),
			server.WithKeepAlive(true),
		)

		logger.Info("starting SSE server", "port", *port, "base_url", *baseURL)
		logger.Info("endpoints", "sse", *baseURL+"/sse", "message", *baseURL+"/message")

		httpServer := &http.Server{Addr: ":" + *port, Handler: sseServer}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			logger.Info("shutting down", "signal", sig)
			_ = httpServer.Shutdown(context.Background())
		}()

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("SSE server error", "error", err)
		}

	case "stdio":
		fallthrough
	default:
		if err := server.ServeStdio(s); err != nil {
			logger.Fatal("server error", "error", err)
		}
	}
}

// printStatus logs the per-tool availability summary on startup.
func printStatus(logger *log.Logger, registry *ToolRegistry, factory *ClientFactory) {
	logger.Info("server starting", "name", serverName, "version", serverVersion)

	for _, tool := range registry.Enabled() {
		switch name := tool.Name(); name {
		case ToolNameSequentialThinking:
			logger.Info("tool enabled", "tool", name, "status", "stateful, no LLM required")
		case ToolNameThink:
			if factory.ClientFor(name).IsInitialized() {
				logger.Info("tool enabled", "tool", name, "model", factory.ClientFor(name).ModelName())
			} else {
				logger.Info("tool enabled with basic functionality", "tool", name,
					"hint", "set LLM_THINK_API_KEY or LLM_OPENAI_API_KEY for enhanced thinking")
			}
		default:
			if factory.ClientFor(name).IsInitialized() {
				logger.Info("tool enabled", "tool", name, "model", factory.ClientFor(name).ModelName())
			} else {
				logger.Warn("tool unavailable", "tool", name, "reason", "API key not configured",
					"hint", fmt.Sprintf("set %s or %s", llmAPIKeys[name], defaultAPIKeyEnv))
			}
		}
	}
}
