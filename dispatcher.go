package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolsChangedDebounce collapses bursts of tools-changed signals into a
// single downstream notification.
const toolsChangedDebounce = 500 * time.Millisecond

// ProgressSender delivers progress notifications for a call in flight.
// Delivery is best-effort: the dispatcher logs failures and moves on.
type ProgressSender interface {
	SendProgress(ctx context.Context, token interface{}, progress, total float64, message string) error
}

// serverProgressSender posts notifications/progress through the MCP server
// attached to the request context.
type serverProgressSender struct{}

func (serverProgressSender) SendProgress(ctx context.Context, token interface{}, progress, total float64, message string) error {
	srv := server.ServerFromContext(ctx)
	if srv == nil {
		return fmt.Errorf("no MCP server in context")
	}
	params := map[string]interface{}{
		"progressToken": token,
		"progress":      progress,
		"total":         total,
	}
	if message != "" {
		params["message"] = message
	}
	return srv.SendNotificationToClient(ctx, "notifications/progress", params)
}

// Dispatcher binds protocol requests to the registry and to tool execution.
// Every call produces exactly one envelope; no panic or error from tool
// execution, lookup or notification delivery escapes it.
type Dispatcher struct {
	registry *ToolRegistry
	logger   *log.Logger
	progress ProgressSender

	mu            sync.Mutex
	externalTools []mcp.Tool
	pendingNotify *time.Timer
	notifyGen     uint64 // owner tag for pendingNotify, bumped on every reset
	notifyFn      func()
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *ToolRegistry, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger,
		progress: serverProgressSender{},
	}
}

// SetProgressSender replaces the progress delivery mechanism.
func (d *Dispatcher) SetProgressSender(s ProgressSender) {
	d.progress = s
}

// SetExternalTools installs host-supplied tool definitions. They pass through
// ListTools unmodified, ahead of the registry's own tools.
func (d *Dispatcher) SetExternalTools(tools []mcp.Tool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.externalTools = tools
	d.logger.Info("external tools set", "count", len(tools))
}

// SetToolsChangedFunc installs the downstream sink for the debounced
// tools-changed signal.
func (d *Dispatcher) SetToolsChangedFunc(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifyFn = fn
}

// ListTools answers the tool listing query: external definitions first, then
// the registry's enabled tools in registration order.
func (d *Dispatcher) ListTools() []mcp.Tool {
	d.mu.Lock()
	external := d.externalTools
	d.mu.Unlock()

	defs := make([]mcp.Tool, 0, len(external))
	defs = append(defs, external...)
	return append(defs, d.registry.ListEnabled()...)
}

// CallTool dispatches a tool call and always returns a well-formed envelope.
// If progressToken is non-nil, progress notifications are emitted best-effort
// in the fixed order start then complete (or start then error).
func (d *Dispatcher) CallTool(ctx context.Context, name string, args map[string]interface{}, progressToken interface{}) *mcp.CallToolResult {
	callID := uuid.NewString()
	logger := d.logger.With("call_id", callID, "tool", name)
	logger.Debug("handling tools/call request")

	tool, ok := d.registry.FindByName(name)
	if !ok {
		logger.Warn("tool not found")
		return notFoundResult(name)
	}

	if progressToken != nil {
		d.sendProgress(ctx, logger, progressToken, 0, 100, fmt.Sprintf("Starting %s...", name))
	}

	result, err := d.executeSafely(ctx, tool, args)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "Unknown error"
		}
		if progressToken != nil {
			d.sendProgress(ctx, logger, progressToken, 100, 100, fmt.Sprintf("Error in %s: %s", name, msg))
		}
		logger.Error("tool execution failed", "error", msg)
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
					Text: fmt.Sprintf("Error executing tool %s: %s", name, msg),
				},
			},
			IsError: true,
		}
	}

	if progressToken != nil {
		d.sendProgress(ctx, logger, progressToken, 100, 100, fmt.Sprintf("Completed %s", name))
	}
	return result
}

// executeSafely invokes the tool, converting panics and nil results into
// errors so CallTool has a single failure path.
func (d *Dispatcher) executeSafely(ctx context.Context, tool Tool, args map[string]interface{}) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%v", r)
		}
	}()

	result, err = tool.Execute(ctx, args)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("Unknown error")
	}
	return result, nil
}

func (d *Dispatcher) sendProgress(ctx context.Context, logger *log.Logger, token interface{}, progress, total float64, message string) {
	if err := d.progress.SendProgress(ctx, token, progress, total, message); err != nil {
		logger.Warn("failed to send progress notification", "error", err)
	}
}

// NotifyToolsChanged signals that the tool list changed. Repeated calls
// within the debounce window collapse into one downstream notification:
// every call resets the pending timer, and the notification fires once when
// the timer finally elapses.
func (d *Dispatcher) NotifyToolsChanged() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pendingNotify != nil {
		d.pendingNotify.Stop()
	}
	d.notifyGen++
	gen := d.notifyGen
	d.pendingNotify = time.AfterFunc(toolsChangedDebounce, func() {
		d.mu.Lock()
		// Stop can miss a callback that already started; a stale generation
		// must neither fire nor clear the newer timer's handle.
		if gen != d.notifyGen {
			d.mu.Unlock()
			return
		}
		d.pendingNotify = nil
		fn := d.notifyFn
		d.mu.Unlock()

		if fn != nil {
			fn()
		}
		d.logger.Debug("sent tools changed notification")
	})
}

func notFoundResult(name string) *mcp.CallToolResult {
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
				Text: fmt.Sprintf("Tool '%s' not found", name),
			},
		},
		IsError: true,
	}
}
