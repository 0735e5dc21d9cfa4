package main

import (
	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolRegistry owns the authoritative set of tool instances. It is built once
// at startup from the fixed tool list and the disable policy, and is immutable
// afterwards: concurrent reads need no locking.
type ToolRegistry struct {
	available map[string]Tool
	order     []string // registration order of all known tools
	enabled   []Tool   // available tools minus the disable policy, in order
	disabled  map[string]bool
}

// NewToolRegistry builds the registry. disabledNames may contain explicit
// tool names or the sentinel "all"; unknown and empty entries are ignored.
func NewToolRegistry(tools []Tool, disabledNames []string, logger *log.Logger) *ToolRegistry {
	r := &ToolRegistry{
		available: make(map[string]Tool, len(tools)),
		disabled:  make(map[string]bool, len(disabledNames)),
	}
	for _, name := range disabledNames {
		r.disabled[name] = true
	}

	for _, t := range tools {
		r.available[t.Name()] = t
		r.order = append(r.order, t.Name())

		if r.isDisabled(t.Name()) {
			logger.Info("skipped disabled tool", "tool", t.Name())
			continue
		}
		r.enabled = append(r.enabled, t)
		logger.Info("registered tool", "tool", t.Name())
	}

	logger.Info("tool registry built", "enabled", len(r.enabled), "available", len(r.available))
	return r
}

func (r *ToolRegistry) isDisabled(name string) bool {
	return r.disabled[name] || r.disabled[DisableAllSentinel]
}

// ListEnabled returns the enabled tools projected to their protocol
// definitions, in registration order. Input schemas are normalized so that
// properties and required are always present.
func (r *ToolRegistry) ListEnabled() []mcp.Tool {
	defs := make([]mcp.Tool, 0, len(r.enabled))
	for _, t := range r.enabled {
		defs = append(defs, normalizeDefinition(t.Definition()))
	}
	return defs
}

// FindByName returns the enabled tool with the given name. A disabled tool is
// not found even though the registry still knows about it.
func (r *ToolRegistry) FindByName(name string) (Tool, bool) {
	if r.isDisabled(name) {
		return nil, false
	}
	t, ok := r.available[name]
	return t, ok
}

// AvailableNames lists all known tool names filtered by the disable policy.
// Diagnostics only.
func (r *ToolRegistry) AvailableNames() []string {
	if r.disabled[DisableAllSentinel] {
		return []string{}
	}
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if !r.isDisabled(name) {
			names = append(names, name)
		}
	}
	return names
}

// Enabled returns the enabled tool instances in registration order.
func (r *ToolRegistry) Enabled() []Tool {
	return r.enabled
}

func normalizeDefinition(def mcp.Tool) mcp.Tool {
	if def.InputSchema.Type == "" {
		def.InputSchema.Type = "object"
	}
	if def.InputSchema.Properties == nil {
		def.InputSchema.Properties = map[string]interface{}{}
	}
	if def.InputSchema.Required == nil {
		def.InputSchema.Required = []string{}
	}
	return def
}
