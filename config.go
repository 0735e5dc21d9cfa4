package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DisabledToolsEnv is the environment variable naming tools that must not be
// registered. Comma separated; the value "all" disables every tool.
const DisabledToolsEnv = "THINKGATE_DISABLED_TOOLS"

// DisableAllSentinel disables every tool when present in the disabled list.
const DisableAllSentinel = "all"

// Per-tool environment variables for the LLM backend. Each falls back to the
// shared default when the tool-specific one is absent.
var (
	llmAPIKeys = map[string]string{
		ToolNameArchitect:  "LLM_ARCHITECT_API_KEY",
		ToolNameThink:      "LLM_THINK_API_KEY",
		ToolNameLLMGateway: "LLM_GATEWAY_API_KEY",
	}
	llmAPIModels = map[string]string{
		ToolNameArchitect:  "LLM_ARCHITECT_API_MODEL",
		ToolNameThink:      "LLM_THINK_API_MODEL",
		ToolNameLLMGateway: "LLM_GATEWAY_API_MODEL",
	}
	llmAPIEndpoints = map[string]string{
		ToolNameArchitect:  "LLM_ARCHITECT_API_ENDPOINT",
		ToolNameThink:      "LLM_THINK_API_ENDPOINT",
		ToolNameLLMGateway: "LLM_GATEWAY_API_ENDPOINT",
	}
)

const (
	defaultAPIKeyEnv      = "LLM_OPENAI_API_KEY"
	defaultAPIModelEnv    = "LLM_OPENAI_API_MODEL"
	defaultAPIEndpointEnv = "LLM_OPENAI_API_ENDPOINT"
)

// Default generation temperatures per tool.
var defaultTemperatures = map[string]float64{
	ToolNameArchitect:  0.2,
	ToolNameThink:      0.4,
	ToolNameLLMGateway: 0.7,
}

// Response token caps per tool.
var defaultMaxTokens = map[string]int{
	ToolNameArchitect:  16384,
	ToolNameThink:      4096,
	ToolNameLLMGateway: 32768,
}

// Validation bounds for configured values.
const (
	minHTTPTimeout = 1 * time.Second
	maxHTTPTimeout = 1 * time.Hour

	defaultMaxConcurrentLLMRequests = 2
	maxConcurrentLLMRequestsCap     = 20
)

// Config holds process-wide configuration, loaded once at startup and passed
// explicitly to the components that need it.
type Config struct {
	DisabledTools []string

	// Timeout for a single LLM backend HTTP call.
	HTTPTimeout time.Duration

	// Maximum concurrent LLM requests across all tools (0 = unlimited).
	MaxConcurrentLLMRequests int

	LogLevel string
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout:              120 * time.Second,
		MaxConcurrentLLMRequests: defaultMaxConcurrentLLMRequests,
		LogLevel:                 "info",
	}
}

// LoadConfig loads configuration from environment variables, falling back to
// defaults. Invalid values are clamped to safe ranges with a logged warning.
func LoadConfig(logger *log.Logger) *Config {
	cfg := DefaultConfig()

	cfg.DisabledTools = ParseDisabledTools(os.Getenv(DisabledToolsEnv))
	if len(cfg.DisabledTools) > 0 {
		logger.Info("disabled tools configured", "tools", strings.Join(cfg.DisabledTools, ","))
	}

	if v := os.Getenv("LLM_HTTP_TIMEOUT"); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			t := time.Duration(s) * time.Second
			switch {
			case t < minHTTPTimeout:
				logger.Warn("LLM_HTTP_TIMEOUT below minimum, clamping", "value", t, "min", minHTTPTimeout)
				t = minHTTPTimeout
			case t > maxHTTPTimeout:
				logger.Warn("LLM_HTTP_TIMEOUT exceeds maximum, clamping", "value", t, "max", maxHTTPTimeout)
				t = maxHTTPTimeout
			}
			cfg.HTTPTimeout = t
		}
	}

	if v := os.Getenv("LLM_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			switch {
			case n <= 0:
				cfg.MaxConcurrentLLMRequests = 0
				logger.Info("LLM_MAX_CONCURRENT set to unlimited")
			case n > maxConcurrentLLMRequestsCap:
				cfg.MaxConcurrentLLMRequests = maxConcurrentLLMRequestsCap
				logger.Warn("LLM_MAX_CONCURRENT exceeds maximum, clamping", "value", n, "max", maxConcurrentLLMRequestsCap)
			default:
				cfg.MaxConcurrentLLMRequests = n
			}
		}
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}

// ParseDisabledTools splits a comma-separated disable list. Entries that are
// empty after trimming are dropped rather than treated as errors.
func ParseDisabledTools(raw string) []string {
	if raw == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

// APIKeyFor resolves the API key for a tool, preferring the tool-specific
// variable over the shared default.
func (c *Config) APIKeyFor(toolName string) string {
	return toolEnvLookup(llmAPIKeys, toolName, defaultAPIKeyEnv)
}

// ModelFor resolves the model identifier for a tool.
func (c *Config) ModelFor(toolName string) string {
	return toolEnvLookup(llmAPIModels, toolName, defaultAPIModelEnv)
}

// EndpointFor resolves the API base endpoint for a tool.
func (c *Config) EndpointFor(toolName string) string {
	return toolEnvLookup(llmAPIEndpoints, toolName, defaultAPIEndpointEnv)
}

// TemperatureFor returns the default generation temperature for a tool.
func (c *Config) TemperatureFor(toolName string) float64 {
	if t, ok := defaultTemperatures[toolName]; ok {
		return t
	}
	return 0.5
}

// MaxTokensFor returns the response token cap for a tool (0 = provider default).
func (c *Config) MaxTokensFor(toolName string) int {
	return defaultMaxTokens[toolName]
}

func toolEnvLookup(table map[string]string, toolName, defaultEnv string) string {
	if key, ok := table[toolName]; ok {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return os.Getenv(defaultEnv)
}

// ============ LLM Request Rate Limiting (FIFO Queue) ============

// FIFOLimiter is a fair, first-in-first-out concurrency limiter built on
// channels. Requests are granted slots in arrival order with bounded
// concurrency.
type FIFOLimiter struct {
	queue chan chan func() // queue of response channels, preserves FIFO order
	done  chan struct{}    // signals shutdown
}

// NewFIFOLimiter creates a FIFO limiter with the given concurrency limit.
func NewFIFOLimiter(maxConcurrent int) *FIFOLimiter {
	l := &FIFOLimiter{
		queue: make(chan chan func(), 10000), // large buffer to avoid blocking enqueuers
		done:  make(chan struct{}),
	}
	go l.dispatcher(maxConcurrent)
	return l
}

func (l *FIFOLimiter) dispatcher(maxConcurrent int) {
	sem := make(chan struct{}, maxConcurrent)

	for {
		select {
		case respChan := <-l.queue:
			sem <- struct{}{}
			// respChan is buffered, the handoff never blocks even if the
			// waiter already gave up.
			respChan <- func() { <-sem }
		case <-l.done:
			return
		}
	}
}

// Acquire waits for a slot in FIFO order. The returned release function MUST
// be called when done.
func (l *FIFOLimiter) Acquire(ctx context.Context) (func(), error) {
	respChan := make(chan func(), 1)

	select {
	case l.queue <- respChan:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case release := <-respChan:
		return release, nil
	case <-ctx.Done():
		// Already enqueued: the dispatcher will still hand a slot to
		// respChan eventually. Reclaim it in the background so a cancelled
		// wait does not shrink capacity.
		go func() {
			select {
			case release := <-respChan:
				release()
			case <-l.done:
			}
		}()
		return nil, ctx.Err()
	}
}

// Stop shuts down the dispatcher goroutine.
func (l *FIFOLimiter) Stop() {
	close(l.done)
}
