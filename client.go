package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
)

const defaultAPIEndpoint = "https://api.openai.com/v1"

// ErrClientNotInitialized is returned by Process when no API key was
// configured for the tool.
var ErrClientNotInitialized = errors.New("LLM client not initialized: no API key configured")

// ProcessOptions tunes a single LLM request.
type ProcessOptions struct {
	Temperature   float64 // 0 means "use the client's default"
	MaxTokens     int     // 0 means "use the client's default cap"
	StopSequences []string
}

// AIClient is the capability a forwarding tool needs from its LLM backend.
type AIClient interface {
	// Process sends systemPrompt + content to the model and returns its text.
	Process(ctx context.Context, systemPrompt, content string, opts ProcessOptions) (string, error)
	IsInitialized() bool
	ModelName() string
	ProviderName() string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
// A client constructed without an API key stays uninitialized: Process fails
// immediately and never touches the network.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	limiter     *FIFOLimiter
	logger      *log.Logger
}

// NewOpenAIClient builds a client for one tool identity from the resolved
// configuration. An absent API key is not an error; it yields an
// uninitialized client.
func NewOpenAIClient(toolName string, cfg *Config, limiter *FIFOLimiter, logger *log.Logger) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:      cfg.APIKeyFor(toolName),
		baseURL:     withDefault(cfg.EndpointFor(toolName), defaultAPIEndpoint),
		model:       cfg.ModelFor(toolName),
		temperature: cfg.TemperatureFor(toolName),
		maxTokens:   cfg.MaxTokensFor(toolName),
		client:      &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:     limiter,
		logger:      logger,
	}
	if c.apiKey == "" {
		logger.Warn("no API key configured, LLM client disabled", "tool", toolName)
	} else {
		logger.Info("LLM client initialized", "tool", toolName,
			"model", withDefault(c.model, "provider default"), "endpoint", c.baseURL)
	}
	return c
}

// IsInitialized reports whether a usable credential was configured.
func (c *OpenAIClient) IsInitialized() bool {
	return c.apiKey != ""
}

// ModelName returns the configured model identifier, possibly empty.
func (c *OpenAIClient) ModelName() string {
	return c.model
}

// ProviderName identifies the backend kind.
func (c *OpenAIClient) ProviderName() string {
	return "OpenAI-compatible"
}

// Process sends a system+user message pair to the chat completions endpoint
// and returns the first choice's content.
func (c *OpenAIClient) Process(ctx context.Context, systemPrompt, content string, opts ProcessOptions) (string, error) {
	if !c.IsInitialized() {
		return "", ErrClientNotInitialized
	}

	if c.limiter != nil {
		release, err := c.limiter.Acquire(ctx)
		if err != nil {
			return "", fmt.Errorf("waiting for LLM request slot: %w", err)
		}
		defer release()
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	reqBody := map[string]interface{}{
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content},
		},
	}
	if c.model != "" {
		reqBody["model"] = c.model
	}
	if temperature > 0 {
		reqBody["temperature"] = temperature
	}
	if maxTokens > 0 {
		reqBody["max_tokens"] = maxTokens
	}
	if len(opts.StopSequences) > 0 {
		reqBody["stop"] = opts.StopSequences
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}

	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func withDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

// ClientFactory hands out one memoized AIClient per tool identity. Clients
// are safe for concurrent Process calls; the shared FIFO limiter bounds
// overall backend concurrency.
type ClientFactory struct {
	cfg     *Config
	limiter *FIFOLimiter
	logger  *log.Logger

	mu      sync.Mutex
	clients map[string]AIClient
}

// NewClientFactory builds the factory, starting the shared limiter when
// concurrency is bounded.
func NewClientFactory(cfg *Config, logger *log.Logger) *ClientFactory {
	var limiter *FIFOLimiter
	if cfg.MaxConcurrentLLMRequests > 0 {
		limiter = NewFIFOLimiter(cfg.MaxConcurrentLLMRequests)
		logger.Debug("LLM request limiter initialized", "capacity", cfg.MaxConcurrentLLMRequests)
	}
	return &ClientFactory{
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
		clients: make(map[string]AIClient),
	}
}

// ClientFor returns the client bound to the given tool identity, creating it
// on first use.
func (f *ClientFactory) ClientFor(toolName string) AIClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[toolName]; ok {
		return c
	}
	c := NewOpenAIClient(toolName, f.cfg, f.limiter, f.logger)
	f.clients[toolName] = c
	return c
}

// Close stops the shared limiter.
func (f *ClientFactory) Close() {
	if f.limiter != nil {
		f.limiter.Stop()
	}
}
