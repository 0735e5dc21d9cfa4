package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// stubClient is a canned AIClient for tool tests.
type stubClient struct {
	initialized bool
	response    string
	err         error
	model       string
	provider    string

	mu         sync.Mutex
	gotSystem  string
	gotContent string
	gotOpts    ProcessOptions
}

func (s *stubClient) Process(ctx context.Context, systemPrompt, content string, opts ProcessOptions) (string, error) {
	s.mu.Lock()
	s.gotSystem = systemPrompt
	s.gotContent = content
	s.gotOpts = opts
	s.mu.Unlock()
	if !s.initialized {
		return "", ErrClientNotInitialized
	}
	return s.response, s.err
}

func (s *stubClient) IsInitialized() bool { return s.initialized }

func (s *stubClient) ModelName() string { return s.model }

func (s *stubClient) ProviderName() string {
	if s.provider == "" {
		return "stub"
	}
	return s.provider
}

func newTestOpenAIClient(baseURL string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:      "test-key",
		baseURL:     baseURL,
		model:       "test-model",
		temperature: 0.4,
		maxTokens:   4096,
		client:      &http.Client{Timeout: 5 * time.Second},
		logger:      testLogger(),
	}
}

func TestOpenAIClientProcess(t *testing.T) {
	var gotBody map[string]interface{}
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "model says hi"}},
			},
		})
	}))
	defer srv.Close()

	c := newTestOpenAIClient(srv.URL)
	got, err := c.Process(context.Background(), "system prompt", "user content", ProcessOptions{})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if got != "model says hi" {
		t.Errorf("Process = %q, want %q", got, "model says hi")
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if gotBody["temperature"] != 0.4 {
		t.Errorf("temperature = %v, want client default 0.4", gotBody["temperature"])
	}
	if gotBody["max_tokens"] != 4096.0 {
		t.Errorf("max_tokens = %v, want client default 4096", gotBody["max_tokens"])
	}

	messages, ok := gotBody["messages"].([]interface{})
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v, want system+user pair", gotBody["messages"])
	}
	first := messages[0].(map[string]interface{})
	if first["role"] != "system" || first["content"] != "system prompt" {
		t.Errorf("first message = %v", first)
	}
}

func TestOpenAIClientProcessOptionOverrides(t *testing.T) {
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := newTestOpenAIClient(srv.URL)
	_, err := c.Process(context.Background(), "s", "c", ProcessOptions{Temperature: 0.9, MaxTokens: 128})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if gotBody["temperature"] != 0.9 {
		t.Errorf("temperature = %v, want override 0.9", gotBody["temperature"])
	}
	if gotBody["max_tokens"] != 128.0 {
		t.Errorf("max_tokens = %v, want override 128", gotBody["max_tokens"])
	}
}

func TestOpenAIClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	c := newTestOpenAIClient(srv.URL)
	_, err := c.Process(context.Background(), "s", "c", ProcessOptions{})
	if err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestOpenAIClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestOpenAIClient(srv.URL)
	_, err := c.Process(context.Background(), "s", "c", ProcessOptions{})
	if err == nil || err.Error() != "no choices in response" {
		t.Errorf("err = %v, want no choices error", err)
	}
}

func TestOpenAIClientUninitialized(t *testing.T) {
	c := &OpenAIClient{logger: testLogger()}
	if c.IsInitialized() {
		t.Error("client without API key should not be initialized")
	}
	_, err := c.Process(context.Background(), "s", "c", ProcessOptions{})
	if !errors.Is(err, ErrClientNotInitialized) {
		t.Errorf("err = %v, want ErrClientNotInitialized", err)
	}
}

func TestClientFactoryMemoizes(t *testing.T) {
	f := NewClientFactory(DefaultConfig(), testLogger())
	defer f.Close()

	a := f.ClientFor(ToolNameArchitect)
	b := f.ClientFor(ToolNameArchitect)
	if a != b {
		t.Error("ClientFor should return the same client for the same tool")
	}
	if f.ClientFor(ToolNameThink) == a {
		t.Error("different tools should get distinct clients")
	}
}

func TestFIFOLimiterBoundsConcurrency(t *testing.T) {
	limiter := NewFIFOLimiter(2)
	defer limiter.Stop()

	var mu sync.Mutex
	active, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := limiter.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak)
	}
}

func TestFIFOLimiterAcquireCancelled(t *testing.T) {
	limiter := NewFIFOLimiter(1)
	defer limiter.Stop()

	release, err := limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = limiter.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context deadline exceeded", err)
	}

	// The cancelled wait must not consume the slot: once the holder
	// releases, the next Acquire has to succeed.
	release()

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()

	release2, err := limiter.Acquire(ctx2)
	if err != nil {
		t.Fatalf("Acquire after cancelled wait failed: %v", err)
	}
	release2()
}
