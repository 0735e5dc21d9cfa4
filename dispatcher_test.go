package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingProgressSender captures progress notifications in order.
type recordingProgressSender struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (r *recordingProgressSender) SendProgress(ctx context.Context, token interface{}, progress, total float64, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("delivery failed")
	}
	r.calls = append(r.calls, fmt.Sprintf("%.0f/%.0f %s", progress, total, message))
	return nil
}

func (r *recordingProgressSender) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

func newTestDispatcher(tools []Tool) (*Dispatcher, *recordingProgressSender) {
	registry := NewToolRegistry(tools, nil, testLogger())
	d := NewDispatcher(registry, testLogger())
	sender := &recordingProgressSender{}
	d.SetProgressSender(sender)
	return d, sender
}

func TestDispatcherCallUnknownTool(t *testing.T) {
	d, _ := newTestDispatcher(testTools())

	result := d.CallTool(context.Background(), "nope", map[string]interface{}{}, nil)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
	assert.Equal(t, "Tool 'nope' not found", resultText(t, result, 0))
}

func TestDispatcherCallDisabledToolNotFound(t *testing.T) {
	registry := NewToolRegistry(testTools(), []string{"think"}, testLogger())
	d := NewDispatcher(registry, testLogger())
	d.SetProgressSender(&recordingProgressSender{})

	result := d.CallTool(context.Background(), "think", map[string]interface{}{}, nil)
	assert.True(t, result.IsError)
	assert.Equal(t, "Tool 'think' not found", resultText(t, result, 0))
}

func TestDispatcherProgressOnSuccess(t *testing.T) {
	d, sender := newTestDispatcher(testTools())

	result := d.CallTool(context.Background(), "architect", map[string]interface{}{}, "tok-1")
	assert.False(t, result.IsError)
	assert.Equal(t, []string{
		"0/100 Starting architect...",
		"100/100 Completed architect",
	}, sender.recorded())
}

func TestDispatcherProgressOnFailure(t *testing.T) {
	failing := &stubTool{
		name: "broken",
		execute: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			return nil, errors.New("backend exploded")
		},
	}
	d, sender := newTestDispatcher([]Tool{failing})

	result := d.CallTool(context.Background(), "broken", map[string]interface{}{}, "tok-2")
	require.True(t, result.IsError)
	assert.Equal(t, "Error executing tool broken: backend exploded", resultText(t, result, 0))
	assert.Equal(t, []string{
		"0/100 Starting broken...",
		"100/100 Error in broken: backend exploded",
	}, sender.recorded())
}

func TestDispatcherNoProgressWithoutToken(t *testing.T) {
	d, sender := newTestDispatcher(testTools())

	d.CallTool(context.Background(), "architect", map[string]interface{}{}, nil)
	assert.Empty(t, sender.recorded())
}

func TestDispatcherProgressFailureDoesNotAffectResult(t *testing.T) {
	d, sender := newTestDispatcher(testTools())
	sender.fail = true

	result := d.CallTool(context.Background(), "think", map[string]interface{}{}, "tok-3")
	assert.False(t, result.IsError)
	assert.Equal(t, "ok from think", resultText(t, result, 0))
}

func TestDispatcherContainsPanic(t *testing.T) {
	panicking := &stubTool{
		name: "panicky",
		execute: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			panic("boom")
		},
	}
	d, _ := newTestDispatcher([]Tool{panicking})

	result := d.CallTool(context.Background(), "panicky", map[string]interface{}{}, nil)
	require.True(t, result.IsError)
	assert.Equal(t, "Error executing tool panicky: boom", resultText(t, result, 0))
}

func TestDispatcherNilResultBecomesError(t *testing.T) {
	broken := &stubTool{
		name: "nilly",
		execute: func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
			return nil, nil
		},
	}
	d, _ := newTestDispatcher([]Tool{broken})

	result := d.CallTool(context.Background(), "nilly", map[string]interface{}{}, nil)
	require.True(t, result.IsError)
	assert.Equal(t, "Error executing tool nilly: Unknown error", resultText(t, result, 0))
}

func TestDispatcherListToolsExternalFirst(t *testing.T) {
	d, _ := newTestDispatcher(testTools())
	d.SetExternalTools([]mcp.Tool{
		{Name: "host_tool_a"},
		{Name: "host_tool_b"},
	})

	defs := d.ListTools()
	require.Len(t, defs, 6)
	assert.Equal(t, "host_tool_a", defs[0].Name)
	assert.Equal(t, "host_tool_b", defs[1].Name)
	assert.Equal(t, "architect", defs[2].Name)
}

func TestDispatcherDebouncesToolsChanged(t *testing.T) {
	d, _ := newTestDispatcher(testTools())

	var notified atomic.Int32
	d.SetToolsChangedFunc(func() { notified.Add(1) })

	for i := 0; i < 5; i++ {
		d.NotifyToolsChanged()
	}

	// Within the debounce window nothing fires yet.
	time.Sleep(toolsChangedDebounce / 2)
	assert.Equal(t, int32(0), notified.Load())

	// After the window the burst collapses to a single notification.
	time.Sleep(toolsChangedDebounce)
	assert.Equal(t, int32(1), notified.Load())
}

func TestDispatcherToolsChangedConcurrentBurst(t *testing.T) {
	d, _ := newTestDispatcher(testTools())

	var notified atomic.Int32
	d.SetToolsChangedFunc(func() { notified.Add(1) })

	// Hammer the signal from many goroutines, including resets racing the
	// elapsed timer callback; only the last generation may fire.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				d.NotifyToolsChanged()
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	time.Sleep(toolsChangedDebounce + 100*time.Millisecond)
	if got := notified.Load(); got != 1 {
		t.Errorf("notifications fired = %d, want exactly 1", got)
	}
}

func TestDispatcherToolsChangedWithoutSink(t *testing.T) {
	d, _ := newTestDispatcher(testTools())

	// No SetToolsChangedFunc installed; must not panic.
	d.NotifyToolsChanged()
	time.Sleep(toolsChangedDebounce + 50*time.Millisecond)
}
