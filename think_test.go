package main

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestThinkRequiresThought(t *testing.T) {
	tool := NewThinkTool(&stubClient{initialized: true}, testLogger())

	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing thought")
	}
	if got := resultText(t, result, 1); !strings.Contains(got, "thought parameter is required") {
		t.Errorf("detail = %q", got)
	}
}

func TestThinkWithoutBackendEchoes(t *testing.T) {
	tool := NewThinkTool(&stubClient{initialized: false}, testLogger())

	result, err := tool.Execute(context.Background(), map[string]interface{}{"thought": "refactor the parser"})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.IsError {
		t.Fatal("think without a backend must still succeed")
	}

	got := resultText(t, result, 0)
	if !strings.Contains(got, "Your thought has been logged: refactor the parser") {
		t.Errorf("echo missing from %q", got)
	}
	if !strings.Contains(got, "LLM_THINK_API_KEY or LLM_OPENAI_API_KEY") {
		t.Errorf("configuration hint missing from %q", got)
	}
}

func TestThinkEnhanced(t *testing.T) {
	client := &stubClient{initialized: true, response: "structured insights"}
	tool := NewThinkTool(client, testLogger())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"thought": "cache invalidation",
		"context": "service restarts hourly",
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.IsError {
		t.Fatal("unexpected error result")
	}
	if got := resultText(t, result, 0); got != "Thought processed and enhanced:\n\nstructured insights" {
		t.Errorf("result = %q", got)
	}

	if !strings.Contains(client.gotContent, "cache invalidation") {
		t.Errorf("thought not forwarded: %q", client.gotContent)
	}
	if !strings.Contains(client.gotContent, "<context>\nservice restarts hourly\n</context>") {
		t.Errorf("context not wrapped: %q", client.gotContent)
	}
	if client.gotSystem != thinkSystemPrompt {
		t.Error("think system prompt not used")
	}
}

func TestThinkFallsBackOnLLMFailure(t *testing.T) {
	client := &stubClient{initialized: true, err: errors.New("backend down")}
	tool := NewThinkTool(client, testLogger())

	result, err := tool.Execute(context.Background(), map[string]interface{}{"thought": "keep going"})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.IsError {
		t.Fatal("think must degrade to success on backend failure")
	}

	got := resultText(t, result, 0)
	if !strings.Contains(got, "Your thought has been logged: keep going") {
		t.Errorf("echo missing from %q", got)
	}
	if !strings.Contains(got, "AI enhancement failed: backend down") {
		t.Errorf("failure note missing from %q", got)
	}
}
