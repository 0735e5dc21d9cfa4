package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"thinkgate/utils"
)

const sequentialThinkingDescription = `A detailed tool for dynamic and reflective problem-solving through thoughts. ` +
	`Each thought can build on, question, or revise previous insights as understanding deepens. ` +
	`Use it to break down complex problems into steps, revise earlier reasoning, or branch into ` +
	`alternate approaches; the running history is kept for the whole session. You decide when the ` +
	`chain ends: keep sending thoughts with nextThoughtNeeded=true until you reach a satisfactory answer.`

// ValidationError reports a malformed or missing required argument. The field
// name is part of the message so callers can correct their input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid %s: %s", e.Field, e.Reason)
}

// thoughtRecord is one validated entry in the thinking chain.
type thoughtRecord struct {
	Thought           string `json:"thought"`
	ThoughtNumber     int    `json:"thoughtNumber"`
	TotalThoughts     int    `json:"totalThoughts"`
	NextThoughtNeeded bool   `json:"nextThoughtNeeded"`
	IsRevision        bool   `json:"isRevision,omitempty"`
	RevisesThought    int    `json:"revisesThought,omitempty"`
	BranchFromThought int    `json:"branchFromThought,omitempty"`
	BranchID          string `json:"branchId,omitempty"`
	NeedsMoreThoughts bool   `json:"needsMoreThoughts,omitempty"`
}

// SequentialThinkingTool keeps an append-only log of thought records plus
// named branch views over it. The log is authoritative: records referencing
// thoughts that were never recorded are accepted as-is. State lives for the
// process lifetime and is reset only by restart.
type SequentialThinkingTool struct {
	logger *log.Logger

	mu          sync.Mutex
	history     []thoughtRecord
	branches    map[string][]thoughtRecord
	branchOrder []string // branch ids in order of first appearance
}

// NewSequentialThinkingTool creates the engine with empty history.
func NewSequentialThinkingTool(logger *log.Logger) *SequentialThinkingTool {
	return &SequentialThinkingTool{
		logger:   logger,
		branches: make(map[string][]thoughtRecord),
	}
}

func (t *SequentialThinkingTool) Name() string { return ToolNameSequentialThinking }

func (t *SequentialThinkingTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolNameSequentialThinking,
		mcp.WithDescription(sequentialThinkingDescription),
		mcp.WithString("thought",
			mcp.Required(),
			mcp.Description("Your current thinking step"),
		),
		mcp.WithBoolean("nextThoughtNeeded",
			mcp.Required(),
			mcp.Description("Whether another thought step is needed"),
		),
		mcp.WithNumber("thoughtNumber",
			mcp.Required(),
			mcp.Description("Current thought number"),
			mcp.Min(1),
		),
		mcp.WithNumber("totalThoughts",
			mcp.Required(),
			mcp.Description("Estimated total thoughts needed"),
			mcp.Min(1),
		),
		mcp.WithBoolean("isRevision",
			mcp.Description("Whether this revises previous thinking"),
		),
		mcp.WithNumber("revisesThought",
			mcp.Description("Which thought is being reconsidered"),
			mcp.Min(1),
		),
		mcp.WithNumber("branchFromThought",
			mcp.Description("Branching point thought number"),
			mcp.Min(1),
		),
		mcp.WithString("branchId",
			mcp.Description("Branch identifier"),
		),
		mcp.WithBoolean("needsMoreThoughts",
			mcp.Description("If more thoughts are needed"),
		),
		mcp.WithTitleAnnotation("Sequential Chain of Thought Problem Solver"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute validates the record, appends it to history (and its branch, if
// any) and returns the post-append state snapshot.
func (t *SequentialThinkingTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	record, err := validateThoughtData(args)
	if err != nil {
		t.logger.Error("invalid thought data", "error", err)
		return errorResult(t.Name(), err.Error(),
			"Invalid thought data provided. Please check the required parameters."), nil
	}

	// Self-correcting estimate: never shrink, raise to the claimed position.
	if record.ThoughtNumber > record.TotalThoughts {
		record.TotalThoughts = record.ThoughtNumber
	}

	// Append and snapshot under one lock so the reported history length
	// matches the true post-append length even under concurrent calls.
	t.mu.Lock()
	t.history = append(t.history, record)

	if record.BranchFromThought > 0 && record.BranchID != "" {
		if _, ok := t.branches[record.BranchID]; !ok {
			t.branchOrder = append(t.branchOrder, record.BranchID)
		}
		t.branches[record.BranchID] = append(t.branches[record.BranchID], record)
	}

	snapshot := struct {
		ThoughtNumber        int      `json:"thoughtNumber"`
		TotalThoughts        int      `json:"totalThoughts"`
		NextThoughtNeeded    bool     `json:"nextThoughtNeeded"`
		Branches             []string `json:"branches"`
		ThoughtHistoryLength int      `json:"thoughtHistoryLength"`
	}{
		ThoughtNumber:        record.ThoughtNumber,
		TotalThoughts:        record.TotalThoughts,
		NextThoughtNeeded:    record.NextThoughtNeeded,
		Branches:             append([]string{}, t.branchOrder...),
		ThoughtHistoryLength: len(t.history),
	}
	t.mu.Unlock()

	t.logger.Info(formatThought(record))

	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errorResult(t.Name(), fmt.Sprintf("failed to serialize state: %v", err), ""), nil
	}
	return textResult(string(out)), nil
}

// validateThoughtData checks the raw arguments against the required shape and
// produces a typed record. JSON numbers arrive as float64.
func validateThoughtData(args map[string]interface{}) (thoughtRecord, error) {
	var rec thoughtRecord

	thought, ok := args["thought"].(string)
	if !ok || thought == "" {
		return rec, &ValidationError{Field: "thought", Reason: "must be a string"}
	}
	thoughtNumber, ok := args["thoughtNumber"].(float64)
	if !ok || thoughtNumber == 0 {
		return rec, &ValidationError{Field: "thoughtNumber", Reason: "must be a number"}
	}
	totalThoughts, ok := args["totalThoughts"].(float64)
	if !ok || totalThoughts == 0 {
		return rec, &ValidationError{Field: "totalThoughts", Reason: "must be a number"}
	}
	nextNeeded, ok := args["nextThoughtNeeded"].(bool)
	if !ok {
		return rec, &ValidationError{Field: "nextThoughtNeeded", Reason: "must be a boolean"}
	}

	rec = thoughtRecord{
		Thought:           thought,
		ThoughtNumber:     int(thoughtNumber),
		TotalThoughts:     int(totalThoughts),
		NextThoughtNeeded: nextNeeded,
	}
	if v, ok := args["isRevision"].(bool); ok {
		rec.IsRevision = v
	}
	if v, ok := args["revisesThought"].(float64); ok {
		rec.RevisesThought = int(v)
	}
	if v, ok := args["branchFromThought"].(float64); ok {
		rec.BranchFromThought = int(v)
	}
	if v, ok := args["branchId"].(string); ok {
		rec.BranchID = v
	}
	if v, ok := args["needsMoreThoughts"].(bool); ok {
		rec.NeedsMoreThoughts = v
	}
	return rec, nil
}

var labelTitle = cases.Title(language.English)

// formatThought renders a record for the log. Revision takes precedence over
// branch; everything else is a plain thought.
func formatThought(rec thoughtRecord) string {
	var label, context string
	switch {
	case rec.IsRevision:
		label = labelTitle.String("revision")
		context = fmt.Sprintf(" (revising thought %d)", rec.RevisesThought)
	case rec.BranchFromThought > 0:
		label = labelTitle.String("branch")
		context = fmt.Sprintf(" (from thought %d, ID: %s)", rec.BranchFromThought, rec.BranchID)
	default:
		label = labelTitle.String("thought")
	}
	return fmt.Sprintf("%s %d/%d%s: %s",
		label, rec.ThoughtNumber, rec.TotalThoughts, context, utils.TruncateStr(rec.Thought, 120))
}
