// Package assistant defines the boundary to the upstream conversational-AI
// service: assistant configuration, conversation threads, file storage, and
// streaming runs. The relay layer only ever sees the tagged RunEvent union
// produced here; provider wire formats stay inside the adapter.
package assistant

import (
	"context"
	"io"
)

// RunEventType tags upstream run-stream events after boundary decoding.
type RunEventType string

const (
	// RunEventDelta carries an incremental text chunk from the assistant.
	RunEventDelta RunEventType = "delta"

	// RunEventRequiresAction pauses the run until tool outputs are submitted.
	RunEventRequiresAction RunEventType = "requires_action"

	// RunEventCompleted signals the run finished successfully.
	RunEventCompleted RunEventType = "completed"

	// RunEventFailed signals the run itself failed upstream.
	RunEventFailed RunEventType = "failed"

	// RunEventUnknown covers event tags this adapter does not handle.
	// Consumers log and skip these to preserve forward progress.
	RunEventUnknown RunEventType = "unknown"
)

// ToolCall is one pending function invocation raised by a requires-action
// event. Arguments is the raw JSON string supplied by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput is the result of one resolved tool call, keyed by call id.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// RunEvent is the tagged union produced by decoding one upstream stream
// event. Exactly the fields implied by Type are populated.
type RunEvent struct {
	Type RunEventType

	// Text is set for RunEventDelta.
	Text string

	// RunID and ToolCalls are set for RunEventRequiresAction.
	RunID     string
	ToolCalls []ToolCall

	// Reason is set for RunEventFailed.
	Reason string

	// Tag is the raw upstream event name, kept for RunEventUnknown logging.
	Tag string
}

// RunStream is an iterator over decoded run events, modeled after the
// Recv/Close pattern of go-openai's completion streams.
//
// Recv blocks until the next event is available and returns io.EOF when the
// upstream stream ends cleanly. A requires-action event ends the current
// stream; the caller resumes the run with SubmitToolOutputsStream.
type RunStream interface {
	Recv() (RunEvent, error)
	Close() error
}

// ContentBlock is one block of a stored assistant message. ImageFileID is
// set for image blocks, Text for text blocks.
type ContentBlock struct {
	Type        string
	Text        string
	ImageFileID string
}

// Client is the upstream assistant service contract used by the relay.
//
// Implementations must be safe for concurrent use; one relay state machine
// runs per request and they share a single Client.
type Client interface {
	// CreateAssistant creates the singleton assistant configuration and
	// returns its id. Called at most once per process by the Bootstrap.
	CreateAssistant(ctx context.Context) (string, error)

	// CreateThread creates an empty conversation thread.
	CreateThread(ctx context.Context) (string, error)

	// UploadFile stores a file for assistant use and returns its file id.
	UploadFile(ctx context.Context, name string, data []byte) (string, error)

	// AddUserMessage appends a user message to a thread, attaching the given
	// uploaded files to the code-execution tool.
	AddUserMessage(ctx context.Context, threadID, content string, fileIDs []string) error

	// StreamRun starts a streaming run of the assistant against a thread.
	StreamRun(ctx context.Context, threadID, assistantID string) (RunStream, error)

	// SubmitToolOutputsStream submits tool outputs for a paused run and
	// returns the continuation stream of the same run.
	SubmitToolOutputsStream(ctx context.Context, threadID, runID string, outputs []ToolOutput) (RunStream, error)

	// LatestAssistantMessage returns the content blocks of the most recent
	// assistant-authored message in the thread, or nil if there is none.
	LatestAssistantMessage(ctx context.Context, threadID string) ([]ContentBlock, error)

	// FileContent fetches the binary content of a stored file. The caller
	// must close the reader.
	FileContent(ctx context.Context, fileID string) (io.ReadCloser, error)
}
