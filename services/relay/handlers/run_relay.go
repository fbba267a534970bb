package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xgaming/assistant-relay/services/analytics"
	"github.com/xgaming/assistant-relay/services/assistant"
	"github.com/xgaming/assistant-relay/services/relay/observability"
)

// runRelay drives one streaming assistant run to a terminal downstream
// frame. It consumes the upstream event stream sequentially, forwarding
// text deltas in arrival order without buffering, pausing once per
// requires-action round trip, and aggregating generated images at
// completion. One instance serves one request; instances share nothing.
type runRelay struct {
	client      assistant.Client
	analytics   *analytics.Client
	writer      FrameWriter
	threadID    string
	assistantID string
}

// run consumes upstream events until exactly one terminal frame has been
// written. A nil return means the done frame was emitted; a non-nil return
// means the error frame was emitted (or the client went away before it
// could be). Stream order is preserved exactly: no reordering, no
// deduplication, no dropped deltas.
func (r *runRelay) run(ctx context.Context, stream assistant.RunStream) error {
	defer func() { _ = stream.Close() }()

	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			// The upstream stream may not end without a terminal run event;
			// if it does, the client still gets its one terminal frame.
			return r.fail("upstream stream ended unexpectedly", observability.ErrorCodeStreamProtocol)
		}
		if err != nil {
			if ctx.Err() != nil {
				if m := observability.DefaultMetrics; m != nil {
					m.RecordError(observability.ErrorCodeClientDisconnect)
				}
				return ctx.Err()
			}
			return r.fail(err.Error(), observability.ErrorCodeStreamProtocol)
		}

		switch event.Type {
		case assistant.RunEventDelta:
			if err := r.writer.WriteText(event.Text); err != nil {
				// Downstream is gone; nothing left to tell it.
				return err
			}

		case assistant.RunEventRequiresAction:
			outputs := r.resolveToolCalls(ctx, event.ToolCalls)
			if len(outputs) == 0 {
				continue
			}
			next, err := r.client.SubmitToolOutputsStream(ctx, r.threadID, event.RunID, outputs)
			if err != nil {
				return r.fail(err.Error(), observability.ErrorCodeStreamProtocol)
			}
			_ = stream.Close()
			stream = next

		case assistant.RunEventCompleted:
			return r.completeRun(ctx)

		case assistant.RunEventFailed:
			slog.Error("Assistant run failed", "thread_id", r.threadID, "reason", event.Reason)
			return r.fail("assistant run failed", observability.ErrorCodeRunFailed)

		case assistant.RunEventUnknown:
			slog.Debug("Ignoring unhandled upstream event", "tag", event.Tag)
		}
	}
}

// resolveToolCalls answers every pending get_metrics call. A failed or
// malformed side call is answered with the synthetic fallback payload so
// the run continues instead of stalling; side-call failures never surface
// downstream. Calls for any other function are left unanswered, matching
// the declared tool surface of the assistant.
func (r *runRelay) resolveToolCalls(ctx context.Context, calls []assistant.ToolCall) []assistant.ToolOutput {
	var outputs []assistant.ToolOutput
	for _, call := range calls {
		if call.Name != assistant.MetricsToolName {
			slog.Warn("Skipping tool call for undeclared function", "function", call.Name)
			continue
		}

		output, err := r.queryMetrics(ctx, call.Arguments)
		if err != nil {
			slog.Warn("Metrics side call failed, substituting fallback data",
				"tool_call_id", call.ID, "error", err)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordToolFallback()
				m.RecordError(observability.ErrorCodeToolSideCall)
			}
			output = analytics.FallbackPayload()
		}
		outputs = append(outputs, assistant.ToolOutput{ToolCallID: call.ID, Output: output})
	}
	return outputs
}

func (r *runRelay) queryMetrics(ctx context.Context, arguments string) (string, error) {
	var args analytics.MetricsArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("parse tool arguments: %w", err)
	}
	return r.analytics.Query(ctx, args)
}

// completeRun gathers generated images from the latest assistant message,
// emits them if any, and always emits the done frame. A failure fetching a
// single image skips that image only; a failure listing messages is
// terminal because nothing has been committed downstream yet.
func (r *runRelay) completeRun(ctx context.Context) error {
	blocks, err := r.client.LatestAssistantMessage(ctx, r.threadID)
	if err != nil {
		return r.fail(err.Error(), observability.ErrorCodeStreamProtocol)
	}

	var images []string
	for _, block := range blocks {
		if block.ImageFileID == "" {
			continue
		}
		uri, err := r.fetchImage(ctx, block.ImageFileID)
		if err != nil {
			slog.Error("Skipping generated image", "file_id", block.ImageFileID, "error", err)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(observability.ErrorCodeImageFetch)
			}
			continue
		}
		images = append(images, uri)
	}

	if len(images) > 0 {
		if err := r.writer.WriteImages(images); err != nil {
			return err
		}
	}
	return r.writer.WriteDone()
}

func (r *runRelay) fetchImage(ctx context.Context, fileID string) (string, error) {
	content, err := r.client.FileContent(ctx, fileID)
	if err != nil {
		return "", err
	}
	defer content.Close()

	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("read image content: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// fail emits the terminal error frame and records the error.
func (r *runRelay) fail(message, code string) error {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(code)
	}
	if err := r.writer.WriteError(message); err != nil {
		return err
	}
	return fmt.Errorf("%s", message)
}
