package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/xgaming/assistant-relay/services/relay/datatypes"
	"github.com/xgaming/assistant-relay/services/relay/observability"
)

// FrameWriter serializes relay events into the downstream frame protocol:
// one "data: <json>\n\n" record per event, flushed immediately. Every
// variant has a defined serialization and no frame is ever buffered beyond
// what the transport requires.
//
// The browser client reads the body with fetch and reassembles frames on
// the "\n\n" boundary itself, so the response is deliberately served as
// text/plain rather than text/event-stream: advertising SSE would invite
// EventSource clients onto a stream that carries no event/id fields.
type FrameWriter interface {
	// WriteText emits one text frame with a delta chunk.
	WriteText(content string) error

	// WriteImages emits one images frame with base64 data URIs.
	WriteImages(images []string) error

	// WriteDone emits the terminal success frame. No frames may follow.
	WriteDone() error

	// WriteError emits the terminal error frame. No frames may follow.
	WriteError(message string) error
}

type frameWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewFrameWriter wraps the ResponseWriter for frame output. The caller must
// have set headers via SetRelayHeaders first.
func NewFrameWriter(w http.ResponseWriter) (FrameWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &frameWriter{writer: w, flusher: flusher}, nil
}

func (w *frameWriter) writeFrame(frame datatypes.RelayFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	w.flusher.Flush()

	if m := observability.DefaultMetrics; m != nil {
		m.RecordFrame(frame.Type)
	}
	return nil
}

func (w *frameWriter) WriteText(content string) error {
	return w.writeFrame(datatypes.TextFrame(content))
}

func (w *frameWriter) WriteImages(images []string) error {
	return w.writeFrame(datatypes.ImagesFrame(images))
}

func (w *frameWriter) WriteDone() error {
	return w.writeFrame(datatypes.DoneFrame())
}

func (w *frameWriter) WriteError(message string) error {
	return w.writeFrame(datatypes.ErrorFrame(message))
}

// SetRelayHeaders configures the streaming response headers. Must be called
// before the first write.
func SetRelayHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ FrameWriter = (*frameWriter)(nil)
