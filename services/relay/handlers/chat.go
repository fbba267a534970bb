package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xgaming/assistant-relay/services/analytics"
	"github.com/xgaming/assistant-relay/services/assistant"
	"github.com/xgaming/assistant-relay/services/relay/datatypes"
	"github.com/xgaming/assistant-relay/services/relay/observability"
)

// maxUploadBytes caps a single uploaded file part.
const maxUploadBytes = 32 << 20

// ChatHandler serves the streaming chat endpoint. Every failure before the
// first frame is written surfaces as a plain HTTP 500 with a JSON error
// body; once streaming starts, failures surface as a terminal error frame
// instead. Thread-safe: all fields are read-only after construction.
type ChatHandler struct {
	client    assistant.Client
	bootstrap *assistant.Bootstrap
	sessions  SessionStore
	analytics *analytics.Client
	tracer    trace.Tracer
}

func NewChatHandler(
	client assistant.Client,
	bootstrap *assistant.Bootstrap,
	sessions SessionStore,
	analyticsClient *analytics.Client,
) *ChatHandler {
	return &ChatHandler{
		client:    client,
		bootstrap: bootstrap,
		sessions:  sessions,
		analytics: analyticsClient,
		tracer:    otel.Tracer("relay.handlers.chat"),
	}
}

// HandleChat accepts a multipart chat message, binds the caller to its
// conversation thread, forwards the message (plus any attached files) to
// the assistant, and relays the run's output as newline-delimited frames.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	startTime := time.Now()

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleChat")
	defer span.End()

	requestID := uuid.New().String()
	span.SetAttributes(attribute.String("request.id", requestID))

	req, uploads, err := parseChatForm(c.Request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		slog.Error("Failed to parse chat request", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(observability.ErrorCodeValidation)
			m.RecordRequest(false)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("user.id", req.UserID),
		attribute.Int("request.file_count", len(uploads)),
	)

	assistantID, err := h.bootstrap.EnsureAssistant(ctx)
	if err != nil {
		h.failBeforeStream(c, span, "ensure assistant", err)
		return
	}

	threadID, err := h.sessions.ResolveThread(ctx, req.UserID)
	if err != nil {
		h.failBeforeStream(c, span, "resolve thread", err)
		return
	}
	span.SetAttributes(attribute.String("thread.id", threadID))

	fileIDs := make([]string, 0, len(uploads))
	for _, up := range uploads {
		fileID, err := assistant.AdaptUpload(ctx, h.client, up)
		if err != nil {
			h.failBeforeStream(c, span, "upload file", err)
			return
		}
		fileIDs = append(fileIDs, fileID)
	}

	if err := h.client.AddUserMessage(ctx, threadID, req.Message, fileIDs); err != nil {
		h.failBeforeStream(c, span, "add message", err)
		return
	}

	stream, err := h.client.StreamRun(ctx, threadID, assistantID)
	if err != nil {
		h.failBeforeStream(c, span, "start run", err)
		return
	}

	SetRelayHeaders(c.Writer)
	writer, err := NewFrameWriter(c.Writer)
	if err != nil {
		_ = stream.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "streaming unsupported")
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(observability.ErrorCodeStreamUnsupported)
			m.RecordRequest(false)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted()
		defer m.StreamEnded()
	}

	relay := &runRelay{
		client:      h.client,
		analytics:   h.analytics,
		writer:      writer,
		threadID:    threadID,
		assistantID: assistantID,
	}

	runErr := relay.run(ctx, stream)
	success := runErr == nil
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "relay ended with error")
		slog.Error("Chat relay ended with error",
			"request_id", requestID, "thread_id", threadID, "error", runErr)
	}
	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(success)
		m.RecordStreamDuration(time.Since(startTime).Seconds(), success)
	}
}

// failBeforeStream reports an error that happened before any frame was
// written. The response is still a plain JSON 500, not a stream.
func (h *ChatHandler) failBeforeStream(c *gin.Context, span trace.Span, stage string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	slog.Error("Chat request failed before streaming", "stage", stage, "error", err)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(observability.ErrorCodeUpstream)
		m.RecordRequest(false)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// parseChatForm reads the multipart body sequentially so file parts keep
// their submission order. Any part whose field name starts with "file" is
// treated as an attachment; "message" and "userId" are the text fields.
func parseChatForm(r *http.Request) (datatypes.ChatRequest, []assistant.Upload, error) {
	var req datatypes.ChatRequest
	var uploads []assistant.Upload

	reader, err := r.MultipartReader()
	if err != nil {
		return req, nil, fmt.Errorf("read multipart form: %w", err)
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return req, nil, fmt.Errorf("read multipart part: %w", err)
		}

		name := part.FormName()
		switch {
		case name == "message":
			value, err := readPartString(part)
			if err != nil {
				return req, nil, err
			}
			req.Message = value
		case name == "userId":
			value, err := readPartString(part)
			if err != nil {
				return req, nil, err
			}
			req.UserID = value
		case strings.HasPrefix(name, "file"):
			data, err := io.ReadAll(io.LimitReader(part, maxUploadBytes+1))
			if err != nil {
				_ = part.Close()
				return req, nil, fmt.Errorf("read upload %q: %w", name, err)
			}
			if len(data) > maxUploadBytes {
				_ = part.Close()
				return req, nil, fmt.Errorf("upload %q exceeds %d bytes", name, maxUploadBytes)
			}
			uploads = append(uploads, assistant.Upload{
				Name:        part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			})
		}
		_ = part.Close()
	}

	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return req, nil, err
	}
	return req, uploads, nil
}

func readPartString(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxMessagePartBytes))
	if err != nil {
		return "", fmt.Errorf("read field %q: %w", part.FormName(), err)
	}
	return string(data), nil
}

const maxMessagePartBytes = 2 << 20

// HealthCheck reports route liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "API route is working"})
}
