package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("relay.assistant.openai")

const (
	assistantName = "X-Gaming AI Assistant"

	assistantInstructions = "You are a helpful gaming AI assistant that can analyze data " +
		"with code_interpreter. When CSV files are uploaded, analyze the data and create " +
		"visualizations. For questions about user metrics like DAU/WAU/MAU, use the " +
		"get_metrics function to retrieve accurate data from our database. Focus on gaming " +
		"industry insights, game development advice, and data analysis."

	// MetricsToolName is the one function tool the relay intercepts.
	MetricsToolName = "get_metrics"
)

// OpenAIAssistant implements Client against the OpenAI Assistants v2 API.
//
// Resource operations (assistants, threads, messages, files) go through the
// go-openai SDK. Streaming runs are hand-rolled over net/http because the
// SDK does not expose the Assistants run-stream endpoints; the SSE body is
// decoded line by line into the RunEvent union.
type OpenAIAssistant struct {
	client     *openai.Client
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewOpenAIAssistant() (*OpenAIAssistant, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from container secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o")
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	slog.Info("Initializing OpenAI assistant client", "model", model, "base_url", baseURL)
	return &OpenAIAssistant{
		client:     openai.NewClientWithConfig(cfg),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}, nil
}

// CreateAssistant creates the assistant with the fixed capability set: the
// code-execution tool plus the get_metrics function tool.
func (o *OpenAIAssistant) CreateAssistant(ctx context.Context) (string, error) {
	name := assistantName
	instructions := assistantInstructions

	metricsParams := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"metric_type": {
				Type:        jsonschema.String,
				Enum:        []string{"dau", "wau", "mau", "retention", "engagement", "statistics"},
				Description: "The type of metric to retrieve",
			},
			"time_period": {
				Type:        jsonschema.String,
				Description: "Time period for the metrics, e.g., 'past week', 'April', etc.",
			},
		},
		Required: []string{"metric_type"},
	}

	assistant, err := o.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        o.model,
		Name:         &name,
		Instructions: &instructions,
		Tools: []openai.AssistantTool{
			{Type: openai.AssistantToolTypeCodeInterpreter},
			{
				Type: openai.AssistantToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        MetricsToolName,
					Description: "Get user metrics like DAU, WAU, MAU, and other gaming statistics from our database",
					Parameters:  metricsParams,
				},
			},
		},
	})
	if err != nil {
		slog.Error("OpenAI assistant creation failed", "error", err)
		return "", fmt.Errorf("create assistant: %w", err)
	}
	slog.Info("Assistant created", "assistant_id", assistant.ID)
	return assistant.ID, nil
}

func (o *OpenAIAssistant) CreateThread(ctx context.Context) (string, error) {
	thread, err := o.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	slog.Info("Thread created", "thread_id", thread.ID)
	return thread.ID, nil
}

func (o *OpenAIAssistant) UploadFile(ctx context.Context, name string, data []byte) (string, error) {
	file, err := o.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return "", fmt.Errorf("upload file %q: %w", name, err)
	}
	slog.Info("Uploaded file to OpenAI", "file_id", file.ID, "name", name)
	return file.ID, nil
}

func (o *OpenAIAssistant) AddUserMessage(ctx context.Context, threadID, content string, fileIDs []string) error {
	req := openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: content,
	}
	for _, id := range fileIDs {
		req.Attachments = append(req.Attachments, openai.ThreadAttachment{
			FileID: id,
			Tools:  []openai.ThreadAttachmentTool{{Type: "code_interpreter"}},
		})
	}
	if _, err := o.client.CreateMessage(ctx, threadID, req); err != nil {
		return fmt.Errorf("append message to thread %s: %w", threadID, err)
	}
	return nil
}

// LatestAssistantMessage scans the thread's message list (newest first, the
// API default order) for the first assistant-authored message.
func (o *OpenAIAssistant) LatestAssistantMessage(ctx context.Context, threadID string) ([]ContentBlock, error) {
	msgs, err := o.client.ListMessage(ctx, threadID, nil, nil, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list messages for thread %s: %w", threadID, err)
	}
	for _, msg := range msgs.Messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		blocks := make([]ContentBlock, 0, len(msg.Content))
		for _, part := range msg.Content {
			block := ContentBlock{Type: part.Type}
			if part.Text != nil {
				block.Text = part.Text.Value
			}
			if part.ImageFile != nil {
				block.ImageFileID = part.ImageFile.FileID
			}
			blocks = append(blocks, block)
		}
		return blocks, nil
	}
	return nil, nil
}

func (o *OpenAIAssistant) FileContent(ctx context.Context, fileID string) (io.ReadCloser, error) {
	content, err := o.client.GetFileContent(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("fetch file content %s: %w", fileID, err)
	}
	return content, nil
}

// StreamRun starts a streaming run against the thread. The returned stream
// ends (io.EOF) after a terminal run event or after requires-action; in the
// latter case the caller resumes with SubmitToolOutputsStream.
func (o *OpenAIAssistant) StreamRun(ctx context.Context, threadID, assistantID string) (RunStream, error) {
	ctx, span := tracer.Start(ctx, "OpenAIAssistant.StreamRun")
	defer span.End()
	span.SetAttributes(attribute.String("assistant.thread_id", threadID))

	payload := map[string]any{
		"assistant_id": assistantID,
		"stream":       true,
	}
	url := fmt.Sprintf("%s/threads/%s/runs", o.baseURL, threadID)
	stream, err := o.openEventStream(ctx, url, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("start run stream: %w", err)
	}
	return stream, nil
}

// SubmitToolOutputsStream submits tool outputs for a paused run and returns
// the continuation stream of the same run.
func (o *OpenAIAssistant) SubmitToolOutputsStream(ctx context.Context, threadID, runID string, outputs []ToolOutput) (RunStream, error) {
	ctx, span := tracer.Start(ctx, "OpenAIAssistant.SubmitToolOutputsStream")
	defer span.End()
	span.SetAttributes(
		attribute.String("assistant.thread_id", threadID),
		attribute.String("assistant.run_id", runID),
		attribute.Int("assistant.tool_outputs", len(outputs)),
	)

	payload := map[string]any{
		"tool_outputs": outputs,
		"stream":       true,
	}
	url := fmt.Sprintf("%s/threads/%s/runs/%s/submit_tool_outputs", o.baseURL, threadID, runID)
	stream, err := o.openEventStream(ctx, url, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("submit tool outputs: %w", err)
	}
	return stream, nil
}

func (o *OpenAIAssistant) openEventStream(ctx context.Context, url string, payload any) (RunStream, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		slog.Error("OpenAI run stream returned an error",
			"status_code", resp.StatusCode, "response", string(respBody))
		return nil, fmt.Errorf("run stream failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseRunStream{body: resp.Body, scanner: scanner}, nil
}

// sseRunStream decodes the Assistants v2 SSE wire format. Each event is an
// "event: <tag>" line followed by a "data: <json>" line; the stream ends
// with a "data: [DONE]" sentinel.
type sseRunStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	tag     string
}

type runDeltaPayload struct {
	Delta struct {
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"delta"`
}

type runActionPayload struct {
	ID             string `json:"id"`
	RequiredAction struct {
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
}

type runFailurePayload struct {
	LastError struct {
		Message string `json:"message"`
	} `json:"last_error"`
}

func (s *sseRunStream) Recv() (RunEvent, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			s.tag = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return RunEvent{}, io.EOF
		}
		event, ok, err := s.decode(s.tag, []byte(data))
		if err != nil {
			return RunEvent{}, err
		}
		if ok {
			return event, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return RunEvent{}, fmt.Errorf("read event stream: %w", err)
	}
	return RunEvent{}, io.EOF
}

// decode maps one upstream event into the RunEvent union. The second return
// is false for events that produce nothing (e.g. a non-text delta).
func (s *sseRunStream) decode(tag string, data []byte) (RunEvent, bool, error) {
	switch tag {
	case "thread.message.delta":
		var payload runDeltaPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return RunEvent{}, false, fmt.Errorf("parse message delta: %w", err)
		}
		if len(payload.Delta.Content) == 0 {
			return RunEvent{}, false, nil
		}
		first := payload.Delta.Content[0]
		if first.Type != "text" || first.Text.Value == "" {
			return RunEvent{}, false, nil
		}
		return RunEvent{Type: RunEventDelta, Text: first.Text.Value}, true, nil

	case "thread.run.requires_action":
		var payload runActionPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return RunEvent{}, false, fmt.Errorf("parse requires_action: %w", err)
		}
		event := RunEvent{Type: RunEventRequiresAction, RunID: payload.ID}
		for _, call := range payload.RequiredAction.SubmitToolOutputs.ToolCalls {
			event.ToolCalls = append(event.ToolCalls, ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
		return event, true, nil

	case "thread.run.completed":
		return RunEvent{Type: RunEventCompleted}, true, nil

	case "thread.run.failed":
		var payload runFailurePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return RunEvent{}, false, fmt.Errorf("parse run failure: %w", err)
		}
		return RunEvent{Type: RunEventFailed, Reason: payload.LastError.Message}, true, nil

	default:
		return RunEvent{Type: RunEventUnknown, Tag: tag}, true, nil
	}
}

func (s *sseRunStream) Close() error {
	return s.body.Close()
}

var _ Client = (*OpenAIAssistant)(nil)
var _ RunStream = (*sseRunStream)(nil)
