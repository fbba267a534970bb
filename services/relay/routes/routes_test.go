package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/xgaming/assistant-relay/services/analytics"
	"github.com/xgaming/assistant-relay/services/assistant"
	"github.com/xgaming/assistant-relay/services/relay/handlers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubAssistant satisfies assistant.Client; routing tests never reach the
// upstream operations.
type stubAssistant struct{}

func (s *stubAssistant) CreateAssistant(ctx context.Context) (string, error) {
	return "asst-1", nil
}

func (s *stubAssistant) CreateThread(ctx context.Context) (string, error) {
	return "thread-1", nil
}

func (s *stubAssistant) UploadFile(ctx context.Context, name string, data []byte) (string, error) {
	return "file-1", nil
}

func (s *stubAssistant) AddUserMessage(ctx context.Context, threadID, content string, fileIDs []string) error {
	return nil
}

func (s *stubAssistant) StreamRun(ctx context.Context, threadID, assistantID string) (assistant.RunStream, error) {
	return nil, fmt.Errorf("not scripted")
}

func (s *stubAssistant) SubmitToolOutputsStream(ctx context.Context, threadID, runID string, outputs []assistant.ToolOutput) (assistant.RunStream, error) {
	return nil, fmt.Errorf("not scripted")
}

func (s *stubAssistant) LatestAssistantMessage(ctx context.Context, threadID string) ([]assistant.ContentBlock, error) {
	return nil, nil
}

func (s *stubAssistant) FileContent(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not scripted")
}

func newTestRouter() *gin.Engine {
	client := &stubAssistant{}
	chat := handlers.NewChatHandler(client, assistant.NewBootstrap(client),
		handlers.NewMemorySessionStore(client), analytics.NewClient())
	router := gin.New()
	SetupRoutes(router, chat)
	return router
}

func TestSetupRoutes_Health(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("health status mismatch: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "API route is working") {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}

func TestSetupRoutes_Metrics(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status mismatch: %d", rec.Code)
	}
}

func TestSetupRoutes_ChatRegistered(t *testing.T) {
	router := newTestRouter()

	// Wrong method is not routed
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /v1/chat status mismatch: %d", rec.Code)
	}

	// POST reaches the handler; a non-multipart body fails inside it
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("POST /v1/chat status mismatch: %d", rec.Code)
	}
}
