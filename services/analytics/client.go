// Package analytics is the client for the metrics API backing the
// get_metrics tool. Calls are bounded by a 5-second timeout and never
// retried; callers substitute FallbackPayload when a call fails so the
// assistant run keeps moving.
package analytics

import (
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("relay.analytics")

const sideCallTimeout = 5 * time.Second

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient() *Client {
	baseURL := os.Getenv("ANALYTICS_API_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8696"
		slog.Warn("ANALYTICS_API_URL not set, defaulting to local analytics API", "base_url", baseURL)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{
		httpClient: &http.Client{Timeout: sideCallTimeout},
		baseURL:    baseURL,
	}
}

// MetricsArgs are the parsed arguments of one get_metrics tool call.
type MetricsArgs struct {
	MetricType string `json:"metric_type"`
	TimePeriod string `json:"time_period"`
}

// Question synthesizes the natural-language question the analytics API
// expects from the structured tool arguments.
func Question(args MetricsArgs) string {
	q := fmt.Sprintf("Get %s data", args.MetricType)
	if args.TimePeriod != "" {
		q += " for " + args.TimePeriod
	}
	return q
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
}

// Query asks the analytics API for metric data and returns the result
// payload re-encoded as the tool output JSON. Any failure (timeout,
// connection error, non-2xx status, malformed body) is returned as an
// error; the caller decides whether to fall back.
func (c *Client) Query(ctx context.Context, args MetricsArgs) (string, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsClient.Query")
	defer span.End()
	span.SetAttributes(attribute.String("analytics.metric_type", args.MetricType))

	ctx, cancel := context.WithTimeout(ctx, sideCallTimeout)
	defer cancel()

	body, err := json.Marshal(queryRequest{Question: Question(args)})
	if err != nil {
		return "", fmt.Errorf("marshal analytics request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run_bq_tool", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create analytics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("analytics API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read analytics response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("Analytics API returned an error",
			"status_code", resp.StatusCode, "response", string(respBody))
		return "", fmt.Errorf("analytics API failed with status %d", resp.StatusCode)
	}

	var parsed queryResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse analytics response: %w", err)
	}
	if len(parsed.Result) == 0 {
		return "", fmt.Errorf("analytics response missing result field")
	}
	return string(parsed.Result), nil
}

// FallbackPayload is the clearly-marked synthetic tool output used when the
// analytics API is unavailable, so the run continues instead of stalling.
func FallbackPayload() string {
	payload := map[string]any{
		"message": "API currently unavailable. This is dummy data for testing.",
		"data": []map[string]any{
			{"date": "2025-01-01", "dau": 1500},
			{"date": "2025-01-02", "dau": 1750},
			{"date": "2025-01-03", "dau": 1600},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}
