package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	t.Setenv("ANALYTICS_API_URL", baseURL)
	return NewClient()
}

func TestQuestion(t *testing.T) {
	assert.Equal(t, "Get dau data for past week",
		Question(MetricsArgs{MetricType: "dau", TimePeriod: "past week"}))
	assert.Equal(t, "Get retention data",
		Question(MetricsArgs{MetricType: "retention"}))
}

func TestQuery(t *testing.T) {
	t.Run("returns the result payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/run_bq_tool", r.URL.Path)
			var body struct {
				Question string `json:"question"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Get wau data for April", body.Question)
			fmt.Fprint(w, `{"result":{"rows":[{"date":"2025-04-01","wau":9000}]}}`)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		result, err := client.Query(context.Background(), MetricsArgs{MetricType: "wau", TimePeriod: "April"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"rows":[{"date":"2025-04-01","wau":9000}]}`, result)
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "query failed", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		_, err := client.Query(context.Background(), MetricsArgs{MetricType: "dau"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("missing result field is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"ok"}`)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		_, err := client.Query(context.Background(), MetricsArgs{MetricType: "dau"})
		require.Error(t, err)
	})

	t.Run("slow upstream times out", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping timeout test in short mode")
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Drain the body so the server detects the client disconnect
			// and cancels the request context; otherwise srv.Close hangs.
			io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		start := time.Now()
		_, err := client.Query(context.Background(), MetricsArgs{MetricType: "dau"})
		require.Error(t, err)
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("unreachable API is an error", func(t *testing.T) {
		client := newTestClient(t, "http://127.0.0.1:1")
		_, err := client.Query(context.Background(), MetricsArgs{MetricType: "dau"})
		require.Error(t, err)
	})
}

func TestFallbackPayload(t *testing.T) {
	payload := FallbackPayload()
	require.NotEmpty(t, payload)

	var decoded struct {
		Message string `json:"message"`
		Data    []struct {
			Date string `json:"date"`
			DAU  int    `json:"dau"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Contains(t, decoded.Message, "dummy data")
	require.Len(t, decoded.Data, 3)
	assert.Equal(t, 1500, decoded.Data[0].DAU)
}
