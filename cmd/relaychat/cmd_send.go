package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xgaming/assistant-relay/pkg/stream"
)

func runSendCommand(cmd *cobra.Command, args []string) {
	message := strings.Join(args, " ")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	result, err := sendChatRequest(ctx, message, files)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if result.Failed() {
		log.Fatalf("Relay returned an error: %s", result.Error)
	}
	if len(result.Images) > 0 {
		fmt.Printf("\n(%d generated image(s); save them with a browser or decode the data URIs)\n",
			len(result.Images))
	}
	fmt.Println()
}

// sendChatRequest posts the multipart form and streams the reply,
// printing text frames to stdout as they arrive.
func sendChatRequest(ctx context.Context, message string, paths []string) (*stream.FrameResult, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("message", message); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := form.WriteField("userId", userID); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	for i, path := range paths {
		part, err := form.CreateFormFile(fmt.Sprintf("file%d", i), filepath.Base(path))
		if err != nil {
			return nil, fmt.Errorf("build form: %w", err)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	url := strings.TrimRight(relayURL, "/") + "/v1/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	reader := stream.NewFrameReader(stream.NewFrameParser())
	return readPrinting(ctx, reader, resp.Body)
}

// readPrinting wraps ReadAll-style aggregation while echoing text frames
// live.
func readPrinting(ctx context.Context, reader stream.FrameReader, r io.Reader) (*stream.FrameResult, error) {
	result := &stream.FrameResult{CreatedAt: time.Now().UnixMilli()}
	var answer strings.Builder

	err := reader.Read(ctx, r, func(event stream.FrameEvent) error {
		result.TotalFrames++
		switch event.Type {
		case stream.FrameEventText:
			if result.FirstFrameAt == 0 {
				result.FirstFrameAt = time.Now().UnixMilli()
			}
			fmt.Print(event.Content)
			answer.WriteString(event.Content)
		case stream.FrameEventImages:
			result.Images = append(result.Images, event.Images...)
		case stream.FrameEventDone:
			result.CompletedAt = time.Now().UnixMilli()
		case stream.FrameEventError:
			result.Error = event.Message
			result.CompletedAt = time.Now().UnixMilli()
		}
		return nil
	})
	result.Answer = answer.String()
	return result, err
}
