package stream

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FrameReader consumes an io.Reader carrying relay frames and emits
// parsed events via callbacks. Readers handle I/O and sequencing; the
// parser converts lines to events. A single Read or ReadAll call should
// not run concurrently on the same instance.
type FrameReader interface {
	// Read processes the stream, invoking callback for each frame.
	// Reading stops at EOF, at a terminal frame, on context
	// cancellation, or when the callback returns an error.
	Read(ctx context.Context, r io.Reader, callback FrameCallback) error

	// ReadAll collects the whole stream into a FrameResult. If the
	// stream ends with an error frame, the message is captured in
	// FrameResult.Error and the returned error is nil.
	ReadAll(ctx context.Context, r io.Reader) (*FrameResult, error)
}

type frameReader struct {
	parser FrameParser
}

// NewFrameReader creates a reader that parses lines with the given
// parser.
func NewFrameReader(parser FrameParser) FrameReader {
	return &frameReader{parser: parser}
}

func (r *frameReader) Read(ctx context.Context, reader io.Reader, callback FrameCallback) error {
	scanner := bufio.NewScanner(reader)
	frameIndex := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event, err := r.parser.ParseLine(scanner.Text())
		if err != nil {
			return err
		}
		if event == nil {
			continue
		}

		event.Index = frameIndex
		frameIndex++

		if err := callback(*event); err != nil {
			return err
		}
		if event.IsTerminal() {
			return nil
		}
	}
	return scanner.Err()
}

func (r *frameReader) ReadAll(ctx context.Context, reader io.Reader) (*FrameResult, error) {
	result := &FrameResult{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
	}

	var answerBuilder strings.Builder

	err := r.Read(ctx, reader, func(event FrameEvent) error {
		result.TotalFrames++

		switch event.Type {
		case FrameEventText:
			if result.FirstFrameAt == 0 {
				result.FirstFrameAt = time.Now().UnixMilli()
			}
			answerBuilder.WriteString(event.Content)

		case FrameEventImages:
			result.Images = append(result.Images, event.Images...)

		case FrameEventDone:
			result.CompletedAt = time.Now().UnixMilli()

		case FrameEventError:
			result.Error = event.Message
			result.CompletedAt = time.Now().UnixMilli()
		}
		return nil
	})

	result.Answer = answerBuilder.String()
	if result.CompletedAt == 0 {
		result.CompletedAt = time.Now().UnixMilli()
	}
	return result, err
}

var _ FrameReader = (*frameReader)(nil)
