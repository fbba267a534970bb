package stream

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FrameParser parses relay frame records into FrameEvent structs.
//
// Wire format, one record per frame:
//
//	data: {"type":"text","content":"Hello"}\n
//	\n
//	data: {"type":"done"}\n
//	\n
//
// Empty lines are record delimiters and parse to nil. Parsers only
// parse; they perform no I/O and hold no state, so the default
// implementation is safe for concurrent use.
type FrameParser interface {
	// ParseLine parses a single line from the stream (without its
	// trailing newline). Returns nil, nil for delimiter lines.
	ParseLine(line string) (*FrameEvent, error)

	// ParseRawJSON parses a frame payload without the "data: " prefix.
	// Assigns a fresh Id and CreatedAt.
	ParseRawJSON(jsonData []byte) (*FrameEvent, error)
}

type frameParser struct{}

// NewFrameParser creates a stateless frame parser that can be shared
// across goroutines.
func NewFrameParser() FrameParser {
	return &frameParser{}
}

func (p *frameParser) ParseLine(line string) (*FrameEvent, error) {
	line = strings.TrimSpace(line)

	// Empty lines are record delimiters
	if line == "" {
		return nil, nil
	}

	if jsonData, ok := strings.CutPrefix(line, "data: "); ok {
		return p.ParseRawJSON([]byte(jsonData))
	}
	// Tolerate "data:" without the space
	if jsonData, ok := strings.CutPrefix(line, "data:"); ok {
		return p.ParseRawJSON([]byte(jsonData))
	}

	// Non-framed line: treat as raw text content
	return &FrameEvent{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
		Type:      FrameEventText,
		Content:   line,
	}, nil
}

func (p *frameParser) ParseRawJSON(jsonData []byte) (*FrameEvent, error) {
	var raw struct {
		Type    string   `json:"type"`
		Content string   `json:"content"`
		Images  []string `json:"images"`
		Message string   `json:"message"`
	}
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil, err
	}

	return &FrameEvent{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
		Type:      FrameEventType(raw.Type),
		Content:   raw.Content,
		Images:    raw.Images,
		Message:   raw.Message,
	}, nil
}

var _ FrameParser = (*frameParser)(nil)
