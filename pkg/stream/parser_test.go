package stream

import (
	"testing"
)

func TestNewFrameParser(t *testing.T) {
	parser := NewFrameParser()
	if parser == nil {
		t.Fatal("NewFrameParser() returned nil")
	}
}

func TestFrameParser_ParseLine_TextFrame(t *testing.T) {
	parser := NewFrameParser()

	event, err := parser.ParseLine(`data: {"type":"text","content":"Hello"}`)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event == nil {
		t.Fatal("expected event, got nil")
	}
	if event.Id == "" {
		t.Error("expected Id to be set")
	}
	if event.CreatedAt == 0 {
		t.Error("expected CreatedAt to be set")
	}
	if event.Type != FrameEventText {
		t.Errorf("expected Type %v, got %v", FrameEventText, event.Type)
	}
	if event.Content != "Hello" {
		t.Errorf("expected Content 'Hello', got %q", event.Content)
	}
}

func TestFrameParser_ParseLine_ImagesFrame(t *testing.T) {
	parser := NewFrameParser()

	event, err := parser.ParseLine(`data: {"type":"images","images":["data:image/png;base64,AA"]}`)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != FrameEventImages {
		t.Errorf("expected Type %v, got %v", FrameEventImages, event.Type)
	}
	if len(event.Images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(event.Images))
	}
	if event.Images[0] != "data:image/png;base64,AA" {
		t.Errorf("unexpected image URI: %q", event.Images[0])
	}
}

func TestFrameParser_ParseLine_DoneFrame(t *testing.T) {
	parser := NewFrameParser()

	event, err := parser.ParseLine(`data: {"type":"done"}`)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != FrameEventDone {
		t.Errorf("expected Type %v, got %v", FrameEventDone, event.Type)
	}
	if !event.IsTerminal() {
		t.Error("done frame should be terminal")
	}
}

func TestFrameParser_ParseLine_ErrorFrame(t *testing.T) {
	parser := NewFrameParser()

	event, err := parser.ParseLine(`data: {"type":"error","message":"boom"}`)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != FrameEventError {
		t.Errorf("expected Type %v, got %v", FrameEventError, event.Type)
	}
	if event.Message != "boom" {
		t.Errorf("expected Message 'boom', got %q", event.Message)
	}
	if !event.IsTerminal() {
		t.Error("error frame should be terminal")
	}
}

func TestFrameParser_ParseLine_EmptyAndDelimiters(t *testing.T) {
	parser := NewFrameParser()

	for _, line := range []string{"", "   ", "\t"} {
		event, err := parser.ParseLine(line)
		if err != nil {
			t.Errorf("unexpected error for %q: %v", line, err)
		}
		if event != nil {
			t.Errorf("expected nil event for %q, got %+v", line, event)
		}
	}
}

func TestFrameParser_ParseLine_DataPrefixWithoutSpace(t *testing.T) {
	parser := NewFrameParser()

	event, err := parser.ParseLine(`data:{"type":"text","content":"hi"}`)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Content != "hi" {
		t.Errorf("expected Content 'hi', got %q", event.Content)
	}
}

func TestFrameParser_ParseLine_RawTextLine(t *testing.T) {
	parser := NewFrameParser()

	event, err := parser.ParseLine("plain text from a misbehaving server")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != FrameEventText {
		t.Errorf("expected raw line to parse as text, got %v", event.Type)
	}
	if event.Content != "plain text from a misbehaving server" {
		t.Errorf("content mismatch: %q", event.Content)
	}
}

func TestFrameParser_ParseLine_MalformedJSON(t *testing.T) {
	parser := NewFrameParser()

	if _, err := parser.ParseLine(`data: {not json`); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
