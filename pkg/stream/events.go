// Package stream provides client-side components for consuming the
// relay's newline-delimited frame stream.
//
// The relay emits frames as `data: <JSON>` records separated by blank
// lines. This package converts those records into FrameEvent structs and
// aggregates full conversations into a FrameResult.
package stream

// FrameEventType identifies the frame variant carried by a FrameEvent.
type FrameEventType string

const (
	// FrameEventText carries one incremental chunk of assistant text.
	FrameEventText FrameEventType = "text"
	// FrameEventImages carries generated images as base64 data URIs.
	FrameEventImages FrameEventType = "images"
	// FrameEventDone marks successful completion of the run.
	FrameEventDone FrameEventType = "done"
	// FrameEventError marks failed completion; Message holds the reason.
	FrameEventError FrameEventType = "error"
)

// FrameEvent is one parsed frame from the relay stream.
//
// Id and CreatedAt are assigned client-side at parse time; the wire
// format carries neither.
type FrameEvent struct {
	Id        string         `json:"id"`
	CreatedAt int64          `json:"created_at"`
	Index     int            `json:"index"`
	Type      FrameEventType `json:"type"`
	Content   string         `json:"content,omitempty"`
	Images    []string       `json:"images,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// IsTerminal reports whether no further frames follow this one.
func (e *FrameEvent) IsTerminal() bool {
	return e.Type == FrameEventDone || e.Type == FrameEventError
}

// FrameResult aggregates a complete relay stream.
type FrameResult struct {
	Id           string   `json:"id"`
	CreatedAt    int64    `json:"created_at"`
	FirstFrameAt int64    `json:"first_frame_at,omitempty"`
	CompletedAt  int64    `json:"completed_at"`
	Answer       string   `json:"answer"`
	Images       []string `json:"images,omitempty"`
	Error        string   `json:"error,omitempty"`
	TotalFrames  int      `json:"total_frames"`
}

// Failed reports whether the stream ended with an error frame.
func (r *FrameResult) Failed() bool {
	return r.Error != ""
}

// FrameCallback is invoked for each parsed frame. Returning a non-nil
// error stops the read.
type FrameCallback func(event FrameEvent) error
