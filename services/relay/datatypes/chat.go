// Package datatypes holds the wire types of the relay service: the inbound
// chat request and the downstream frame protocol.
package datatypes

import "fmt"

// Frame type tags for the downstream protocol.
const (
	FrameText   = "text"
	FrameImages = "images"
	FrameDone   = "done"
	FrameError  = "error"
)

// maxMessageBytes bounds the inbound message field.
const maxMessageBytes = 1 << 20

// RelayFrame is one downstream record. Exactly the fields implied by Type
// are serialized; Content and Message are pointers so an empty string still
// appears on the wire when the frame type calls for it.
type RelayFrame struct {
	Type    string   `json:"type"`
	Content *string  `json:"content,omitempty"`
	Images  []string `json:"images,omitempty"`
	Message *string  `json:"message,omitempty"`
}

func TextFrame(content string) RelayFrame {
	return RelayFrame{Type: FrameText, Content: &content}
}

func ImagesFrame(images []string) RelayFrame {
	return RelayFrame{Type: FrameImages, Images: images}
}

func DoneFrame() RelayFrame {
	return RelayFrame{Type: FrameDone}
}

func ErrorFrame(message string) RelayFrame {
	return RelayFrame{Type: FrameError, Message: &message}
}

// ChatRequest is the parsed multipart chat submission. File parts are kept
// out of this struct; the handler reads them sequentially from the form to
// preserve their order.
type ChatRequest struct {
	Message string
	UserID  string
}

// ApplyDefaults fills the documented fallbacks: an absent message becomes
// the empty string and an absent userId shares the "default" session.
func (r *ChatRequest) ApplyDefaults() {
	if r.UserID == "" {
		r.UserID = "default"
	}
}

func (r *ChatRequest) Validate() error {
	if len(r.Message) > maxMessageBytes {
		return fmt.Errorf("message exceeds %d bytes", maxMessageBytes)
	}
	return nil
}
