package gateway

import (
	"bytes"
	"encoding/json"

	"github.com/kilianp07/vcmd/core/model"
)

// Envelope is the gateway response shape. Node listings may arrive bare
// ({"nodes": [...]}) or wrapped in a successful envelope.
type Envelope struct {
	OK     bool                   `json:"ok"`
	Result *Result                `json:"result,omitempty"`
	Error  *EnvelopeError         `json:"error,omitempty"`
	Nodes  []model.NodeDescriptor `json:"nodes,omitempty"`
}

// Result carries text content and an optional structured payload.
type Result struct {
	Content []Content       `json:"content"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Content is one content block of a result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// EnvelopeError is the error member of a failed envelope.
type EnvelopeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Value normalizes the result: details when present, else the first content
// text decoded as JSON, else that text verbatim. A missing result yields nil.
func (e Envelope) Value() any {
	if e.Result == nil {
		return nil
	}
	if d := bytes.TrimSpace(e.Result.Details); len(d) > 0 && !bytes.Equal(d, []byte("null")) {
		var v any
		if err := json.Unmarshal(d, &v); err == nil {
			return v
		}
	}
	if len(e.Result.Content) == 0 {
		return nil
	}
	text := e.Result.Content[0].Text
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}

// ErrorMessage returns the envelope error message or fallback.
func (e Envelope) ErrorMessage(fallback string) string {
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return fallback
}

func (e Envelope) errorType() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Type
}
