package vnnox

import (
	"encoding/json"
	"fmt"
	"time"
)

// CodeSuccess is the envelope code VNNOX returns for a successful call.
const CodeSuccess = 0

// Envelope is the {code, message, data} wrapper around every VNNOX response.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// OK reports whether the envelope carries a success code.
func (e Envelope[T]) OK() bool { return e.Code == CodeSuccess }

// Raw is the envelope used by passthrough control commands.
type Raw = Envelope[json.RawMessage]

type TerminalInfo struct {
	TerminalID string `json:"terminalId"`
	Name       string `json:"name"`
	Model      string `json:"model"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

type TerminalStatus struct {
	Online     bool  `json:"online"`
	Brightness *int  `json:"brightness,omitempty"`
	Volume     *int  `json:"volume,omitempty"`
	Power      *bool `json:"power,omitempty"`
}

// PlayingContent describes what a terminal is currently showing.
// ContentID is nil when nothing is playing.
type PlayingContent struct {
	ContentID *string `json:"contentId"`
}

// Is reports whether the terminal is playing contentID.
func (p PlayingContent) Is(contentID string) bool {
	return p.ContentID != nil && *p.ContentID == contentID
}

// MediaUpload is pushed to a terminal before it can be published.
type MediaUpload struct {
	URL      string   `json:"url"`
	Name     string   `json:"name,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Size     int64    `json:"size,omitempty"`
	Width    *int     `json:"width,omitempty"`
	Height   *int     `json:"height,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

type UploadResult struct {
	ContentID string `json:"contentId"`
}

type LogEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type LogOptions struct {
	Limit     int
	StartTime *time.Time
}

// APIError is returned when VNNOX answers with a non-2xx status or a
// failure code where the caller needs success.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vnnox: http %d, code %d", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("vnnox: http %d, code %d: %s", e.StatusCode, e.Code, e.Message)
}
