package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Command string

const (
	// host -> daemon
	CmdTranscription Command = "transcription"
	CmdError         Command = "error"

	// daemon -> host
	CmdSpeak          Command = "speak"
	CmdStartListening Command = "startListening"
	CmdStopListening  Command = "stopListening"
	CmdExecute        Command = "execute"
	CmdNotify         Command = "notify"
	CmdProbe          Command = "probe"
	CmdQuery          Command = "query"

	// either way, answers a frame carrying an ID
	CmdResult Command = "result"
)

// Frame is one JSON text message on the host link. Only the fields relevant
// to Command are set.
type Frame struct {
	ID      string  `json:"id,omitempty"`
	ReplyTo string  `json:"replyTo,omitempty"`
	Command Command `json:"command"`

	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`

	Target string `json:"target,omitempty"`
	Args   []any  `json:"args,omitempty"`
	Level  string `json:"level,omitempty"`

	Lang  string  `json:"lang,omitempty"`
	Rate  float64 `json:"rate,omitempty"`
	Pitch float64 `json:"pitch,omitempty"`

	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// RemoteError is a failure reported by the other end of the link.
type RemoteError struct {
	Command Command
	Reason  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Reason)
}

func Parse(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Command == "" {
		return nil, errors.New("frame without command")
	}
	if f.Command == CmdResult && f.ReplyTo == "" {
		return nil, errors.New("result frame without replyTo")
	}
	return &f, nil
}

func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// Ok builds the successful result for f.
func (f *Frame) Ok(text string) *Frame {
	return &Frame{Command: CmdResult, ReplyTo: f.ID, OK: true, Text: text}
}

// Fail builds the failed result for f.
func (f *Frame) Fail(reason string) *Frame {
	return &Frame{Command: CmdResult, ReplyTo: f.ID, Error: reason}
}

func (f *Frame) err(req Command) error {
	if f.OK {
		return nil
	}
	reason := f.Error
	if reason == "" {
		reason = "failed"
	}
	return &RemoteError{Command: req, Reason: reason}
}
