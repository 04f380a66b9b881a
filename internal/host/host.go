// Package host adapts the editor host link to the daemon's ports: the
// command editor, the display, the spoken response sink, the in-panel
// speech recognizer and the editor-side AI.
package host

import (
	"context"

	"voxcode/pkg/protocol"
)

// Link is the subset of *protocol.Protocol the adapters use.
type Link interface {
	Transmit(f *protocol.Frame) error
	Call(ctx context.Context, f *protocol.Frame) (*protocol.Frame, error)
	Handle(cmd protocol.Command, h protocol.Handler)
	OnReconnect(fn func())
}

const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Editor runs editor commands and shows information on the host.
type Editor struct {
	link Link
}

func NewEditor(link Link) *Editor {
	return &Editor{link: link}
}

func (e *Editor) ExecuteCommand(ctx context.Context, id string, args ...any) error {
	_, err := e.link.Call(ctx, &protocol.Frame{
		Command: protocol.CmdExecute,
		Target:  id,
		Args:    args,
	})
	return err
}

func (e *Editor) ShowInformation(_ context.Context, text string) error {
	return e.link.Transmit(&protocol.Frame{Command: protocol.CmdNotify, Level: LevelInfo, Text: text})
}

// Notifier is the session display. With status messages disabled it drops
// everything, matching the editor setting.
type Notifier struct {
	link    Link
	enabled bool
}

func NewNotifier(link Link, enabled bool) *Notifier {
	return &Notifier{link: link, enabled: enabled}
}

func (n *Notifier) Notify(_ context.Context, text string) error {
	return n.send(LevelInfo, text)
}

func (n *Notifier) NotifyError(_ context.Context, text string) error {
	return n.send(LevelError, text)
}

func (n *Notifier) send(level, text string) error {
	if !n.enabled {
		return nil
	}
	return n.link.Transmit(&protocol.Frame{Command: protocol.CmdNotify, Level: level, Text: text})
}

type Voice struct {
	Lang  string
	Rate  float64
	Pitch float64
}

// Speaker speaks through the host's synthesizer.
type Speaker struct {
	link  Link
	voice Voice
}

func NewSpeaker(link Link, voice Voice) *Speaker {
	return &Speaker{link: link, voice: voice}
}

func (s *Speaker) Speak(_ context.Context, text string) error {
	return s.link.Transmit(&protocol.Frame{
		Command: protocol.CmdSpeak,
		Text:    text,
		Lang:    s.voice.Lang,
		Rate:    s.voice.Rate,
		Pitch:   s.voice.Pitch,
	})
}

// Assistant is a delegate backend answered by an AI integration on the
// editor side.
type Assistant struct {
	link Link
}

func NewAssistant(link Link) *Assistant {
	return &Assistant{link: link}
}

func (a *Assistant) Available(ctx context.Context) bool {
	resp, err := a.link.Call(ctx, &protocol.Frame{Command: protocol.CmdProbe})
	return err == nil && resp.OK
}

func (a *Assistant) Query(ctx context.Context, text string) (string, error) {
	resp, err := a.link.Call(ctx, &protocol.Frame{Command: protocol.CmdQuery, Text: text})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
