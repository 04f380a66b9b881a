package host

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"

	"voxcode/internal/recognition"
	"voxcode/pkg/protocol"
)

// Panel is a recognizer backed by the speech engine in the editor's voice
// panel. Transcription and error frames arrive on the link read loop.
type Panel struct {
	link     Link
	lang     string
	notifier *Notifier

	mu     sync.Mutex
	emit   func(recognition.Result)
	active bool
}

func NewPanel(link Link, lang string, notifier *Notifier) *Panel {
	p := &Panel{link: link, lang: lang, notifier: notifier}

	link.Handle(protocol.CmdTranscription, p.onTranscription)
	link.Handle(protocol.CmdError, p.onError)
	link.OnReconnect(p.resume)

	return p
}

func (p *Panel) Start(ctx context.Context, emit func(recognition.Result)) error {
	p.mu.Lock()
	p.emit = emit
	p.mu.Unlock()

	if _, err := p.link.Call(ctx, p.startFrame()); err != nil {
		p.mu.Lock()
		p.emit = nil
		p.mu.Unlock()
		return fmt.Errorf("%w: %v", recognition.ErrUnavailable, err)
	}

	p.mu.Lock()
	p.active = true
	p.mu.Unlock()
	return nil
}

func (p *Panel) Stop() error {
	p.mu.Lock()
	p.emit = nil
	p.active = false
	p.mu.Unlock()

	return p.link.Transmit(&protocol.Frame{Command: protocol.CmdStopListening})
}

func (p *Panel) startFrame() *protocol.Frame {
	return &protocol.Frame{Command: protocol.CmdStartListening, Lang: p.lang}
}

// resume restarts the host recognizer after the link was redialed.
func (p *Panel) resume() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if !active {
		return
	}
	if err := p.link.Transmit(p.startFrame()); err != nil {
		log.Warn("failed to resume listening", "err", err)
	}
}

func (p *Panel) onTranscription(_ context.Context, f *protocol.Frame) {
	p.mu.Lock()
	emit := p.emit
	p.mu.Unlock()

	if emit == nil {
		log.Debug("transcription while idle", "text", f.Text)
		return
	}
	emit(recognition.Result{Text: f.Text, Final: f.Final})
}

func (p *Panel) onError(ctx context.Context, f *protocol.Frame) {
	reason := f.Error
	if reason == "" {
		reason = f.Text
	}
	log.Warn("voice error", "reason", reason)

	if p.notifier != nil {
		if err := p.notifier.NotifyError(ctx, "Voice error: "+reason); err != nil {
			log.Warn("failed to show voice error", "err", err)
		}
	}
}
