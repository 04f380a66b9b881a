package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"voxcode/internal/recognition"
)

type Cue interface {
	Play() error
}

type Ducker interface {
	Duck(ctx context.Context) error
	Unduck(ctx context.Context) error
}

// MicSource is a recognizer that records utterances from the default input
// device and transcribes them locally. It keeps listening until stopped.
type MicSource struct {
	rec  *Recorder
	tr   recognition.Transcriber
	cue  Cue
	duck Ducker

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMicSource wires the loop. cue and duck may be nil.
func NewMicSource(rec *Recorder, tr recognition.Transcriber, cue Cue, duck Ducker) *MicSource {
	return &MicSource{rec: rec, tr: tr, cue: cue, duck: duck}
}

func (m *MicSource) Start(ctx context.Context, emit func(recognition.Result)) error {
	if m.rec == nil || m.tr == nil {
		return fmt.Errorf("%w: no microphone transcriber", recognition.ErrUnavailable)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(loopCtx, emit, m.done)
	return nil
}

func (m *MicSource) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (m *MicSource) loop(ctx context.Context, emit func(recognition.Result), done chan struct{}) {
	defer close(done)

	if m.cue != nil {
		if err := m.cue.Play(); err != nil {
			log.Warn("cue failed", "err", err)
		}
	}

	for ctx.Err() == nil {
		text, err := m.listenOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("microphone listen failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if text == "" {
			continue
		}

		log.Info("Transcribed", "text", text)
		emit(recognition.Result{Text: text, Final: true})
	}
}

func (m *MicSource) listenOnce(ctx context.Context) (string, error) {
	if m.duck != nil {
		if err := m.duck.Duck(ctx); err != nil {
			log.Warn("duck failed", "err", err)
		}
		defer func() {
			if err := m.duck.Unduck(context.WithoutCancel(ctx)); err != nil {
				log.Warn("unduck failed", "err", err)
			}
		}()
	}

	pcm, err := m.rec.RecordAuto(ctx)
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	if len(pcm) == 0 {
		return "", nil
	}
	log.Debug("Recorded", "samples", len(pcm))

	text, err := m.tr.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}
