package main

import (
	log "log/slog"
	"time"

	"voxcode/internal/audio"
	"voxcode/internal/config"
	"voxcode/internal/host"
	"voxcode/internal/mixer"
	"voxcode/internal/notify"
	"voxcode/internal/recognition"
	"voxcode/internal/session"
	"voxcode/pkg/protocol"
	"voxcode/pkg/stt"
)

// newRecognizer picks the speech input. A local input whose model cannot be
// loaded yields no recognizer, so starting the session reports speech
// recognition as unavailable instead of failing the daemon.
func newRecognizer(cfg *config.Config, link *protocol.Protocol, notifier *host.Notifier) (session.Recognizer, func()) {
	noop := func() {}

	switch cfg.Speech.Input {
	case "mic":
		rec := audio.NewRecorder()
		if err := rec.Init(); err != nil {
			log.Error("Failed to init audio", "err", err)
			return nil, noop
		}

		whisper, err := newWhisper(cfg.Speech)
		if err != nil {
			rec.Close()
			return nil, noop
		}

		var cue audio.Cue
		if cfg.Speech.Cue != "" {
			cue = notify.NewCue(cfg.Speech.Cue)
		}
		var duck audio.Ducker
		if cfg.Speech.Duck {
			duck = mixer.NewDucker([]string{"voxcode", "voxcode-daemon"}, 10, 0.3, 300*time.Millisecond)
		}

		return audio.NewMicSource(rec, whisper, cue, duck), func() {
			whisper.Close()
			rec.Close()
		}

	case "inbox":
		whisper, err := newWhisper(cfg.Speech)
		if err != nil {
			return nil, noop
		}
		inbox := recognition.NewInbox(cfg.Speech.InboxDir, cfg.Speech.InboxIntervalDuration(), whisper,
			log.Default().With("component", "inbox"))
		return inbox, func() { whisper.Close() }

	default:
		return host.NewPanel(link, cfg.Speech.Language, notifier), noop
	}
}

func newWhisper(cfg config.SpeechConfig) (*stt.Transcriber, error) {
	whisper, err := stt.NewTranscriber(cfg.Model, stt.Options{
		Language: cfg.Language,
		Threads:  cfg.Threads,
	})
	if err != nil {
		log.Error("Failed to init whisper", "model", cfg.Model, "err", err)
		return nil, err
	}
	log.Debug("Loaded whisper", "model", cfg.Model)
	return whisper, nil
}
