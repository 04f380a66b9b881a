// Package session runs a voice dispatch session: finalized transcripts are
// matched against the command table, unmatched ones go to the AI delegate,
// and every outcome is spoken back.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/unicode/norm"

	"voxcode/internal/command"
	"voxcode/internal/delegate"
	"voxcode/internal/recognition"
)

var (
	ErrRecognitionUnavailable = recognition.ErrUnavailable
	ErrNotListening           = errors.New("session is not listening")
	ErrQueueFull              = errors.New("dispatch queue full")
)

type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
)

type Config struct {
	// QueueSize bounds transcripts waiting behind the in-flight dispatch.
	QueueSize int
}

type Ports struct {
	Recognizer Recognizer
	Speaker    Speaker
	Notifier   Notifier
	Observer   Observer
}

// Session is safe for concurrent use. Dispatch cycles run one at a time on
// the goroutine calling Run, in the order transcripts were submitted.
type Session struct {
	cfg      Config
	matcher  Matcher
	delegate Delegate
	ports    Ports
	logger   *slog.Logger

	lifecycle sync.Mutex
	listening atomic.Bool

	queue chan string
}

func New(cfg Config, matcher Matcher, del Delegate, ports Ports, logger *slog.Logger) *Session {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if ports.Speaker == nil {
		ports.Speaker = silentSpeaker{}
	}
	if ports.Notifier == nil {
		ports.Notifier = NoopNotifier{}
	}
	if ports.Observer == nil {
		ports.Observer = noopObserver{}
	}
	return &Session{
		cfg:      cfg,
		matcher:  matcher,
		delegate: del,
		ports:    ports,
		logger:   logger,
		queue:    make(chan string, cfg.QueueSize),
	}
}

// Start begins listening. It is a no-op when already listening. ctx bounds
// the recognizer's lifetime, not just the call.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.listening.Load() {
		return nil
	}
	if s.ports.Recognizer == nil {
		s.notify(ctx, "Speech recognition is not available.")
		return ErrRecognitionUnavailable
	}

	if r, ok := s.delegate.(interface{ Reset() }); ok {
		r.Reset()
	}

	// Recognizers may emit before Start returns.
	s.listening.Store(true)
	if err := s.ports.Recognizer.Start(ctx, s.onResult); err != nil {
		s.listening.Store(false)
		s.notify(ctx, "Speech recognition is not available.")
		return fmt.Errorf("start recognizer: %w", err)
	}

	s.ports.Observer.SetListening(true)
	s.logger.Info("listening")
	s.notify(ctx, "Voice chat started. Speak now...")
	return nil
}

// Stop halts the recognizer. Queued and in-flight dispatches still finish.
func (s *Session) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.listening.Load() {
		return nil
	}

	s.listening.Store(false)
	s.ports.Observer.SetListening(false)

	err := s.ports.Recognizer.Stop()
	if err != nil {
		s.logger.Warn("recognizer stop failed", "err", err)
	}
	s.logger.Info("stopped listening")
	s.notify(context.Background(), "Voice chat stopped.")
	return err
}

func (s *Session) State() State {
	if s.listening.Load() {
		return StateListening
	}
	return StateIdle
}

func (s *Session) Commands() []command.Listing {
	return s.matcher.List()
}

func (s *Session) onResult(r recognition.Result) {
	if !r.Final {
		s.logger.Debug("interim transcript", "text", r.Text)
		return
	}
	if err := s.Submit(r.Text); err != nil {
		s.logger.Warn("transcript dropped", "text", r.Text, "err", err)
	}
}

// Submit queues a finalized transcript for dispatch.
func (s *Session) Submit(transcript string) error {
	if !s.listening.Load() {
		return ErrNotListening
	}
	if normalize(transcript) == "" {
		return nil
	}

	select {
	case s.queue <- transcript:
		return nil
	default:
		s.ports.Observer.TranscriptDropped()
		return ErrQueueFull
	}
}

// Run drains the dispatch queue until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-s.queue:
			s.Dispatch(ctx, t)
		}
	}
}

// Dispatch runs one full cycle for a transcript and returns its outcome.
func (s *Session) Dispatch(ctx context.Context, transcript string) Outcome {
	start := time.Now()
	text := normalize(transcript)

	s.logger.Info("transcript", "text", text)
	s.notify(ctx, "You said: "+text)

	out := s.decide(ctx, text)

	if out.Text != "" {
		if err := s.ports.Speaker.Speak(ctx, out.Text); err != nil {
			s.logger.Warn("speak failed", "err", err)
		}
	}
	if out.Kind == OutcomeAIResponse {
		s.notify(ctx, "AI: "+out.Text)
	}

	elapsed := time.Since(start)
	s.ports.Observer.ObserveDispatch(out, elapsed)
	s.logger.Info("dispatched",
		"outcome", out.Kind,
		"command", out.Command,
		"failed", out.Failed(),
		"elapsed", elapsed,
	)
	return out
}

func (s *Session) decide(ctx context.Context, text string) Outcome {
	if m, ok := s.matcher.Match(text); ok {
		out := Outcome{Kind: OutcomeCommandExecuted, Transcript: text, Command: m.Command.Name}
		reply, err := runAction(ctx, m)
		if err != nil {
			s.logger.Error("command failed", "command", m.Command.Name, "err", err)
			out.Err = err
			out.Text = "I had trouble executing that command. " + err.Error()
			return out
		}
		out.Text = reply
		return out
	}

	out := Outcome{Kind: OutcomeAIResponse, Transcript: text}
	if !s.delegate.Available(ctx) {
		s.logger.Debug("delegate unavailable, using fallback")
		out.Text = delegate.Fallback(text)
		return out
	}
	out.Text = s.delegate.Respond(ctx, text)
	return out
}

func runAction(ctx context.Context, m command.Match) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.Command.Action(ctx, m)
}

func (s *Session) notify(ctx context.Context, text string) {
	if err := s.ports.Notifier.Notify(ctx, text); err != nil {
		s.logger.Warn("notify failed", "err", err)
	}
}

// normalize folds to NFC and collapses whitespace; browser recognizers
// often prefix continuous results with a space.
func normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
