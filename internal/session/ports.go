package session

import (
	"context"
	"time"

	"voxcode/internal/command"
	"voxcode/internal/recognition"
)

// Recognizer feeds recognition results while started.
type Recognizer interface {
	Start(ctx context.Context, emit func(recognition.Result)) error
	Stop() error
}

// Speaker vocalizes text. Delivery is fire-and-forget.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Notifier shows status and transcript lines to the user.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Matcher interface {
	Match(transcript string) (command.Match, bool)
	List() []command.Listing
}

// Delegate must never fail; Respond always returns something to say.
type Delegate interface {
	Available(ctx context.Context) bool
	Respond(ctx context.Context, query string) string
}

type Observer interface {
	ObserveDispatch(out Outcome, elapsed time.Duration)
	SetListening(listening bool)
	TranscriptDropped()
}

type OutcomeKind string

const (
	OutcomeCommandExecuted OutcomeKind = "command"
	OutcomeAIResponse      OutcomeKind = "ai"
)

// Outcome is the result of one dispatch cycle. Text is what was spoken.
// Err is set when a matched command's action failed.
type Outcome struct {
	Kind       OutcomeKind
	Transcript string
	Command    string
	Text       string
	Err        error
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string) error { return nil }

type silentSpeaker struct{}

func (silentSpeaker) Speak(context.Context, string) error { return nil }

type noopObserver struct{}

func (noopObserver) ObserveDispatch(Outcome, time.Duration) {}
func (noopObserver) SetListening(bool)                      {}
func (noopObserver) TranscriptDropped()                     {}
