// Package recognition holds the speech-input side: recognition results and
// recognizers that run inside the daemon.
package recognition

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the environment has no speech recognition.
var ErrUnavailable = errors.New("speech recognition unavailable")

// Result is one recognition event. Only Final results are dispatched;
// interim results are for display.
type Result struct {
	Text  string
	Final bool
}

// Transcriber turns 16 kHz mono PCM into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm16k []float32) (string, error)
}
