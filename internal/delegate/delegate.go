// Package delegate forwards unmatched transcripts to a conversational backend.
package delegate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Backend is the external responder. Available is a cheap probe telling
// whether Query is worth attempting.
type Backend interface {
	Available(ctx context.Context) bool
	Query(ctx context.Context, text string) (string, error)
}

type Config struct {
	// Timeout bounds the probe and a single Query; zero leaves them unbounded.
	Timeout time.Duration
}

// Delegate never fails: any backend problem becomes a local fallback reply.
type Delegate struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger

	mu     sync.Mutex
	probed bool
	avail  bool
}

func New(backend Backend, cfg Config, logger *slog.Logger) *Delegate {
	return &Delegate{backend: backend, cfg: cfg, logger: logger}
}

// Available probes the backend once and remembers the answer until Reset.
func (d *Delegate) Available(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.probed {
		return d.avail
	}
	d.avail = d.probe(ctx)
	d.probed = true

	d.logger.Debug("delegate probed", "available", d.avail)
	return d.avail
}

func (d *Delegate) Reset() {
	d.mu.Lock()
	d.probed = false
	d.mu.Unlock()
}

func (d *Delegate) probe(ctx context.Context) bool {
	if d.backend == nil {
		return false
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.backend.Available(ctx)
}

func (d *Delegate) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, d.cfg.Timeout)
	}
	return ctx, func() {}
}

// Respond makes exactly one attempt; there are no retries.
func (d *Delegate) Respond(ctx context.Context, query string) string {
	if d.backend == nil {
		return Fallback(query)
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	reply, err := d.query(ctx, query)
	if err != nil {
		d.logger.Warn("delegate query failed, using fallback", "query", query, "err", err)
		return Fallback(query)
	}
	return reply
}

func (d *Delegate) query(ctx context.Context, query string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()

	reply, err = d.backend.Query(ctx, query)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("empty reply")
	}
	return reply, nil
}

func Fallback(query string) string {
	return fmt.Sprintf("I received your question about \"%s\". This is a fallback response as the AI assistant is not currently available.", query)
}

// Disabled is a backend that is never available.
type Disabled struct{}

func (Disabled) Available(context.Context) bool { return false }

func (Disabled) Query(context.Context, string) (string, error) {
	return "", errors.New("delegate disabled")
}
