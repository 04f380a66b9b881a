// Package protocol implements the daemon's link to the editor host: JSON
// frames over a websocket, with request/result correlation and redial.
package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDisconnected = errors.New("host link disconnected")
	ErrTimeout      = errors.New("host link call timed out")
)

type Config struct {
	URL string
	// Reconn is the pause between redial attempts.
	Reconn time.Duration
	// Timeout bounds Call. Zero means wait for ctx only.
	Timeout time.Duration
}

// Handler receives unsolicited frames. It runs on the read loop and must
// not block.
type Handler func(ctx context.Context, f *Frame)

type Protocol struct {
	ws  *WebSocket
	cfg Config

	handlersMu sync.RWMutex
	handlers   map[Command]Handler
	onReconn   func()

	waitersMu sync.Mutex
	waiters   map[string]chan *Frame
}

func NewProtocol(ctx context.Context, cfg Config) (*Protocol, error) {
	if cfg.Reconn <= 0 {
		cfg.Reconn = time.Second
	}

	ws, err := NewWebSocket(ctx, cfg.URL, cfg.Reconn)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	return &Protocol{
		ws:       ws,
		cfg:      cfg,
		handlers: make(map[Command]Handler),
		waiters:  make(map[string]chan *Frame),
	}, nil
}

// Handle routes frames with cmd to h, replacing any previous handler.
func (ptcl *Protocol) Handle(cmd Command, h Handler) {
	ptcl.handlersMu.Lock()
	defer ptcl.handlersMu.Unlock()
	if h == nil {
		delete(ptcl.handlers, cmd)
		return
	}
	ptcl.handlers[cmd] = h
}

// OnReconnect sets a hook run after every successful redial.
func (ptcl *Protocol) OnReconnect(fn func()) {
	ptcl.handlersMu.Lock()
	defer ptcl.handlersMu.Unlock()
	ptcl.onReconn = fn
}

func (ptcl *Protocol) Transmit(f *Frame) error {
	payload, err := f.Encode()
	if err != nil {
		return err
	}
	if err := ptcl.ws.Write(payload); err != nil {
		log.Warn("failed to transmit", "command", f.Command, "err", err)
		if errors.Is(err, ErrDisconnected) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// Call sends f with a fresh ID and waits for its result frame. A failed
// result is returned as *RemoteError together with the frame.
func (ptcl *Protocol) Call(ctx context.Context, f *Frame) (*Frame, error) {
	f.ID = uuid.NewString()

	w := ptcl.installWaiter(f.ID)
	defer ptcl.clearWaiter(f.ID)

	if err := ptcl.Transmit(f); err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if ptcl.cfg.Timeout > 0 {
		t := time.NewTimer(ptcl.cfg.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case resp, ok := <-w:
		if !ok {
			return nil, ErrDisconnected
		}
		return resp, resp.err(f.Command)
	case <-timeout:
		return nil, fmt.Errorf("%w: %s", ErrTimeout, f.Command)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run reads frames until ctx is done, redialing whenever the connection
// drops. Pending calls fail with ErrDisconnected on a drop.
func (ptcl *Protocol) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = ptcl.ws.Close()
	}()

	for {
		in := ptcl.ws.Read()
		switch in.kind {
		case IncomeClosed, IncomeFailure:
			if ctx.Err() != nil {
				ptcl.failWaiters()
				return ctx.Err()
			}
			if in.kind == IncomeClosed {
				log.Warn("host link closed, reconnecting", "url", ptcl.cfg.URL)
			} else {
				log.Error("failed to read", "err", in.err)
			}
			ptcl.failWaiters()

			if err := ptcl.ws.TryReconn(ctx); err != nil {
				return err
			}
			log.Info("reconnected", "url", ptcl.cfg.URL)

			ptcl.handlersMu.RLock()
			hook := ptcl.onReconn
			ptcl.handlersMu.RUnlock()
			if hook != nil {
				hook()
			}

		case IncomeOK:
			f, err := Parse(in.msg)
			if err != nil {
				log.Warn("failed to parse", "msg", string(in.msg), "err", err)
				continue
			}
			ptcl.route(ctx, f)
		}
	}
}

func (ptcl *Protocol) Close() error {
	ptcl.failWaiters()
	return ptcl.ws.Close()
}

func (ptcl *Protocol) route(ctx context.Context, f *Frame) {
	if f.Command == CmdResult {
		if w := ptcl.currentWaiter(f.ReplyTo); w != nil {
			w <- f
		} else {
			log.Debug("late result", "replyTo", f.ReplyTo)
		}
		return
	}

	ptcl.handlersMu.RLock()
	h := ptcl.handlers[f.Command]
	ptcl.handlersMu.RUnlock()

	if h == nil {
		log.Debug("unhandled frame", "command", f.Command)
		return
	}
	h(ctx, f)
}

func (ptcl *Protocol) installWaiter(id string) chan *Frame {
	ptcl.waitersMu.Lock()
	defer ptcl.waitersMu.Unlock()
	w := make(chan *Frame, 1)
	ptcl.waiters[id] = w
	return w
}

func (ptcl *Protocol) clearWaiter(id string) {
	ptcl.waitersMu.Lock()
	defer ptcl.waitersMu.Unlock()
	delete(ptcl.waiters, id)
}

// currentWaiter hands out the waiter at most once.
func (ptcl *Protocol) currentWaiter(id string) chan *Frame {
	ptcl.waitersMu.Lock()
	defer ptcl.waitersMu.Unlock()
	w := ptcl.waiters[id]
	delete(ptcl.waiters, id)
	return w
}

func (ptcl *Protocol) failWaiters() {
	ptcl.waitersMu.Lock()
	defer ptcl.waitersMu.Unlock()
	for id, w := range ptcl.waiters {
		close(w)
		delete(ptcl.waiters, id)
	}
}
