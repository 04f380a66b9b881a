package protocol

import (
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

type WebSocket struct {
	mu     sync.Mutex
	conn   *ws.Conn
	url    string
	reconn time.Duration
}

func NewWebSocket(ctx context.Context, url string, reconn time.Duration) (*WebSocket, error) {
	log.Debug("init websocket", "url", url)

	web := &WebSocket{
		url:    url,
		reconn: reconn,
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	web.conn = conn

	return web, nil
}

func (web *WebSocket) Write(payload []byte) error {
	web.mu.Lock()
	defer web.mu.Unlock()

	if web.conn == nil {
		return ErrDisconnected
	}
	log.Debug("write ws", "msg", string(payload))
	return web.conn.WriteMessage(ws.TextMessage, payload)
}

type IncomeKind uint

const (
	IncomeClosed IncomeKind = iota
	IncomeFailure
	IncomeOK
)

type Income struct {
	kind IncomeKind
	msg  []byte
	err  error
}

// Read blocks for the next message. Only the Run loop calls it.
func (web *WebSocket) Read() Income {
	web.mu.Lock()
	conn := web.conn
	web.mu.Unlock()

	if conn == nil {
		return Income{kind: IncomeClosed, err: ErrDisconnected}
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		if WsIsClosed(err) {
			return Income{kind: IncomeClosed, err: err}
		}
		return Income{kind: IncomeFailure, err: err}
	}

	log.Debug("read ws", "msg", string(msg))
	return Income{kind: IncomeOK, msg: msg}
}

// TryReconn redials until it succeeds or ctx is done.
func (web *WebSocket) TryReconn(ctx context.Context) error {
	web.drop()

	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, web.url, nil)
		if err == nil {
			web.mu.Lock()
			web.conn = conn
			web.mu.Unlock()
			return nil
		}
		log.Debug("redial failed", "url", web.url, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(web.reconn):
		}
	}
}

func (web *WebSocket) Close() error {
	web.mu.Lock()
	defer web.mu.Unlock()

	if web.conn == nil {
		return nil
	}
	_ = web.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := web.conn.Close()
	web.conn = nil
	return err
}

func (web *WebSocket) drop() {
	web.mu.Lock()
	defer web.mu.Unlock()
	if web.conn != nil {
		_ = web.conn.Close()
		web.conn = nil
	}
}

func WsIsClosed(err error) bool {
	if errors.Is(err, ws.ErrCloseSent) {
		return true
	}
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
