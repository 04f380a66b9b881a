// Package ipc is the daemon control socket: one JSON request and one JSON
// reply per connection.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"

	"voxcode/internal/command"
)

var ErrNotRunning = errors.New("voxcode-daemon not running")

const (
	CmdStart  = "start"
	CmdStop   = "stop"
	CmdStatus = "status"
	CmdList   = "list"
	CmdSay    = "say"
)

const ioTimeout = 30 * time.Second

type ControlMessage struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text,omitempty"`
}

type ControlReply struct {
	OK       bool              `json:"ok"`
	State    string            `json:"state,omitempty"`
	Commands []command.Listing `json:"commands,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func Fail(err error) ControlReply {
	return ControlReply{Error: err.Error()}
}

type Handler func(ctx context.Context, msg ControlMessage) ControlReply

// Serve accepts control connections on the unix socket at path until ctx is
// done. A stale socket file is replaced.
func Serve(ctx context.Context, path string, handler Handler) error {
	_ = os.Remove(path)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer os.Remove(path)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("control accept failed", "err", err)
			continue
		}
		go handleConn(ctx, conn, handler)
	}
}

func handleConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn("bad control message", "err", err)
		return
	}
	log.Debug("control", "cmd", msg.Cmd)

	reply := handler(ctx, msg)
	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		log.Warn("failed to write control reply", "err", err)
	}
}

// Send delivers msg to the daemon at path and returns its reply.
func Send(path string, msg ControlMessage) (ControlReply, error) {
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return ControlReply{}, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return ControlReply{}, fmt.Errorf("send: %w", err)
	}

	var reply ControlReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return ControlReply{}, fmt.Errorf("read reply: %w", err)
	}
	if !reply.OK && reply.Error != "" {
		return reply, errors.New(reply.Error)
	}
	return reply, nil
}
