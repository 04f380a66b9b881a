package ipc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voxcode/internal/command"
	"voxcode/internal/session"
)

// Controller is the session surface the control socket drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	Submit(transcript string) error
	State() session.State
	Commands() []command.Listing
}

// SessionHandler maps control messages onto c. ctx passed to the handler
// must outlive the request, since start hands it to the recognizer.
func SessionHandler(c Controller) Handler {
	return func(ctx context.Context, msg ControlMessage) ControlReply {
		var err error

		switch msg.Cmd {
		case CmdStart:
			err = c.Start(ctx)
		case CmdStop:
			err = c.Stop()
		case CmdStatus:
		case CmdList:
			return ControlReply{OK: true, State: string(c.State()), Commands: c.Commands()}
		case CmdSay:
			text := strings.TrimSpace(msg.Text)
			if text == "" {
				err = errors.New("say: empty text")
				break
			}
			err = c.Submit(text)
		default:
			err = fmt.Errorf("unknown command %q", msg.Cmd)
		}

		if err != nil {
			reply := Fail(err)
			reply.State = string(c.State())
			return reply
		}
		return ControlReply{OK: true, State: string(c.State())}
	}
}
