package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"voxcode/internal/command"
	"voxcode/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", "/tmp/voxcode.sock", "Daemon control socket")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: voxcode-ctl [-s socket] start|stop|status|list|say <text>")
		cli.PrintDefaults()
	}
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0]}
	if msg.Cmd == ipc.CmdSay {
		msg.Text = strings.Join(args[1:], " ")
	}

	reply, err := ipc.Send(*socket, msg)
	if errors.Is(err, ipc.ErrNotRunning) {
		fmt.Println("voxcode-daemon not running:", err)
		os.Exit(1)
	}
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}

	if msg.Cmd == ipc.CmdList {
		fmt.Println(command.FormatListing(reply.Commands))
		return
	}
	fmt.Println(reply.State)
}
