package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"marco/internal/ipc"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: marco-ctl [--socket path] <command>

commands:
  listen         start one voice capture attempt
  say <text>     submit a typed command
  mode <mode>    switch input mode (text, voice)`)
}

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = usage
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0], Text: strings.Join(args[1:], " ")}
	switch msg.Cmd {
	case ipc.CmdListen, ipc.CmdSay, ipc.CmdMode:
	default:
		usage()
		os.Exit(2)
	}

	if err := ipc.Send(*socket, msg); err != nil {
		fmt.Fprintln(os.Stderr, "marco:", err)
		os.Exit(1)
	}
}
