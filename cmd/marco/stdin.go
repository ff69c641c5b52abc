package main

import (
	"bufio"
	"context"
	"io"
	log "log/slog"
	"strings"

	"marco/internal/session"
)

// readStdin treats each line as a typed command. Lines starting with a slash
// drive the controls instead: /text, /voice and /listen.
func readStdin(ctx context.Context, r io.Reader, in *session.Input) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(sc.Text())
		switch line {
		case "/text":
			in.SetMode(session.ModeText)
		case "/voice":
			in.SetMode(session.ModeVoice)
		case "/listen":
			in.Listen(ctx)
		default:
			in.Text(line, "stdin")
		}
	}
	if err := sc.Err(); err != nil {
		log.Warn("Stopped reading standard input", "err", err)
	}
}
