package music

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
)

// YTDLP searches YouTube with the yt-dlp binary and picks the first hit's
// best audio format.
type YTDLP struct {
	Path string
}

func NewYTDLP(path string) *YTDLP {
	if path == "" {
		path = "yt-dlp"
	}
	return &YTDLP{Path: path}
}

func (y *YTDLP) Resolve(ctx context.Context, query string) (Track, error) {
	cmd := exec.CommandContext(ctx, y.Path,
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"-f", "bestaudio/best",
		"ytsearch1:"+query,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Track{}, fmt.Errorf("yt-dlp: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	return parseSearch(stdout.Bytes())
}

func parseSearch(out []byte) (Track, error) {
	if !gjson.ValidBytes(out) {
		return Track{}, fmt.Errorf("yt-dlp: unparsable output")
	}

	doc := gjson.ParseBytes(out)

	entry := doc
	if entries := doc.Get("entries"); entries.Exists() {
		if len(entries.Array()) == 0 {
			return Track{}, ErrNoResults
		}
		entry = entries.Get("0")
	}

	t := Track{
		Title:     entry.Get("title").String(),
		StreamURL: entry.Get("url").String(),
	}
	if t.StreamURL == "" {
		return t, ErrNoStream
	}

	return t, nil
}
