// Package web opens pages in the user's default browser.
package web

import (
	"fmt"
	log "log/slog"

	"github.com/pkg/browser"
)

type Browser struct {
	open func(url string) error
}

func NewBrowser() *Browser {
	return &Browser{open: browser.OpenURL}
}

func (b *Browser) Open(url string) error {
	log.Debug("Opening browser", "url", url)
	if err := b.open(url); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}
