package tts

import log "log/slog"

// Silent only logs what would have been said. Used with --mute and when
// espeak cannot start.
type Silent struct{}

func (Silent) Speak(text string) {
	log.Info("Marco", "says", text)
}
