package music

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
)

var (
	ErrPlayerUninitialized = errors.New("music: player not initialized")
	ErrNoResults           = errors.New("music: no results")
	ErrNoStream            = errors.New("music: no streamable source")
)

type Track struct {
	Title     string
	StreamURL string
}

// Resolver turns a free-text query into something playable.
type Resolver interface {
	Resolve(ctx context.Context, query string) (Track, error)
}

type Player interface {
	Play(ctx context.Context, t Track) error
	Stop() error
	Playing() bool
}

type Voice interface {
	Speak(text string)
}

type Service struct {
	resolver Resolver
	player   Player
	voice    Voice
}

// NewService accepts a nil player; every request then reports the player as
// uninitialized.
func NewService(resolver Resolver, player Player, voice Voice) *Service {
	return &Service{resolver: resolver, player: player, voice: voice}
}

func (s *Service) Play(ctx context.Context, query string) {
	if s.player == nil {
		log.Warn("Playback requested without a player", "err", ErrPlayerUninitialized)
		s.voice.Speak("Music player not initialized. Cannot play music.")
		return
	}

	if query == "" {
		s.voice.Speak("Please specify the audio required for playback.")
		return
	}

	s.voice.Speak(fmt.Sprintf("Searching for %s on YouTube.", query))

	track, err := s.resolver.Resolve(ctx, query)
	switch {
	case errors.Is(err, ErrNoResults):
		s.voice.Speak(fmt.Sprintf("Sorry, I could not find any song matching %s on YouTube or the search yielded no valid results.", query))
		return
	case errors.Is(err, ErrNoStream):
		s.voice.Speak(fmt.Sprintf("Could not find a direct streamable link for %s. The video might be geo-restricted or unavailable for direct streaming.", query))
		return
	case err != nil:
		s.fail(err)
		return
	}

	if s.player.Playing() {
		if err := s.player.Stop(); err != nil {
			log.Warn("Failed to stop previous track", "err", err)
		}
	}

	if err := s.player.Play(ctx, track); err != nil {
		s.fail(err)
		return
	}

	title := track.Title
	if title == "" {
		title = query
	}
	log.Info("Playing", "title", title)
	s.voice.Speak(fmt.Sprintf("Playing %s.", title))
}

// Stop is safe to call at any time; with nothing playing it only says so.
func (s *Service) Stop(_ context.Context) {
	if s.player == nil || !s.player.Playing() {
		s.voice.Speak("No audio is currently active.")
		return
	}

	if err := s.player.Stop(); err != nil {
		log.Error("Failed to stop playback", "err", err)
	}
	s.voice.Speak("Music playback terminated.")
}

func (s *Service) fail(err error) {
	log.Error("Music playback error", "err", err)
	s.voice.Speak("An error occurred during music playback. Kindly verify your internet connection or select an alternative track.")
}
