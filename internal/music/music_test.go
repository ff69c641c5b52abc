package music

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoice struct{ said []string }

func (v *fakeVoice) Speak(text string) { v.said = append(v.said, text) }

type fakeResolver struct {
	track   Track
	err     error
	queries []string
}

func (r *fakeResolver) Resolve(_ context.Context, q string) (Track, error) {
	r.queries = append(r.queries, q)
	return r.track, r.err
}

type fakePlayer struct {
	playing bool
	played  []Track
	stops   int
	playErr error
}

func (p *fakePlayer) Play(_ context.Context, t Track) error {
	if p.playErr != nil {
		return p.playErr
	}
	p.played = append(p.played, t)
	p.playing = true
	return nil
}

func (p *fakePlayer) Stop() error {
	p.stops++
	p.playing = false
	return nil
}

func (p *fakePlayer) Playing() bool { return p.playing }

func TestPlay_Success(t *testing.T) {
	res := &fakeResolver{track: Track{Title: "Bohemian Rhapsody", StreamURL: "https://cdn/x"}}
	player := &fakePlayer{}
	voice := &fakeVoice{}

	NewService(res, player, voice).Play(context.Background(), "queen bohemian rhapsody")

	assert.Equal(t, []string{"queen bohemian rhapsody"}, res.queries)
	require.Len(t, player.played, 1)
	assert.Equal(t, "https://cdn/x", player.played[0].StreamURL)
	assert.Equal(t, []string{
		"Searching for queen bohemian rhapsody on YouTube.",
		"Playing Bohemian Rhapsody.",
	}, voice.said)
}

func TestPlay_EmptyQueryAsksForClarification(t *testing.T) {
	res := &fakeResolver{}
	voice := &fakeVoice{}

	NewService(res, &fakePlayer{}, voice).Play(context.Background(), "")

	assert.Empty(t, res.queries)
	assert.Equal(t, []string{"Please specify the audio required for playback."}, voice.said)
}

func TestPlay_StopsCurrentTrackFirst(t *testing.T) {
	player := &fakePlayer{playing: true}
	res := &fakeResolver{track: Track{Title: "next", StreamURL: "u"}}

	NewService(res, player, &fakeVoice{}).Play(context.Background(), "next")

	assert.Equal(t, 1, player.stops)
	assert.Len(t, player.played, 1)
}

func TestPlay_Failures(t *testing.T) {
	tests := []struct {
		name    string
		resErr  error
		playErr error
		want    string
	}{
		{"no results", ErrNoResults, nil,
			"Sorry, I could not find any song matching lofi on YouTube or the search yielded no valid results."},
		{"no stream", ErrNoStream, nil,
			"Could not find a direct streamable link for lofi. The video might be geo-restricted or unavailable for direct streaming."},
		{"resolver broken", errors.New("exec: yt-dlp not found"), nil,
			"An error occurred during music playback. Kindly verify your internet connection or select an alternative track."},
		{"player broken", nil, errors.New("ffmpeg exited"),
			"An error occurred during music playback. Kindly verify your internet connection or select an alternative track."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			voice := &fakeVoice{}
			res := &fakeResolver{track: Track{Title: "t", StreamURL: "u"}, err: tt.resErr}

			NewService(res, &fakePlayer{playErr: tt.playErr}, voice).Play(context.Background(), "lofi")

			require.Len(t, voice.said, 2)
			assert.Equal(t, tt.want, voice.said[1])
		})
	}
}

func TestPlay_NilPlayer(t *testing.T) {
	voice := &fakeVoice{}

	NewService(&fakeResolver{}, nil, voice).Play(context.Background(), "anything")

	assert.Equal(t, []string{"Music player not initialized. Cannot play music."}, voice.said)
}

func TestStop_Idempotent(t *testing.T) {
	player := &fakePlayer{}
	voice := &fakeVoice{}
	svc := NewService(&fakeResolver{}, player, voice)

	svc.Stop(context.Background())
	svc.Stop(context.Background())

	assert.Equal(t, 0, player.stops)
	assert.Equal(t, []string{"No audio is currently active.", "No audio is currently active."}, voice.said)
}

func TestStop_WhilePlaying(t *testing.T) {
	player := &fakePlayer{playing: true}
	voice := &fakeVoice{}
	svc := NewService(&fakeResolver{}, player, voice)

	svc.Stop(context.Background())
	svc.Stop(context.Background())

	assert.Equal(t, 1, player.stops)
	assert.Equal(t, []string{"Music playback terminated.", "No audio is currently active."}, voice.said)
}

func TestParseSearch(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    Track
		wantErr error
	}{
		{
			name: "first entry",
			out:  `{"_type":"playlist","entries":[{"title":"Song","url":"https://rr1/a"},{"title":"Other","url":"b"}]}`,
			want: Track{Title: "Song", StreamURL: "https://rr1/a"},
		},
		{
			name:    "no entries",
			out:     `{"_type":"playlist","entries":[]}`,
			wantErr: ErrNoResults,
		},
		{
			name:    "entry without url",
			out:     `{"entries":[{"title":"Locked"}]}`,
			want:    Track{Title: "Locked"},
			wantErr: ErrNoStream,
		},
		{
			name: "single video",
			out:  `{"title":"Direct","url":"https://rr1/d"}`,
			want: Track{Title: "Direct", StreamURL: "https://rr1/d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSearch([]byte(tt.out))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseSearch([]byte("ERROR: something"))
	assert.Error(t, err)
}
