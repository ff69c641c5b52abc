package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoice struct{ said []string }

func (v *fakeVoice) Speak(text string) { v.said = append(v.said, text) }

func articles(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"title":"headline %d","url":"https://example.com/%d"}`, i+1, i+1)
	}
	return `{"totalArticles":` + fmt.Sprint(n) + `,"articles":[` + strings.Join(items, ",") + `]}`
}

func newService(t *testing.T, status int, body string, seen *url.Values) (*Service, *fakeVoice) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/top-headlines", r.URL.Path)
		if seen != nil {
			*seen = r.URL.Query()
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	voice := &fakeVoice{}
	return NewService(Config{APIKey: "secret", BaseURL: srv.URL}, voice), voice
}

func TestFetch_InternationalNews(t *testing.T) {
	var q url.Values
	svc, voice := newService(t, http.StatusOK, articles(8), &q)

	svc.Fetch(context.Background(), Query{Topic: "breaking"})

	assert.Equal(t, "breaking", q.Get("topic"))
	assert.Empty(t, q.Get("country"))
	assert.Equal(t, "en", q.Get("lang"))
	assert.Equal(t, "secret", q.Get("token"))

	assert.Equal(t, []string{
		"Fetching top breaking headlines.",
		"Presenting the top headlines.",
		"headline 1", "headline 2", "headline 3", "headline 4", "headline 5",
	}, voice.said)
}

func TestFetch_CountryNews(t *testing.T) {
	var q url.Values
	svc, voice := newService(t, http.StatusOK, articles(2), &q)

	svc.Fetch(context.Background(), Query{Country: "in"})

	assert.Equal(t, "in", q.Get("country"))
	assert.Empty(t, q.Get("topic"))
	assert.Equal(t, "Fetching top headlines from IN.", voice.said[0])
	assert.Equal(t, []string{"headline 1", "headline 2"}, voice.said[2:])
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"non 2xx", http.StatusUnauthorized, `{"errors":["bad token"]}`,
			"Unable to access news feeds due to network issues or an API error. Verify internet connection or API key."},
		{"malformed", http.StatusOK, `{"articles": [`,
			"An unexpected anomaly occurred during news fetching."},
		{"articles not a list", http.StatusOK, `{"articles": "nope"}`,
			"An unexpected anomaly occurred during news fetching."},
		{"empty", http.StatusOK, `{"totalArticles":0,"articles":[]}`,
			"No relevant news articles found at the moment."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, voice := newService(t, tt.status, tt.body, nil)

			svc.Fetch(context.Background(), Query{Topic: "breaking"})

			require.Len(t, voice.said, 2)
			assert.Equal(t, tt.want, voice.said[1])
		})
	}
}

func TestFetch_NoQuery(t *testing.T) {
	voice := &fakeVoice{}
	svc := NewService(Config{BaseURL: "http://127.0.0.1:1"}, voice)

	svc.Fetch(context.Background(), Query{})

	assert.Equal(t, []string{"Error: No country or topic specified for news."}, voice.said)
}

func TestHeadlines_MissingTitle(t *testing.T) {
	svc, _ := newService(t, http.StatusOK, `{"articles":[{"url":"x"},{"title":"real"}]}`, nil)

	titles, err := svc.Headlines(context.Background(), Query{Country: "in"})
	require.NoError(t, err)
	assert.Equal(t, []string{"No title available", "real"}, titles)
}

func TestHeadlines_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	svc := NewService(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, &fakeVoice{})

	_, err := svc.Headlines(context.Background(), Query{Topic: "breaking"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(Config{}, &fakeVoice{})

	assert.Equal(t, DefaultBaseURL, svc.cfg.BaseURL)
	assert.Equal(t, 30*time.Second, svc.cfg.Timeout)
	assert.Equal(t, 5, svc.cfg.MaxHeadlines)
	assert.Equal(t, "en", svc.cfg.Lang)
}
