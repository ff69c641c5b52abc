package news

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://gnews.io/api/v4"

var (
	ErrUnavailable = errors.New("news: service unavailable")
	ErrMalformed   = errors.New("news: malformed payload")
	ErrNoQuery     = errors.New("news: no country or topic")
)

// Query selects headlines either by country code or by topic. Country wins
// when both are set.
type Query struct {
	Country string
	Topic   string
}

type Voice interface {
	Speak(text string)
}

type Config struct {
	APIKey       string
	BaseURL      string
	Lang         string
	Timeout      time.Duration
	MaxHeadlines int
	HTTP         *http.Client
}

type Service struct {
	cfg   Config
	http  *http.Client
	voice Voice
}

func NewService(cfg Config, voice Voice) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxHeadlines <= 0 {
		cfg.MaxHeadlines = 5
	}

	client := cfg.HTTP
	if client == nil {
		client = &http.Client{}
	}

	return &Service{cfg: cfg, http: client, voice: voice}
}

// Fetch announces, downloads and reads out the headlines for q. Failures are
// spoken, never returned.
func (s *Service) Fetch(ctx context.Context, q Query) {
	switch {
	case q.Country != "":
		s.voice.Speak(fmt.Sprintf("Fetching top headlines from %s.", strings.ToUpper(q.Country)))
	case q.Topic != "":
		s.voice.Speak(fmt.Sprintf("Fetching top %s headlines.", q.Topic))
	default:
		s.voice.Speak("Error: No country or topic specified for news.")
		return
	}

	titles, err := s.Headlines(ctx, q)
	switch {
	case errors.Is(err, ErrUnavailable):
		log.Error("News API error", "err", err)
		s.voice.Speak("Unable to access news feeds due to network issues or an API error. Verify internet connection or API key.")
		return
	case err != nil:
		log.Error("General news error", "err", err)
		s.voice.Speak("An unexpected anomaly occurred during news fetching.")
		return
	}

	if len(titles) == 0 {
		s.voice.Speak("No relevant news articles found at the moment.")
		return
	}

	s.voice.Speak("Presenting the top headlines.")
	for i, title := range titles {
		log.Info("Headline", "n", i+1, "title", title)
		s.voice.Speak(title)
	}
}

// Headlines returns up to MaxHeadlines titles in the order the service sent
// them.
func (s *Service) Headlines(ctx context.Context, q Query) ([]string, error) {
	params := url.Values{}
	params.Set("lang", s.cfg.Lang)
	switch {
	case q.Country != "":
		params.Set("country", q.Country)
	case q.Topic != "":
		params.Set("topic", q.Topic)
	default:
		return nil, ErrNoQuery
	}
	params.Set("token", s.cfg.APIKey)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/top-headlines?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	if !gjson.ValidBytes(body) {
		return nil, ErrMalformed
	}

	articles := gjson.GetBytes(body, "articles")
	if articles.Exists() && !articles.IsArray() {
		return nil, fmt.Errorf("%w: articles is %s", ErrMalformed, articles.Type)
	}

	var titles []string
	for _, a := range articles.Array() {
		if len(titles) == s.cfg.MaxHeadlines {
			break
		}
		title := a.Get("title").String()
		if title == "" {
			title = "No title available"
		}
		titles = append(titles, title)
	}

	return titles, nil
}
