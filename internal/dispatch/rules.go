package dispatch

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"

	"marco/internal/news"
)

type Intent string

const (
	IntentShutdown     Intent = "shutdown"
	IntentOpenGoogle   Intent = "open_google"
	IntentOpenFacebook Intent = "open_facebook"
	IntentOpenYouTube  Intent = "open_youtube"
	IntentOpenLinkedIn Intent = "open_linkedin"
	IntentPlay         Intent = "play"
	IntentStopMusic    Intent = "stop_music"
	IntentNews         Intent = "news"
	IntentExit         Intent = "exit"
	IntentChat         Intent = "chat"
)

type site struct {
	intent Intent
	phrase string
	name   string
	url    string
}

var sites = []site{
	{IntentOpenGoogle, "open google", "Google", "https://www.google.com"},
	{IntentOpenFacebook, "open facebook", "Facebook", "https://www.facebook.com"},
	{IntentOpenYouTube, "open youtube", "YouTube", "https://www.youtube.com"},
	{IntentOpenLinkedIn, "open linkedin", "LinkedIn", "https://www.linkedin.com"},
}

func containsAny(text string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func contains(phrases ...string) func(string) bool {
	return func(text string) bool { return containsAny(text, phrases...) }
}

type predicate struct {
	intent Intent
	match  func(string) bool
}

// order is the matching priority, top to bottom.
var order = func() []predicate {
	out := []predicate{{IntentShutdown, contains("marco stop")}}
	for _, s := range sites {
		out = append(out, predicate{s.intent, contains(s.phrase)})
	}
	return append(out,
		predicate{IntentPlay, func(text string) bool { return strings.HasPrefix(text, "play") }},
		predicate{IntentStopMusic, contains("stop music", "stop song")},
		predicate{IntentNews, contains("news")},
		predicate{IntentExit, contains("exit", "quit", "goodbye")},
		predicate{IntentChat, func(string) bool { return true }},
	)
}()

// Route reports which intent a command would be dispatched to, without
// running anything.
func Route(command string) Intent {
	text := strings.ToLower(strings.TrimSpace(command))
	for _, p := range order {
		if p.match(text) {
			return p.intent
		}
	}
	return IntentChat
}

// PlayQuery strips the leading "play" and the whitespace around the rest.
func PlayQuery(text string) string {
	return strings.TrimSpace(strings.TrimPrefix(text, "play"))
}

// Rules pairs every predicate in priority order with its action.
func Rules(h Handlers) []Rule {
	actions := map[Intent]func(context.Context, Input) Result{
		IntentShutdown: func(ctx context.Context, _ Input) Result {
			h.Music.Stop(ctx)
			return Terminate()
		},
		IntentPlay: func(ctx context.Context, in Input) Result {
			h.Music.Play(ctx, PlayQuery(in.Text))
			return Continue("Searching for and playing music.")
		},
		IntentStopMusic: func(ctx context.Context, _ Input) Result {
			h.Music.Stop(ctx)
			return Continue("Music control command processed.")
		},
		IntentNews: func(ctx context.Context, in Input) Result {
			return handleNews(ctx, h, in.Text)
		},
		IntentExit: func(ctx context.Context, _ Input) Result {
			h.Music.Stop(ctx)
			return Terminate()
		},
		IntentChat: func(ctx context.Context, in Input) Result {
			h.Chat.Respond(ctx, in.Raw)
			return Continue("LLM processed your request.")
		},
	}
	for _, s := range sites {
		actions[s.intent] = openSite(h, s)
	}

	rules := make([]Rule, 0, len(order))
	for _, p := range order {
		rules = append(rules, Rule{Intent: p.intent, Match: p.match, Handle: actions[p.intent]})
	}
	return rules
}

func openSite(h Handlers, s site) func(context.Context, Input) Result {
	return func(context.Context, Input) Result {
		if err := h.Browser.Open(s.url); err != nil {
			log.Error("Failed to open browser", "url", s.url, "err", err)
			h.Voice.Speak(fmt.Sprintf("I could not open %s.", s.name))
			return Continue(fmt.Sprintf("Failed to open %s.", s.name))
		}
		h.Voice.Speak(fmt.Sprintf("Opening %s.", s.name))
		return Continue(fmt.Sprintf("Opened %s.", s.name))
	}
}

func handleNews(ctx context.Context, h Handlers, text string) Result {
	switch {
	case containsAny(text, "indian news", "india news"):
		h.News.Fetch(ctx, news.Query{Country: "in"})
		return Continue("Fetching Indian news.")
	case containsAny(text, "international news", "global news"):
		h.News.Fetch(ctx, news.Query{Topic: "breaking"})
		return Continue("Fetching international news.")
	default:
		h.Voice.Speak("Specify desired news. Options are: 'Indian news' or 'International news'.")
		return Continue("Clarification needed for news.")
	}
}
