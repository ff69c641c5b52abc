// Package config gathers flags, the .env file and environment variables
// into one Config.
package config

import (
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"marco/internal/ipc"
	"marco/internal/llm"
	"marco/internal/news"
)

var LogLevels = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

type Config struct {
	EnvFile  string
	LogLevel log.Level

	Proxy     string
	Mode      string
	HandsFree bool
	Socket    string
	BusURL    string

	WakeWord     string
	WhisperModel string
	Lang         string
	Replay       string
	Chime        string
	Mute         bool
	Duck         bool

	LLM  llm.Config
	News news.Config

	PollInterval time.Duration
	WaitTimeout  time.Duration
}

// Load parses args (without the program name). Values from the env file never
// override variables already set in the environment.
func Load(args []string) (Config, error) {
	fs := cli.NewFlagSet("marco", cli.ContinueOnError)

	var (
		c        Config
		logLevel string
	)
	fs.StringVarP(&c.EnvFile, "env", "e", ".env", "Env file path")
	fs.StringVarP(&logLevel, "log", "l", "info", "Log level (debug, info, warn, error)")
	fs.StringVarP(&c.Proxy, "proxy", "p", "", "SOCKS5 proxy address for outbound HTTP")
	fs.StringVarP(&c.Mode, "mode", "m", "text", "Initial input mode (text, voice)")
	fs.BoolVar(&c.HandsFree, "hands-free", false, "Keep listening for the wake word while in voice mode")
	fs.StringVar(&c.Socket, "socket", ipc.DefaultSocketPath, "Control socket path")
	fs.StringVar(&c.BusURL, "bus", "", "Websocket bus URL (disabled when empty)")
	fs.StringVar(&c.WakeWord, "wake", "marco", "Activation word")
	fs.StringVar(&c.WhisperModel, "whisper-model", "models/ggml-base.en.bin", "Whisper model path")
	fs.StringVar(&c.Lang, "lang", "en", "Speech language")
	fs.StringVar(&c.Replay, "replay", "", "Directory of recordings to use instead of the microphone")
	fs.StringVar(&c.Chime, "chime", "", "Activation chime (mp3); a tone when empty")
	fs.BoolVar(&c.Mute, "mute", false, "Log replies instead of speaking them")
	fs.BoolVar(&c.Duck, "duck", true, "Lower other audio while listening")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	level, ok := LogLevels[logLevel]
	if !ok {
		return Config{}, fmt.Errorf("unknown log level %q", logLevel)
	}
	c.LogLevel = level

	if err := godotenv.Load(c.EnvFile); err != nil {
		// only an explicitly requested file has to exist
		if fs.Changed("env") || !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	c.LLM = llm.Config{
		APIKey:  first(os.Getenv("MARCO_LLM_API_KEY"), os.Getenv("GEMINI_API_KEY")),
		BaseURL: first(os.Getenv("MARCO_LLM_BASE_URL"), llm.DefaultBaseURL),
		Model:   first(os.Getenv("MARCO_LLM_MODEL"), llm.DefaultModel),
	}
	c.News = news.Config{
		APIKey:  os.Getenv("GNEWS_API_KEY"),
		BaseURL: first(os.Getenv("MARCO_NEWS_URL"), news.DefaultBaseURL),
	}

	var err error
	if c.PollInterval, err = millis("MARCO_POLL_MS", 100); err != nil {
		return Config{}, err
	}
	if c.WaitTimeout, err = millis("MARCO_WAIT_MS", 1000); err != nil {
		return Config{}, err
	}

	return c, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func millis(key string, def int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Millisecond, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: want a positive number of milliseconds, got %q", key, v)
	}
	return time.Duration(n) * time.Millisecond, nil
}
