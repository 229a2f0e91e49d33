package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           int
	NatsURL        string
	NatsToken      string
	DatabaseURL    string
	LogLevel       string
	SlackBotToken  string
	SlackChannel   string
	APIToken       string
	PollInterval   time.Duration
	PreviewChars   int
	TranscriptRoot string
	CheckpointPath string
	WatchesFile    string
	Notify         bool
	ToolMatching   string
}

func Load() Config {
	return Config{
		Port:           envInt("SCRIBE_PORT", 8760),
		NatsURL:        envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:      envStr("NATS_TOKEN", ""),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		SlackBotToken:  envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:   envStr("SLACK_ACTIVITY_CHANNEL", ""),
		APIToken:       envStr("SCRIBE_API_TOKEN", ""),
		PollInterval:   time.Duration(envInt("SCRIBE_POLL_INTERVAL_MS", 500)) * time.Millisecond,
		PreviewChars:   envInt("SCRIBE_PREVIEW_CHARS", 500),
		TranscriptRoot: envStr("SCRIBE_TRANSCRIPT_ROOT", ""),
		CheckpointPath: envStr("SCRIBE_CHECKPOINT_PATH", "~/.scribe/checkpoints.json"),
		WatchesFile:    envStr("SCRIBE_WATCHES_FILE", ""),
		Notify:         envBool("SCRIBE_NOTIFY", false),
		ToolMatching:   envStr("SCRIBE_TOOL_MATCHING", "fifo"),
	}
}

// Watch is one entry of the boot-time watches file.
type Watch struct {
	Path       string `yaml:"path"`
	Resume     bool   `yaml:"resume"`
	FromOffset int64  `yaml:"from_offset"`
	Slack      bool   `yaml:"slack"`
}

type watchesFile struct {
	Watches []Watch `yaml:"watches"`
}

// LoadWatches parses the YAML watches file at path.
func LoadWatches(path string) ([]Watch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watches file: %w", err)
	}

	var f watchesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse watches file: %w", err)
	}

	for i, w := range f.Watches {
		if strings.TrimSpace(w.Path) == "" {
			return nil, fmt.Errorf("watches[%d]: path is required", i)
		}
		if w.FromOffset < 0 {
			return nil, fmt.Errorf("watches[%d]: from_offset must not be negative", i)
		}
	}
	return f.Watches, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
