package app

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"teambond/internal/relay"
	"teambond/internal/transport"
)

// ConfigFile is the default config file name inside Home.
const ConfigFile = "config.toml"

// Defaults.
const (
	DefaultAPIBase     = "http://localhost:8080"
	DefaultWSPath      = "/api/v1/chat/websocket"
	DefaultHTTPTimeout = 15 * time.Second
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "auto"
)

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses s with time.ParseDuration.
func (d *Duration) UnmarshalText(s []byte) error {
	v, err := time.ParseDuration(string(s))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds runtime wiring options for building the app.
type Config struct {
	Home string `toml:"-"` // config directory, e.g. $HOME/.teambond

	APIBase      string `toml:"api_base"`      // e.g. http://localhost:8080
	UsersPath    string `toml:"users_path"`    // relative to APIBase
	ChatPath     string `toml:"chat_path"`     // relative to APIBase
	WebSocketURL string `toml:"websocket_url"` // empty derives from APIBase

	TopicPrefix    string   `toml:"topic_prefix"`
	PublishPrefix  string   `toml:"publish_prefix"`
	ReconnectDelay Duration `toml:"reconnect_delay"`
	HeartBeat      Duration `toml:"heartbeat"`
	HTTPTimeout    Duration `toml:"http_timeout"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // auto, console or json

	HTTP *http.Client `toml:"-"` // optional; built from HTTPTimeout when nil
}

// DefaultConfig returns the built-in settings rooted at home.
func DefaultConfig(home string) Config {
	return Config{
		Home:           home,
		APIBase:        DefaultAPIBase,
		UsersPath:      relay.DefaultUsersPath,
		ChatPath:       relay.DefaultChatPath,
		TopicPrefix:    transport.DefaultTopicPrefix,
		PublishPrefix:  transport.DefaultPublishPrefix,
		ReconnectDelay: Duration{transport.DefaultReconnectDelay},
		HeartBeat:      Duration{transport.DefaultHeartBeat},
		HTTPTimeout:    Duration{DefaultHTTPTimeout},
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}
}

// DefaultHome returns $HOME/.teambond.
func DefaultHome() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".teambond"), nil
}

// LoadConfig decodes path over base. A missing file leaves base unchanged.
// Unknown keys are rejected so typos do not go unnoticed.
func LoadConfig(path string, base Config) (Config, error) {
	cfg := base
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return base, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base %q must be an http(s) URL", c.APIBase)
	}
	if c.WebSocketURL != "" {
		w, err := url.Parse(c.WebSocketURL)
		if err != nil || (w.Scheme != "ws" && w.Scheme != "wss") {
			return fmt.Errorf("websocket_url %q must be a ws(s) URL", c.WebSocketURL)
		}
	}
	if c.Home == "" {
		return errors.New("home directory is not set")
	}
	return nil
}

// WebSocket returns the realtime endpoint, deriving it from APIBase when
// WebSocketURL is empty.
func (c Config) WebSocket() string {
	if c.WebSocketURL != "" {
		return c.WebSocketURL
	}
	base := strings.TrimRight(c.APIBase, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + DefaultWSPath
}

func (c Config) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: c.HTTPTimeout.Duration}
}
