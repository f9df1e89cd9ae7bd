package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultGlamourStyle = "dark"
	DefaultBaseURL      = "http://localhost:8000"
	DefaultUserID       = "user"
	DefaultStorageKey   = "metaGyankosh_chat_history"
	DefaultStorage      = "file"
)

type AppConfig struct {
	ConfigPath string

	BaseURL    string
	UserID     string
	Timeout    time.Duration
	Storage    string
	DataDir    string
	StorageKey string
	ExportDir  string
	LogPath    string
	Plain      bool

	// One-shot modes; the TUI runs when both are empty.
	Ask   string
	Clear bool
	Yes   bool
}

// StoragePath is the directory (file backend) or database file (sqlite)
// holding the chat history.
func (c AppConfig) StoragePath() string {
	if strings.EqualFold(c.Storage, "sqlite") {
		return filepath.Join(c.DataDir, "history.sqlite")
	}
	return c.DataDir
}

// fileConfig mirrors the TOML config file.
type fileConfig struct {
	BaseURL    string `toml:"base_url"`
	UserID     string `toml:"user_id"`
	Timeout    string `toml:"timeout"`
	Storage    string `toml:"storage"`
	DataDir    string `toml:"data_dir"`
	StorageKey string `toml:"storage_key"`
	ExportDir  string `toml:"export_dir"`
	LogFile    string `toml:"log_file"`
	Plain      bool   `toml:"plain"`
}

func Parse() (AppConfig, error) {
	return ParseArgs(os.Args[1:], os.Getenv, os.Stderr)
}

// ParseArgs resolves configuration with precedence flags > env > file > defaults.
func ParseArgs(args []string, getenv func(string) string, errOut io.Writer) (AppConfig, error) {
	cfg, err := defaults()
	if err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("gyankosh", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var flagCfg AppConfig
	fs.StringVar(&flagCfg.ConfigPath, "config", "", "path to config.toml")
	fs.StringVar(&flagCfg.BaseURL, "url", "", "question-answering endpoint base URL (default "+DefaultBaseURL+")")
	fs.StringVar(&flagCfg.UserID, "user", "", "user_id sent with each question")
	fs.DurationVar(&flagCfg.Timeout, "timeout", 0, "per-request timeout, 0 waits indefinitely")
	fs.StringVar(&flagCfg.Storage, "storage", "", "history backend: file, sqlite or memory")
	fs.StringVar(&flagCfg.DataDir, "data-dir", "", "directory holding chat history")
	fs.StringVar(&flagCfg.StorageKey, "storage-key", "", "key the history is stored under")
	fs.StringVar(&flagCfg.ExportDir, "export-dir", "", "directory for Markdown exports")
	fs.StringVar(&flagCfg.LogPath, "log-file", "", "path to the debug log")
	fs.BoolVar(&flagCfg.Plain, "plain", false, "show answers as plain text instead of rendered Markdown")
	fs.StringVar(&flagCfg.Ask, "ask", "", "ask one question, print the answer and exit")
	fs.BoolVar(&flagCfg.Clear, "clear", false, "clear chat history and exit")
	fs.BoolVar(&flagCfg.Yes, "yes", false, "do not prompt before clearing history")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg.ConfigPath = firstNonEmpty(flagCfg.ConfigPath, getenv("GYANKOSH_CONFIG"), cfg.ConfigPath)
	if err := applyFile(&cfg, cfg.ConfigPath, set["config"] || getenv("GYANKOSH_CONFIG") != ""); err != nil {
		return cfg, err
	}

	if v := getenv("GYANKOSH_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := getenv("GYANKOSH_USER"); v != "" {
		cfg.UserID = v
	}
	if v := getenv("GYANKOSH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if set["url"] {
		cfg.BaseURL = flagCfg.BaseURL
	}
	if set["user"] {
		cfg.UserID = flagCfg.UserID
	}
	if set["timeout"] {
		cfg.Timeout = flagCfg.Timeout
	}
	if set["storage"] {
		cfg.Storage = flagCfg.Storage
	}
	if set["data-dir"] {
		cfg.DataDir = flagCfg.DataDir
	}
	if set["storage-key"] {
		cfg.StorageKey = flagCfg.StorageKey
	}
	if set["export-dir"] {
		cfg.ExportDir = flagCfg.ExportDir
	}
	if set["log-file"] {
		cfg.LogPath = flagCfg.LogPath
	}
	if set["plain"] {
		cfg.Plain = flagCfg.Plain
	}
	cfg.Ask = strings.TrimSpace(flagCfg.Ask)
	cfg.Clear = flagCfg.Clear
	cfg.Yes = flagCfg.Yes

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	cfg.DataDir = filepath.Clean(cfg.DataDir)
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return cfg, fmt.Errorf("create log dir: %w", err)
	}
	return cfg, nil
}

func defaults() (AppConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return AppConfig{}, fmt.Errorf("resolve home directory: %w", err)
	}
	return AppConfig{
		ConfigPath: filepath.Join(home, ".config", "gyankosh", "config.toml"),
		BaseURL:    DefaultBaseURL,
		UserID:     DefaultUserID,
		Storage:    DefaultStorage,
		DataDir:    filepath.Join(home, ".local", "share", "gyankosh"),
		StorageKey: DefaultStorageKey,
		LogPath:    filepath.Join(home, ".local", "state", "gyankosh", "gyankosh.log"),
	}, nil
}

// applyFile merges the TOML file at path into cfg. A missing file is only an
// error when the user named it explicitly.
func applyFile(cfg *AppConfig, path string, required bool) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.BaseURL = firstNonEmpty(fc.BaseURL, cfg.BaseURL)
	cfg.UserID = firstNonEmpty(fc.UserID, cfg.UserID)
	cfg.Storage = firstNonEmpty(fc.Storage, cfg.Storage)
	cfg.DataDir = firstNonEmpty(expandHome(fc.DataDir), cfg.DataDir)
	cfg.StorageKey = firstNonEmpty(fc.StorageKey, cfg.StorageKey)
	cfg.ExportDir = firstNonEmpty(expandHome(fc.ExportDir), cfg.ExportDir)
	cfg.LogPath = firstNonEmpty(expandHome(fc.LogFile), cfg.LogPath)
	cfg.Plain = cfg.Plain || fc.Plain
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("config %s: timeout: %w", path, err)
		}
		cfg.Timeout = d
	}
	return nil
}

func (c AppConfig) validate() error {
	switch strings.ToLower(c.Storage) {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q (want file, sqlite or memory)", c.Storage)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base url %q must start with http:// or https://", c.BaseURL)
	}
	if strings.TrimSpace(c.StorageKey) == "" {
		return errors.New("storage key must not be empty")
	}
	if c.Ask != "" && c.Clear {
		return errors.New("-ask and -clear cannot be combined")
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
