package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the config file nor the environment sets a value
const (
	DefaultSinceMarginDays        = 365
	DefaultBranch                 = "main"
	DefaultScanRepoLimit          = 5
	DefaultScanCommitLimit        = 10
	DefaultWorkers                = 4
	DefaultRequestTimeoutSeconds  = 30
	DefaultMappingPath            = "project_repo_map.json"
	DefaultRESTPort               = "8080"
)

// JiraConfig holds issue tracker connection settings
type JiraConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	APIToken string `yaml:"api_token"`
}

// GitHubConfig holds repository host settings. When Token is empty and
// WorkspaceDir is set, the local workspace host is used instead of the API
type GitHubConfig struct {
	Token        string `yaml:"token"`
	WorkspaceDir string `yaml:"workspace_dir"`
}

// OpenAIConfig holds validation collaborator settings
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// TrackerConfig holds the correlation engine settings
type TrackerConfig struct {
	DefaultRepository     string            `yaml:"default_repository"`
	DefaultBranch         string            `yaml:"default_branch"`
	MappingPath           string            `yaml:"mapping_path"`
	UserMapping           map[string]string `yaml:"user_mapping"`
	SinceMarginDays       int               `yaml:"since_margin_days"`
	ScanRepoLimit         int               `yaml:"scan_repo_limit"`
	ScanCommitLimit       int               `yaml:"scan_commit_limit"`
	Workers               int               `yaml:"workers"`
	RequestTimeoutSeconds int               `yaml:"request_timeout_seconds"`
}

// SinceMargin returns the commit-history safety margin as a duration
func (c TrackerConfig) SinceMargin() time.Duration {
	return time.Duration(c.SinceMarginDays) * 24 * time.Hour
}

// RequestTimeout returns the per-call collaborator timeout
func (c TrackerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	RESTPort string `yaml:"rest_port"`
}

// Config is the root configuration passed explicitly into each component
type Config struct {
	Jira    JiraConfig    `yaml:"jira"`
	GitHub  GitHubConfig  `yaml:"github"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Tracker TrackerConfig `yaml:"tracker"`
	Server  ServerConfig  `yaml:"server"`
}

// Load reads an optional YAML file, then applies environment overrides and
// defaults. An empty path falls back to the PRAXIS_CONFIG environment
// variable; when neither is set only environment and defaults apply
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = os.Getenv("PRAXIS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Jira.BaseURL, "JIRA_BASE_URL")
	setString(&cfg.Jira.Username, "JIRA_USERNAME")
	setString(&cfg.Jira.APIToken, "JIRA_TOKEN")
	setString(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setString(&cfg.GitHub.WorkspaceDir, "WORKSPACE_DIR")
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.Model, "OPENAI_MODEL")
	setString(&cfg.Tracker.DefaultRepository, "DEFAULT_GITHUB_REPO")
	setString(&cfg.Tracker.DefaultBranch, "DEFAULT_BRANCH")
	setString(&cfg.Tracker.MappingPath, "REPO_MAPPING_PATH")
	setString(&cfg.Server.RESTPort, "REST_PORT")

	if v := os.Getenv("GITHUB_USER_MAPPING"); v != "" {
		mapping := map[string]string{}
		if err := json.Unmarshal([]byte(v), &mapping); err != nil {
			return fmt.Errorf("failed to parse GITHUB_USER_MAPPING: %w", err)
		}
		cfg.Tracker.UserMapping = mapping
	}

	intVars := []struct {
		dst *int
		key string
	}{
		{&cfg.Tracker.SinceMarginDays, "TRACKER_SINCE_MARGIN_DAYS"},
		{&cfg.Tracker.ScanRepoLimit, "TRACKER_SCAN_REPO_LIMIT"},
		{&cfg.Tracker.ScanCommitLimit, "TRACKER_SCAN_COMMIT_LIMIT"},
		{&cfg.Tracker.Workers, "TRACKER_WORKERS"},
		{&cfg.Tracker.RequestTimeoutSeconds, "TRACKER_REQUEST_TIMEOUT_SECONDS"},
	}
	for _, v := range intVars {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Tracker.DefaultBranch == "" {
		cfg.Tracker.DefaultBranch = DefaultBranch
	}
	if cfg.Tracker.MappingPath == "" {
		cfg.Tracker.MappingPath = DefaultMappingPath
	}
	if cfg.Tracker.SinceMarginDays == 0 {
		cfg.Tracker.SinceMarginDays = DefaultSinceMarginDays
	}
	if cfg.Tracker.ScanRepoLimit == 0 {
		cfg.Tracker.ScanRepoLimit = DefaultScanRepoLimit
	}
	if cfg.Tracker.ScanCommitLimit == 0 {
		cfg.Tracker.ScanCommitLimit = DefaultScanCommitLimit
	}
	if cfg.Tracker.Workers == 0 {
		cfg.Tracker.Workers = DefaultWorkers
	}
	if cfg.Tracker.RequestTimeoutSeconds == 0 {
		cfg.Tracker.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if cfg.Server.RESTPort == "" {
		cfg.Server.RESTPort = DefaultRESTPort
	}
}

// Validate reports every missing required setting at once
func (c *Config) Validate() error {
	var missing []string
	if c.Jira.BaseURL == "" {
		missing = append(missing, "jira.base_url (JIRA_BASE_URL)")
	}
	if c.Jira.Username == "" {
		missing = append(missing, "jira.username (JIRA_USERNAME)")
	}
	if c.Jira.APIToken == "" {
		missing = append(missing, "jira.api_token (JIRA_TOKEN)")
	}
	if c.GitHub.Token == "" && c.GitHub.WorkspaceDir == "" {
		missing = append(missing, "github.token (GITHUB_TOKEN) or github.workspace_dir (WORKSPACE_DIR)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	*dst = n
	return nil
}
