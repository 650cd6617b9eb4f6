package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "jira_config.yaml"

// Config holds the application configuration
type Config struct {
	// Jira configuration
	JiraURL        string
	JiraAPIBaseURL string
	JiraUsername   string
	JiraToken      string
	RequestTimeout time.Duration
	SprintPageSize int
	Fields         FieldMapping

	// Server configuration
	ServerPort int
	ServerHost string

	// Agent configuration
	AgentName    string
	AgentVersion string
	AgentURL     string

	// Authentication
	AuthType  string // "jwt" or "apikey"
	JWTSecret string
	APIKey    string

	// LLM configuration
	LLMProvider    string // "openai", "azure", "ollama"
	LLMModel       string
	LLMAPIKey      string
	LLMServiceURL  string
	LLMMaxTokens   int
	LLMTimeout     int // in seconds
	LLMTemperature float64
}

// fileConfig is the part of the YAML file that viper cannot carry because
// field names inside it are case-sensitive.
type fileConfig struct {
	SpecialFields FieldMapping `yaml:"jira_special_fields"`
}

// LoadDotEnv loads a .env file from the working directory or up to two parents.
// It returns the file that was loaded, or "" when none was found.
func LoadDotEnv() string {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

// ResolvePath expands ~ and makes path absolute. An empty path resolves to
// DefaultConfigFile in the working directory.
func ResolvePath(path string) (string, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// Load reads the YAML configuration file, renders its templates, and overlays
// environment variables and any flags bound to v. A nil v uses a fresh viper.
func Load(path string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	rendered, err := Render(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to render config file %q: %w", path, err)
	}

	setDefaults(v)
	bindEnv(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(rendered)); err != nil {
		return nil, fmt.Errorf("failed to load config file %q: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(rendered, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse jira_special_fields: %w", err)
	}

	cfg := fromViper(v)
	cfg.Fields = fc.SpecialFields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Render expands Go template references to the file's own top-level keys,
// e.g. {{ .jira_url }}. Content without template actions is returned as is.
func Render(content []byte) ([]byte, error) {
	if !bytes.Contains(content, []byte("{{")) {
		return content, nil
	}
	var vars map[string]interface{}
	if err := yaml.Unmarshal(content, &vars); err != nil {
		return nil, fmt.Errorf("failed to parse YAML before rendering: %w", err)
	}
	tmpl, err := template.New("config").Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks that the settings needed to reach Jira are present.
func (c *Config) Validate() error {
	var errs []error
	if c.JiraURL == "" {
		errs = append(errs, errors.New("jira_url is required"))
	}
	if c.JiraToken == "" {
		errs = append(errs, errors.New("jira_token is required"))
	}
	if c.SprintPageSize <= 0 {
		errs = append(errs, fmt.Errorf("sprint_page_size must be positive, got %d", c.SprintPageSize))
	}
	if err := c.Fields.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("jira_api_base_url", "/rest/api/2")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("sprint_page_size", 50)
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("jira_url", "JIRA_URL", "JIRA_BASE_URL")
	_ = v.BindEnv("jira_api_base_url", "JIRA_API_BASE_URL")
	_ = v.BindEnv("jira_username", "JIRA_USERNAME")
	_ = v.BindEnv("jira_token", "JIRA_TOKEN", "JIRA_API_TOKEN")
	_ = v.BindEnv("request_timeout", "JIRA_REQUEST_TIMEOUT")
	_ = v.BindEnv("sprint_page_size", "JIRA_SPRINT_PAGE_SIZE")
}

func fromViper(v *viper.Viper) *Config {
	port, _ := strconv.Atoi(getEnvOrDefault("SERVER_PORT", "8080"))
	llmMaxTokens, _ := strconv.Atoi(getEnvOrDefault("LLM_MAX_TOKENS", "0"))
	llmTimeout, _ := strconv.Atoi(getEnvOrDefault("LLM_TIMEOUT", "120"))
	llmTemperature, _ := strconv.ParseFloat(getEnvOrDefault("LLM_TEMPERATURE", "1.0"), 64)

	return &Config{
		// Jira configuration
		JiraURL:        strings.TrimRight(v.GetString("jira_url"), "/"),
		JiraAPIBaseURL: v.GetString("jira_api_base_url"),
		JiraUsername:   v.GetString("jira_username"),
		JiraToken:      v.GetString("jira_token"),
		RequestTimeout: v.GetDuration("request_timeout"),
		SprintPageSize: v.GetInt("sprint_page_size"),

		// Server configuration
		ServerPort: port,
		ServerHost: getEnvOrDefault("SERVER_HOST", "localhost"),

		// Agent configuration
		AgentName:    getEnvOrDefault("AGENT_NAME", "IssueCreatorAgent"),
		AgentVersion: getEnvOrDefault("AGENT_VERSION", "1.0.0"),
		AgentURL:     getEnvOrDefault("AGENT_URL", "http://localhost:8080"),

		// Authentication
		AuthType:  getEnvOrDefault("AUTH_TYPE", "apikey"),
		JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
		APIKey:    getEnvOrDefault("API_KEY", ""),

		// LLM configuration
		LLMProvider:    getEnvOrDefault("LLM_PROVIDER", "openai"),
		LLMModel:       getEnvOrDefault("LLM_MODEL", "o4-mini-2025-04-16"),
		LLMAPIKey:      getEnvOrDefault("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
		LLMServiceURL:  getEnvOrDefault("LLM_SERVICE_URL", ""),
		LLMMaxTokens:   llmMaxTokens,
		LLMTimeout:     llmTimeout,
		LLMTemperature: llmTemperature,
	}
}

// getEnvOrDefault returns the value of the environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
