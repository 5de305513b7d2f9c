package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeanhaley/personal-chat-bot/chat"
)

const (
	// DefaultFileName is the config file created in the user's home
	// directory. YAML keeps durations readable ("40ms"); a .json path is
	// still accepted.
	DefaultFileName = ".personal-chat-bot.yaml"

	// DefaultSystemPromptFile is read from the working directory when no
	// inline instruction is configured
	DefaultSystemPromptFile = "system-prompt.txt"

	// DefaultSystemInstruction is used when neither an inline instruction
	// nor a prompt file is available
	DefaultSystemInstruction = "You are a personal chat bot. Answer clearly and concisely, and say so when a question is outside your domain."
)

// Backend names
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
	BackendMock   = "mock"

	// BackendOpenAIMock runs the OpenAI code path against the client
	// library's offline mock
	BackendOpenAIMock = "openai-mock"
)

// Config represents the application configuration
type Config struct {
	Gemini         GeminiConfig     `json:"gemini" yaml:"gemini"`
	OpenAI         OpenAIConfig     `json:"openai" yaml:"openai"`
	Default        DefaultConfig    `json:"default" yaml:"default"`
	ChatController ControllerConfig `json:"chat_controller" yaml:"chat_controller"`
	UI             UIConfig         `json:"ui" yaml:"ui"`
	Logging        LoggingConfig    `json:"logging" yaml:"logging"`
}

// GeminiConfig holds Gemini-specific configuration
type GeminiConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model" yaml:"model"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Model      string        `json:"model" yaml:"model"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
}

// DefaultConfig holds default settings
type DefaultConfig struct {
	Backend     string  `json:"backend" yaml:"backend"`
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// ControllerConfig holds chat controller configuration
type ControllerConfig struct {
	SystemInstruction string        `json:"system_instruction" yaml:"system_instruction"`
	SystemPromptFile  string        `json:"system_prompt_file" yaml:"system_prompt_file"`
	RequestTimeout    time.Duration `json:"request_timeout" yaml:"request_timeout"`
	RevealInterval    time.Duration `json:"reveal_interval" yaml:"reveal_interval"`
	Overlap           string        `json:"overlap" yaml:"overlap"`
}

// UIConfig holds terminal UI preferences
type UIConfig struct {
	Theme    string `json:"theme" yaml:"theme"`
	Markdown bool   `json:"markdown" yaml:"markdown"`
}

// LoggingConfig controls the log file
type LoggingConfig struct {
	File    string `json:"file" yaml:"file"`
	Verbose bool   `json:"verbose" yaml:"verbose"`
}

// Manager handles configuration loading and saving
type Manager struct {
	configPath string
	envFile    string
	config     *Config
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	if configPath == "" {
		// Default to user's home directory
		homeDir, err := os.UserHomeDir()
		if err != nil {
			configPath = DefaultFileName
		} else {
			configPath = filepath.Join(homeDir, DefaultFileName)
		}
	}

	return &Manager{
		configPath: configPath,
		envFile:    ".env",
		config:     getDefaultConfig(),
	}
}

// SetEnvFile changes the dotenv file read by Load. Empty disables it.
func (m *Manager) SetEnvFile(path string) {
	m.envFile = path
}

// Load reads the configuration from file, then applies .env and
// environment overrides. A missing file is created with defaults.
func (m *Manager) Load() error {
	if err := m.loadDotEnv(); err != nil {
		return err
	}

	if _, err := os.Stat(m.configPath); errors.Is(err, fs.ErrNotExist) {
		// Config file doesn't exist, use defaults and create it
		if err := m.Save(); err != nil {
			return err
		}
		m.loadFromEnv()
		return nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := m.unmarshal(data); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Load from environment variables if not set in config
	m.loadFromEnv()

	return nil
}

// Save writes the configuration to file
func (m *Manager) Save() error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := m.marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (m *Manager) isYAML() bool {
	switch strings.ToLower(filepath.Ext(m.configPath)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (m *Manager) marshal() ([]byte, error) {
	if m.isYAML() {
		return yaml.Marshal(m.config)
	}
	return json.MarshalIndent(m.config, "", "  ")
}

func (m *Manager) unmarshal(data []byte) error {
	if m.isYAML() {
		return yaml.Unmarshal(data, m.config)
	}
	return json.Unmarshal(data, m.config)
}

func (m *Manager) loadDotEnv() error {
	if m.envFile == "" {
		return nil
	}
	// variables already set in the process environment win
	if err := godotenv.Load(m.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", m.envFile, err)
	}
	return nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// GetConfigPath returns the path to the configuration file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// SetGeminiAPIKey sets the Gemini API key
func (m *Manager) SetGeminiAPIKey(apiKey string) {
	m.config.Gemini.APIKey = apiKey
}

// SetOpenAIAPIKey sets the OpenAI API key
func (m *Manager) SetOpenAIAPIKey(apiKey string) {
	m.config.OpenAI.APIKey = apiKey
}

// SetDefaultBackend sets the default backend
func (m *Manager) SetDefaultBackend(backend string) {
	m.config.Default.Backend = backend
}

// SetDefaultModel overrides the model of the selected backend
func (m *Manager) SetDefaultModel(model string) {
	m.config.Default.Model = model
}

// loadFromEnv loads configuration from environment variables
func (m *Manager) loadFromEnv() {
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "VITE_GEMINI_API_KEY"} {
		if apiKey := os.Getenv(name); apiKey != "" {
			m.config.Gemini.APIKey = apiKey
			break
		}
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		m.config.OpenAI.APIKey = apiKey
	}

	if baseURL := os.Getenv("GEMINI_BASE_URL"); baseURL != "" {
		m.config.Gemini.BaseURL = baseURL
	}

	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		m.config.OpenAI.BaseURL = baseURL
	}

	if backend := os.Getenv("CHATBOT_BACKEND"); backend != "" {
		m.config.Default.Backend = backend
	}

	if model := os.Getenv("CHATBOT_MODEL"); model != "" {
		m.config.Default.Model = model
	}

	if file := os.Getenv("CHATBOT_SYSTEM_PROMPT_FILE"); file != "" {
		m.config.ChatController.SystemPromptFile = file
	}
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model:   "gemini-2.0-flash",
			Timeout: 60 * time.Second,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4",
			Timeout: 60 * time.Second,
		},
		Default: DefaultConfig{
			Backend:     BackendGemini,
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		ChatController: ControllerConfig{
			SystemPromptFile: DefaultSystemPromptFile,
			RequestTimeout:   chat.DefaultRequestTimeout,
			RevealInterval:   chat.DefaultRevealInterval,
			Overlap:          string(chat.OverlapAllow),
		},
		UI: UIConfig{
			Theme:    string(chat.ThemeDark),
			Markdown: true,
		},
	}
}

// ValidateConfig checks if the configuration is valid
func (m *Manager) ValidateConfig() error {
	config := m.config

	switch config.Default.Backend {
	case BackendGemini:
		if config.Gemini.APIKey == "" {
			return fmt.Errorf("gemini backend selected but no API key configured - set GEMINI_API_KEY")
		}
	case BackendOpenAI:
		if config.OpenAI.APIKey == "" {
			return fmt.Errorf("openai backend selected but no API key configured - set OPENAI_API_KEY")
		}
	case BackendMock, BackendOpenAIMock:
		// Mock backends are always available
	default:
		return fmt.Errorf("unknown backend %q - use %s, %s or %s", config.Default.Backend, BackendGemini, BackendOpenAI, BackendMock)
	}

	// Validate temperature range
	if config.Default.Temperature < 0.0 || config.Default.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}

	// Validate max tokens
	if config.Default.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be greater than 0")
	}

	if config.ChatController.RevealInterval <= 0 {
		return fmt.Errorf("reveal_interval must be greater than 0")
	}

	// 0 disables the request timeout
	if config.ChatController.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative - use 0 for no timeout")
	}

	if _, ok := chat.ParseOverlapPolicy(config.ChatController.Overlap); !ok {
		return fmt.Errorf("overlap must be %q or %q", chat.OverlapAllow, chat.OverlapFlush)
	}

	if _, ok := chat.ParseTheme(config.UI.Theme); !ok {
		return fmt.Errorf("theme must be %q or %q", chat.ThemeDark, chat.ThemeLight)
	}

	return nil
}

// Model returns the model for the selected backend
func (c *Config) Model() string {
	if c.Default.Model != "" {
		return c.Default.Model
	}
	switch c.Default.Backend {
	case BackendGemini:
		return c.Gemini.Model
	case BackendOpenAI, BackendOpenAIMock:
		return c.OpenAI.Model
	}
	return ""
}

// SystemInstruction resolves the fixed instruction sent with every
// request: inline value, then the prompt file, then the built-in default.
func (c *Config) SystemInstruction() (string, error) {
	if s := strings.TrimSpace(c.ChatController.SystemInstruction); s != "" {
		return s, nil
	}

	if path := c.ChatController.SystemPromptFile; path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if s := strings.TrimSpace(string(data)); s != "" {
				return s, nil
			}
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("failed to read system prompt file %s: %w", path, err)
		}
	}

	return DefaultSystemInstruction, nil
}

// ControllerConfig builds the chat controller settings
func (c *Config) ControllerConfig(systemInstruction string) *chat.ControllerConfig {
	theme, _ := chat.ParseTheme(c.UI.Theme)
	overlap, _ := chat.ParseOverlapPolicy(c.ChatController.Overlap)
	temperature := c.Default.Temperature

	// each backend carries its own model; only an explicit override is pinned
	return &chat.ControllerConfig{
		DefaultModel:      c.Default.Model,
		SystemInstruction: systemInstruction,
		MaxTokens:         c.Default.MaxTokens,
		Temperature:       &temperature,
		RequestTimeout:    c.ChatController.RequestTimeout,
		RevealInterval:    c.ChatController.RevealInterval,
		Overlap:           overlap,
		Theme:             theme,
	}
}

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() Config {
	redacted := *c
	redacted.Gemini.APIKey = mask(c.Gemini.APIKey)
	redacted.OpenAI.APIKey = mask(c.OpenAI.APIKey)
	return redacted
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// InitializeConfig creates a configuration file, picking the backend from
// the API keys found in the environment
func (m *Manager) InitializeConfig() error {
	fmt.Println("Initializing Personal Chat Bot configuration...")
	fmt.Println()

	if err := m.loadDotEnv(); err != nil {
		return err
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	openAIKey := os.Getenv("OPENAI_API_KEY")

	switch {
	case geminiKey != "":
		fmt.Println("✓ Found GEMINI_API_KEY in environment")
		m.config.Default.Backend = BackendGemini
	case openAIKey != "":
		fmt.Println("✓ Found OPENAI_API_KEY in environment")
		m.config.Default.Backend = BackendOpenAI
	default:
		fmt.Println("No API keys found in environment variables.")
		fmt.Println("You can set them later using environment variables or a .env file:")
		fmt.Println("  export GEMINI_API_KEY=your_key_here")
		fmt.Println("  export OPENAI_API_KEY=your_key_here")
		fmt.Println()
		fmt.Println("Or you can edit the config file at:", m.configPath)
		m.config.Default.Backend = BackendMock
		fmt.Println("Using mock backend for testing (no API costs)")
	}

	// keys stay in the environment, never in the file
	if err := m.Save(); err != nil {
		return fmt.Errorf("failed to save initial configuration: %w", err)
	}

	fmt.Printf("✓ Configuration saved to: %s\n", m.configPath)
	return nil
}
