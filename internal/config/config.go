package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

const (
	ProviderHTTP = "http"
	ProviderArk  = "ark"

	defaultCompletionEndpoint = "https://diagnobuddy.azurewebsites.net/api/gpmodel/"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	Completion CompletionConfig
	AI         AIConfig
	Session    SessionConfig
	Mail       MailConfig
	Stream     StreamConfig
	History    HistoryConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	completion, err := loadCompletionConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	mail, err := loadMailConfig()
	if err != nil {
		return nil, err
	}

	stream, err := loadStreamConfig()
	if err != nil {
		return nil, err
	}

	history := loadHistoryConfig()

	if completion.Provider == ProviderArk && !ai.Enabled() {
		return nil, fmt.Errorf("COMPLETION_PROVIDER=ark requires ARK_API_KEY (or ARK_ACCESS_KEY/ARK_SECRET_KEY) and Model")
	}

	return &Config{
		Server:     server,
		Completion: completion,
		AI:         ai,
		Session:    session,
		Mail:       mail,
		Stream:     stream,
		History:    history,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// CompletionConfig selects and configures the model behind the relay.
type CompletionConfig struct {
	Provider string
	Endpoint string
	Timeout  time.Duration
}

func loadCompletionConfig() (CompletionConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("COMPLETION_PROVIDER", ProviderHTTP))
	if provider != ProviderHTTP && provider != ProviderArk {
		return CompletionConfig{}, fmt.Errorf("invalid COMPLETION_PROVIDER value %q", provider)
	}

	endpoint := getEnvOrDefault("COMPLETION_ENDPOINT", defaultCompletionEndpoint)
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return CompletionConfig{}, fmt.Errorf("invalid COMPLETION_ENDPOINT value %q: %w", endpoint, err)
	}

	timeout, err := parseDurationEnv("COMPLETION_TIMEOUT", 30*time.Second)
	if err != nil {
		return CompletionConfig{}, err
	}

	return CompletionConfig{Provider: provider, Endpoint: endpoint, Timeout: timeout}, nil
}

// AIConfig 描述 Ark 大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + Model or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// SessionConfig controls chat session token issuance.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 5*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}
	if ttl <= 0 {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_TTL value %s: must be positive", ttl)
	}

	return SessionConfig{
		Secret: strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		TTL:    ttl,
	}, nil
}

// MailConfig 描述聊天记录邮件发送配置。
type MailConfig struct {
	AuthEmail string
	SMTPHost  string
	SMTPPort  int
	Username  string
	Password  string
}

// Enabled reports whether a sender identity and SMTP relay are configured.
func (c MailConfig) Enabled() bool {
	return c.AuthEmail != "" && c.SMTPHost != ""
}

func loadMailConfig() (MailConfig, error) {
	port := 587
	if override, err := parseOptionalIntEnv("SMTP_PORT"); err != nil {
		return MailConfig{}, err
	} else if override != nil {
		port = *override
	}

	authEmail := strings.TrimSpace(os.Getenv("AUTH_EMAIL"))
	username := strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	if username == "" {
		username = authEmail
	}

	return MailConfig{
		AuthEmail: authEmail,
		SMTPHost:  strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPPort:  port,
		Username:  username,
		Password:  os.Getenv("SMTP_PASSWORD"),
	}, nil
}

// StreamConfig tunes the typed reveal cadence of the streaming transports.
type StreamConfig struct {
	MinInterval time.Duration
	Budget      time.Duration
}

func loadStreamConfig() (StreamConfig, error) {
	minInterval, err := parseDurationEnv("REVEAL_MIN_INTERVAL", 20*time.Millisecond)
	if err != nil {
		return StreamConfig{}, err
	}
	budget, err := parseDurationEnv("REVEAL_BUDGET", time.Second)
	if err != nil {
		return StreamConfig{}, err
	}
	return StreamConfig{MinInterval: minInterval, Budget: budget}, nil
}

// HistoryConfig selects where chat history lives. An empty DBPath keeps it in
// process memory. An empty AdminToken disables reading and deleting history
// over HTTP.
type HistoryConfig struct {
	DBPath     string
	AdminToken string
}

func loadHistoryConfig() HistoryConfig {
	return HistoryConfig{
		DBPath:     strings.TrimSpace(os.Getenv("HISTORY_DB")),
		AdminToken: strings.TrimSpace(os.Getenv("HISTORY_ADMIN_TOKEN")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
