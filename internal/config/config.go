package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	ChatCipherKey    []byte
	ChatRetention    time.Duration
	EventChannelBase string
	SMTPHost         string
	SMTPPort         int
	SMTPFrom         string
	SMTPUsername     string
	SMTPPassword     string
	OpenAIAPIKey     string
	OpenAIModel      string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ALGOPREP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "AlgoPrep API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("chat.retention", "36h")
	v.SetDefault("events.channel_base", "algoprep")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("openai.model", "gpt-4o-mini")

	retentionString := v.GetString("chat.retention")
	if retentionString == "" {
		retentionString = "36h"
	}

	retention, err := time.ParseDuration(retentionString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid chat retention: %w", err)
	}

	cipherKey, err := decodeCipherKey(v.GetString("chat.cipher_key"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		ChatCipherKey:    cipherKey,
		ChatRetention:    retention,
		EventChannelBase: v.GetString("events.channel_base"),
		SMTPHost:         v.GetString("smtp.host"),
		SMTPPort:         v.GetInt("smtp.port"),
		SMTPFrom:         v.GetString("smtp.from"),
		SMTPUsername:     v.GetString("smtp.username"),
		SMTPPassword:     v.GetString("smtp.password"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIModel:      v.GetString("openai.model"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}

// decodeCipherKey accepts either a hex-encoded or a raw 32-byte key.
func decodeCipherKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("chat cipher key must be provided")
	}

	if decoded, err := hex.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded, nil
	}

	if len(raw) == 32 {
		return []byte(raw), nil
	}

	return nil, fmt.Errorf("chat cipher key must be 32 bytes (raw or hex encoded)")
}
