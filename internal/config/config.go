package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"waba-admin/internal/integrations/paramstore"
)

// Config holds all configuration for the application.
type Config struct {
	Env         string
	Port        string
	CORSOrigins []string

	MessagesTable string
	RAGTable      string
	DatabaseURL   string
	RedisURL      string

	SupabaseURL     string
	SupabaseAnonKey string

	GraphBaseURL        string
	FacebookAppID       string
	FacebookAppSecret   string
	WhatsAppSystemToken string

	MidtransServerKey  string
	MidtransProduction bool

	SendAPIEndpoint string
	SendAPIKey      string

	// ParamPrefix enables loading secrets from SSM Parameter Store.
	ParamPrefix string
}

// Load reads configuration from environment variables, loading a .env file
// first when present.
func Load() *Config {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")
	return &Config{
		Env:         env,
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),

		MessagesTable: getEnv("MESSAGES_TABLE", "AgenticWhatsApp_Messages"),
		RAGTable:      getEnv("RAG_TABLE", "BusinessRAG"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),

		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),

		GraphBaseURL:        os.Getenv("GRAPH_BASE_URL"),
		FacebookAppID:       os.Getenv("FACEBOOK_CLIENT_ID"),
		FacebookAppSecret:   os.Getenv("FACEBOOK_CLIENT_SECRET"),
		WhatsAppSystemToken: os.Getenv("WHATSAPP_SYSTEM_TOKEN"),

		MidtransServerKey:  os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransProduction: envBool("MIDTRANS_PRODUCTION", env == "production"),

		SendAPIEndpoint: os.Getenv("AWS_API_ENDPOINT"),
		SendAPIKey:      os.Getenv("AWS_API_KEY"),

		ParamPrefix: strings.TrimSpace(os.Getenv("PARAM_PREFIX")),
	}
}

// ResolveSecrets fills unset secrets from "<ParamPrefix>/<name>". It is a
// no-op without a prefix.
func (c *Config) ResolveSecrets(ctx context.Context, g paramstore.Getter) error {
	if c.ParamPrefix == "" {
		return nil
	}
	err := paramstore.Resolve(ctx, g, c.ParamPrefix, map[string]*string{
		"facebook_client_secret": &c.FacebookAppSecret,
		"whatsapp_system_token":  &c.WhatsAppSystemToken,
		"midtrans_server_key":    &c.MidtransServerKey,
		"send_api_key":           &c.SendAPIKey,
		"supabase_anon_key":      &c.SupabaseAnonKey,
		"database_url":           &c.DatabaseURL,
	})
	if err != nil {
		return fmt.Errorf("config: resolve secrets: %w", err)
	}
	return nil
}

// Validate reports every required setting of the API that is missing.
func (c *Config) Validate() error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"SUPABASE_URL", c.SupabaseURL},
		{"SUPABASE_ANON_KEY", c.SupabaseAnonKey},
		{"FACEBOOK_CLIENT_ID", c.FacebookAppID},
		{"FACEBOOK_CLIENT_SECRET", c.FacebookAppSecret},
		{"WHATSAPP_SYSTEM_TOKEN", c.WhatsAppSystemToken},
		{"MIDTRANS_SERVER_KEY", c.MidtransServerKey},
		{"AWS_API_ENDPOINT", c.SendAPIEndpoint},
		{"AWS_API_KEY", c.SendAPIKey},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return errors.New("config: missing " + strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// EnvInt reads an integer variable, falling back to def when unset or invalid.
func EnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
