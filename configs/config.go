package config

import (
	"errors"
	"os"
	"strconv"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Twitter struct {
	ClientID     string
	ClientSecret string
}

type LinkedIn struct {
	ClientID     string
	ClientSecret string
}

type Instagram struct {
	ClientSecret string
}

type AI struct {
	APIURL string
	APIKey string
	Model  string
}

type Config struct {
	Port             string
	PostgresURI      string
	RedisURI         string
	BaseURL          string
	FrontendURL      string
	SecretKey        string
	CookieName       string
	QueueSigningKey  string
	QueueName        string
	QueueConcurrency int
	RateLimitAPI     int
	RateLimitAI      int
	Twitter          Twitter
	LinkedIn         LinkedIn
	Instagram        Instagram
	AI               AI
	R2               R2
}

func LoadConfig() *Config {
	return &Config{
		Port:             getEnv("PORT", "3000"),
		PostgresURI:      getEnv("POSTGRES_URI", ""),
		RedisURI:         getEnv("REDIS_URI", "localhost:6379"),
		BaseURL:          getEnv("BASE_URL", ""),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:        getEnv("SECRET_KEY", ""),
		CookieName:       getEnv("COOKIE_NAME", "postflow_session"),
		QueueSigningKey:  getEnv("QUEUE_SIGNING_KEY", ""),
		QueueName:        getEnv("QUEUE_NAME", "posts"),
		QueueConcurrency: getEnvInt("QUEUE_CONCURRENCY", 10),
		RateLimitAPI:     getEnvInt("RATE_LIMIT_API", 30),
		RateLimitAI:      getEnvInt("RATE_LIMIT_AI", 10),
		Twitter: Twitter{
			ClientID:     getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
		},
		LinkedIn: LinkedIn{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
		},
		Instagram: Instagram{
			ClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		},
		AI: AI{
			APIURL: getEnv("AI_API_URL", "https://api.openai.com/v1/chat/completions"),
			APIKey: getEnv("AI_API_KEY", ""),
			Model:  getEnv("AI_MODEL", "gpt-4o-mini"),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
	}
}

// Validate reports settings the process cannot start without. BASE_URL is
// checked by the scheduler on each request instead.
func (c *Config) Validate() error {
	if c.PostgresURI == "" {
		return errors.New("POSTGRES_URI is required")
	}
	if c.RedisURI == "" {
		return errors.New("REDIS_URI is required")
	}
	switch len(c.SecretKey) {
	case 16, 24, 32:
	default:
		return errors.New("SECRET_KEY must be 16, 24 or 32 bytes")
	}
	if c.QueueSigningKey == "" {
		return errors.New("QUEUE_SIGNING_KEY is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
