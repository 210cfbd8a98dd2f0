package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string
	CORSOrigin string

	MongoURI    string
	MongoDBName string

	CassandraHosts    []string
	CassandraKeyspace string

	Neo4jURI      string
	Neo4jUsername string
	Neo4jPassword string

	NATSURL string

	JWTSecret string
	JWTTTL    time.Duration
	OTPTTL    time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	PasswordBlacklist string

	LogFile  string
	LogLevel string
}

// Load reads the optional .env file and then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("MONGO_DB_NAME", "taskflow")
	v.SetDefault("CASS_DB", "127.0.0.1")
	v.SetDefault("CASS_KEYSPACE", "notifications")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_FROM", "no-reply@taskflow.local")
	v.SetDefault("LOG_FILE", "logs/taskflow.log")
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		ServerPort:        v.GetString("SERVER_PORT"),
		CORSOrigin:        v.GetString("CORS_ORIGIN"),
		MongoURI:          v.GetString("MONGO_URI"),
		MongoDBName:       v.GetString("MONGO_DB_NAME"),
		CassandraHosts:    splitList(v.GetString("CASS_DB")),
		CassandraKeyspace: v.GetString("CASS_KEYSPACE"),
		Neo4jURI:          v.GetString("NEO4J_URI"),
		Neo4jUsername:     v.GetString("NEO4J_USERNAME"),
		Neo4jPassword:     v.GetString("NEO4J_PASSWORD"),
		NATSURL:           v.GetString("NATS_URL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTTTL:            v.GetDuration("JWT_TTL"),
		OTPTTL:            v.GetDuration("OTP_TTL"),
		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetInt("SMTP_PORT"),
		SMTPUsername:      v.GetString("SMTP_USERNAME"),
		SMTPPassword:      v.GetString("SMTP_PASSWORD"),
		MailFrom:          v.GetString("MAIL_FROM"),
		PasswordBlacklist: v.GetString("PASSWORD_BLACKLIST"),
		LogFile:           v.GetString("LOG_FILE"),
		LogLevel:          v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return errors.New("MONGO_URI is not set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive, got %s", c.OTPTTL)
	}
	return nil
}

// GraphEnabled reports whether task dependencies are backed by Neo4j.
func (c *Config) GraphEnabled() bool {
	return c.Neo4jURI != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
