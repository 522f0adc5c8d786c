package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Debug                   bool   `envconfig:"debug"`
	Port                    int    `envconfig:"port" default:"8080"`
	Env                     string `envconfig:"env" default:"development"`
	LogLevel                string `envconfig:"log_level" default:"info"`
	PostgresHost            string `envconfig:"postgres_host"`
	PostgresUser            string `envconfig:"postgres_user"`
	PostgresDB              string `envconfig:"postgres_db"`
	PostgresPort            int    `envconfig:"postgres_port" default:"5432"`
	PostgresPassword        string `envconfig:"postgres_password"`
	RedisURL                string `envconfig:"redis_url"`
	JWTSecret               string `envconfig:"jwt_secret"`
	AWSRegion               string `envconfig:"aws_region"`
	AWSBucket               string `envconfig:"aws_bucket"`
	AWSAccessKeyID          string `envconfig:"aws_access_key_id"`
	AWSSecretAccessKey      string `envconfig:"aws_secret_access_key"`
	FirebaseCredentialsFile string `envconfig:"firebase_credentials_file"`
	// requests per second allowed on the typing endpoint, per user
	TypingRateLimit uint `envconfig:"typing_rate_limit" default:"5"`
}

func Load() (*Config, error) {
	env := os.Getenv("GIN_MODE")
	if env != "release" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Printf("couldn't load env vars: %v", err)
		}
	}

	c := &Config{}
	err := envconfig.Process("rentchat", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// MultiNode is true when a redis URL is configured, enabling the shared typing
// store and cross-node event fan-out.
func (c *Config) MultiNode() bool {
	return c.RedisURL != ""
}
