package config

type Config struct {
	DatabaseURL   string
	RedisURL      string
	SessionSecret string
	JWTSecret     string
	Environment   string
}
