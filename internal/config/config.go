// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	// Driver selects the store backend: "postgres" (default when
	// DATABASE_URL is set) or "sqlite".
	Driver     string
	SQLitePath string
	LogLevel   string
	CORSOrigin string
}

func Load() Config {
	loadDotenv()

	driver := getenv("DB_DRIVER", "")
	if driver == "" {
		if os.Getenv("DATABASE_URL") != "" {
			driver = "postgres"
		} else {
			driver = "sqlite"
		}
	}

	return Config{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Driver:      driver,
		SQLitePath:  getenv("SQLITE_PATH", "./data/poker.db"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		CORSOrigin:  getenv("CORS_ORIGIN", "*"),
	}
}

func loadDotenv() {
	for _, p := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Overload(p)
			return
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
