package utils

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("ℹ️  No .env file found, continuing...")
	}
}

// ConfigFile resolves the project config path, preferring the
// SQLITENOW_CONFIG environment variable.
func ConfigFile(fallback string) string {
	if path := os.Getenv("SQLITENOW_CONFIG"); path != "" {
		return path
	}
	return fallback
}
