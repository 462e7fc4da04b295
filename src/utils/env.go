package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const DEV_ENV_FILENAME = ".env.development"
const PROD_ENV_FILENAME = ".env.production"

// InitEnvironmentVariables loads the .env file for the current environment.
// In production the variables are expected to come from the platform, so no
// file is loaded.
func InitEnvironmentVariables() error {
	if os.Getenv("ENV") == "production" {
		log.Info("Running in production environment")
		return nil
	}

	envDir := os.Getenv("ENV_DIR")
	if envDir == "" {
		envDir = "."
	}

	envFile := filepath.Join(envDir, DEV_ENV_FILENAME)
	if os.Getenv("GO_ENV") == "production" {
		envFile = filepath.Join(envDir, PROD_ENV_FILENAME)
	}

	if err := godotenv.Load(envFile); err != nil {
		log.Warnf("InitEnvironmentVariables: failed to load %s, continuing with process environment: %v", envFile, err)
	}

	return nil
}

func GetEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("GetEnv: environment variable %s not set", key)
	}
	return value, nil
}
