package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// envLocations are tried in order of preference.
var envLocations = []string{".env", ".env.local", "config/.env"}

// LoadEnv loads environment variables from a .env file. Variables already set
// in the process environment win. A missing file is not an error.
func LoadEnv(filename string, logger zerolog.Logger) (bool, error) {
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(filename); err != nil {
		return false, fmt.Errorf("error loading %s: %w", filename, err)
	}
	logger.Debug().Str("file", filename).Msg("loaded environment file")
	return true, nil
}

// LoadEnvWithFallback loads the first .env file found in the standard
// locations.
func LoadEnvWithFallback(logger zerolog.Logger) error {
	for _, location := range envLocations {
		loaded, err := LoadEnv(location, logger)
		if err != nil {
			logger.Warn().Err(err).Str("file", location).Msg("could not load environment file")
			continue
		}
		if loaded {
			return nil
		}
	}
	logger.Debug().Msg("no .env files found, using process environment only")
	return nil
}
