package bootstrap

import (
	"errors"
	"io/fs"
	"log/slog"

	"bloghub/internal/middleware"

	"github.com/joho/godotenv"
)

// LoadEnv reads KEY=value pairs from the given files (default ".env") into
// the process environment. Variables already set win. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		middleware.Logger.Debug("Loaded environment file", slog.String("file", f))
	}
	return nil
}
