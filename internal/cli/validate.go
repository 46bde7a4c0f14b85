package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/NikitaCOEUR/regiontrace/internal/config"
)

// Validate validates a regiontrace configuration file
func Validate(configPath string, stdout io.Writer) error {
	if stdout == nil {
		stdout = os.Stdout
	}

	// If no path provided, look for config in current directory
	if configPath == "" {
		currentDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}

		for _, name := range config.SupportedConfigNames {
			path := filepath.Join(currentDir, name)
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}

		if configPath == "" {
			return fmt.Errorf("no config file found in current directory")
		}
	}

	_, _ = fmt.Fprintf(stdout, "Validating: %s\n\n", configPath)

	result, err := config.Validate(configPath)
	if err != nil {
		return err
	}

	if result.Valid {
		_, _ = fmt.Fprintln(stdout, "✅ Configuration is valid!")
		return nil
	}

	_, _ = fmt.Fprintln(stdout, "❌ Configuration has errors:")
	for i, validationErr := range result.Errors {
		_, _ = fmt.Fprintf(stdout, "%d. [%s] %s\n", i+1, validationErr.Field, validationErr.Message)
	}

	_, _ = fmt.Fprintf(stdout, "\nFound %d error(s)\n", len(result.Errors))

	return fmt.Errorf("validation failed")
}
