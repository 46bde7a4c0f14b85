package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/NikitaCOEUR/regiontrace/internal/config"
	"github.com/NikitaCOEUR/regiontrace/internal/derrors"
)

const sampleConfig = `# yaml-language-server: $schema=` + config.SchemaID + `
# regiontrace configuration file

# Measurement backend: memory, otel-stdout, otlp, runtime-trace or none
backend: memory

# Reported as service.name by the OpenTelemetry backends
# service_name: regiontrace

# OTLP gRPC collector (otlp backend only)
# endpoint: localhost:4317

# Experiment directories (regiontrace-YYYYMMDD_HHMMSS_xxxxxxxx) are created here
output_dir: .

# log_level: warn

# Parameter handle caching: per-name or shared
# parameter_slots: per-name

# Print a one-time warning when a region exits without an enter
# warnings: true

# Region names whose unmatched exits are expected
# exit_whitelist:
#   - threading:_bootstrap_inner
#   - threading:_bootstrap

# Calls that are never recorded
# ignore:
#   functions: [_unsetprofile]
#   scope_prefixes: [scorep]
`

// Init creates a sample .regiontrace.yml config file in dir
func Init(dir string, stdout io.Writer) error {
	if stdout == nil {
		stdout = os.Stdout
	}

	if dir == "" {
		currentDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = currentDir
	}
	configPath := filepath.Join(dir, config.SupportedConfigNames[0])

	if _, err := os.Stat(configPath); err == nil {
		return derrors.NewConfigurationError(configPath, fmt.Sprintf("config file already exists: %s", configPath), nil)
	}

	if err := os.WriteFile(configPath, []byte(sampleConfig), 0644); err != nil {
		return derrors.NewConfigurationError(configPath, "failed to create config file", err)
	}

	_, _ = fmt.Fprintf(stdout, "Created sample config: %s\n", configPath)
	_, _ = fmt.Fprintln(stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(stdout, "  1. Edit the config file to suit your needs")
	_, _ = fmt.Fprintln(stdout, "  2. Run 'regiontrace validate' to check it")
	_, _ = fmt.Fprintln(stdout, "  3. Run 'regiontrace replay <events-file>' to record a session")

	return nil
}
