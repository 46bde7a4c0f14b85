package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult contains the results of config validation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

func (r *ValidationResult) add(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// Validate checks a config file against the schema, then loads it on top of
// the defaults and runs the semantic checks of Check.
func Validate(path string) (*ValidationResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}

	result, err := ValidateWithSchema(path, content)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return result, nil
	}

	l := New()
	if err := l.Load(path); err != nil {
		result.add("syntax", err.Error())
		return result, nil
	}
	cfg, err := l.Config()
	if err != nil {
		result.add("syntax", err.Error())
		return result, nil
	}

	for _, e := range Check(cfg) {
		result.add(e.Field, e.Message)
	}
	return result, nil
}

// Check runs the semantic checks the schema cannot express.
func Check(cfg *Config) []ValidationError {
	var errs []ValidationError

	if !isKnownBackend(cfg.Backend) {
		errs = append(errs, ValidationError{
			Field:   "backend",
			Message: fmt.Sprintf("Unknown backend '%s' (expected one of %s)", cfg.Backend, strings.Join(Backends, ", ")),
		})
	}

	if cfg.Backend == BackendOTLP {
		if cfg.Endpoint == "" {
			errs = append(errs, ValidationError{
				Field:   "endpoint",
				Message: "An endpoint is required by the otlp backend",
			})
		} else if _, _, err := net.SplitHostPort(cfg.Endpoint); err != nil {
			errs = append(errs, ValidationError{
				Field:   "endpoint",
				Message: fmt.Sprintf("Endpoint must be host:port: %v", err),
			})
		}
	}

	if _, err := ParseSlotMode(cfg.ParameterSlots); err != nil {
		errs = append(errs, ValidationError{
			Field:   "parameter_slots",
			Message: err.Error(),
		})
	}

	if strings.TrimSpace(cfg.OutputDir) == "" {
		errs = append(errs, ValidationError{
			Field:   "output_dir",
			Message: "Output directory is empty",
		})
	}

	for i, name := range cfg.ExitWhitelist {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("exit_whitelist/%d", i),
				Message: "Region name is empty",
			})
		}
	}

	for i, prefix := range cfg.Ignore.ScopePrefixes {
		if prefix == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("ignore/scope_prefixes/%d", i),
				Message: "Empty scope prefix would ignore every call",
			})
		}
	}

	return errs
}

func isKnownBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}
