package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/NikitaCOEUR/regiontrace/internal/config"
)

// Schema displays or exports the JSON Schema for regiontrace configuration files
func Schema(outputPath string, stdout io.Writer) error {
	if stdout == nil {
		stdout = os.Stdout
	}

	// If output path is provided, write to file
	if outputPath != "" {
		if err := config.WriteSchema(outputPath); err != nil {
			return fmt.Errorf("failed to write schema to %s: %w", outputPath, err)
		}
		_, _ = fmt.Fprintf(stdout, "JSON Schema written to: %s\n", outputPath)
		return nil
	}

	schemaJSON, err := config.GetSchemaJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(schemaJSON))
	return err
}
