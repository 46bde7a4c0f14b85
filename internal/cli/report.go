package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/NikitaCOEUR/regiontrace/internal/report"
	"github.com/NikitaCOEUR/regiontrace/internal/tracefile"
)

// ReportParams contains parameters for the Report command
type ReportParams struct {
	// TracePath is a trace file or an experiment directory holding one.
	TracePath    string
	TemplatePath string
	Top          int
	Stdout       io.Writer
}

// Report renders a recorded trace, either as the built-in view or through
// a user template.
func Report(p ReportParams) error {
	if p.Stdout == nil {
		p.Stdout = os.Stdout
	}

	path := p.TracePath
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		path = filepath.Join(path, tracefile.FileName)
	}

	t, err := tracefile.Read(path)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}

	data := report.NewData(path, t, p.Top)

	if p.TemplatePath == "" {
		_, err := fmt.Fprintln(p.Stdout, report.Render(data))
		return err
	}

	text, err := os.ReadFile(p.TemplatePath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	return report.RenderTemplate(p.Stdout, string(text), data)
}
