package report

import (
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/NikitaCOEUR/regiontrace/internal/profile"
)

// RenderTemplate executes a text/template over data. Sprig functions are
// available, plus "millis" to format durations.
func RenderTemplate(w io.Writer, text string, data *Data) error {
	funcs := sprig.TxtFuncMap()
	funcs["millis"] = profile.Millis

	tmpl, err := template.New("report").Funcs(funcs).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse report template: %w", err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render report template: %w", err)
	}
	return nil
}
