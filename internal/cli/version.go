package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/NikitaCOEUR/regiontrace/pkg/version"
)

// Version prints build information
func Version(stdout io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	_, _ = fmt.Fprintf(stdout, "regiontrace %s\n", version.Version)
	_, _ = fmt.Fprintf(stdout, "  commit: %s\n", version.GitCommit)
	_, _ = fmt.Fprintf(stdout, "  built:  %s\n", version.BuildTime)
	_, _ = fmt.Fprintf(stdout, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
