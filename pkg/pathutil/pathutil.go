// Package pathutil normalizes source file paths attached to regions.
//
// Normalization follows POSIX path resolution without touching the
// filesystem: symlinks are not resolved, and a leading "//" is preserved
// because POSIX leaves its meaning implementation-defined.
package pathutil

import (
	"os"
	"strconv"
	"strings"
)

// Normalize cleans an absolute path.
//
// Exactly two leading slashes are kept, any other run of leading slashes
// becomes one. Repeated separators collapse, "." segments are dropped and
// ".." removes the previous segment (it is a no-op at the root). A trailing
// slash is removed unless the result is the root itself.
//
// The path must be non-empty and start with '/'; Normalize panics otherwise.
func Normalize(path string) string {
	if path == "" || path[0] != '/' {
		panic("pathutil: Normalize requires an absolute path, got " + strconv.Quote(path))
	}

	root := "/"
	if strings.HasPrefix(path, "//") && !strings.HasPrefix(path, "///") {
		root = "//"
	}

	segments := make([]string, 0, strings.Count(path, "/"))
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, seg)
		}
	}

	return root + strings.Join(segments, "/")
}

// Abspath returns the normalized absolute form of input, resolving relative
// paths against the process working directory. It returns an empty string
// when the working directory cannot be determined.
func Abspath(input string) string {
	return AbspathFrom(input, os.Getwd)
}

// AbspathFrom is Abspath with an explicit working directory lookup.
func AbspathFrom(input string, getwd func() (string, error)) string {
	if strings.HasPrefix(input, "/") {
		return Normalize(input)
	}

	cwd, err := getwd()
	if err != nil || !strings.HasPrefix(cwd, "/") {
		return ""
	}

	return Normalize(cwd + "/" + input)
}
