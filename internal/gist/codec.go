package gist

import (
	"sort"
	"strings"
)

// Merge folds a snippet's files into one source blob. Files are ordered by
// name. A single file is returned as is; with several, each is preceded by
// a "// <name>" marker line and followed by a blank line.
func Merge(files map[string]string) string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) <= 1 {
		var b strings.Builder
		for _, name := range names {
			b.WriteString(files[name])
		}
		return b.String()
	}

	var b strings.Builder
	for _, name := range names {
		b.WriteString("// ")
		b.WriteString(name)
		b.WriteByte('\n')
		b.WriteString(files[name])
		b.WriteString("\n\n")
	}
	return b.String()
}
