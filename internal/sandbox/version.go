package sandbox

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// parseRustcVersion reads the key/value lines printed by
// `rustc --version --verbose`.
func parseRustcVersion(output string) (Version, error) {
	var v Version
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "release":
			v.Release = value
		case "commit-hash":
			v.CommitHash = value
		case "commit-date":
			v.CommitDate = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Version{}, fmt.Errorf("failed to read rustc version: %w", err)
	}
	if v.Release == "" {
		return Version{}, fmt.Errorf("rustc version output has no release: %q", strings.TrimSpace(output))
	}
	return v, nil
}

// Matches e.g. "rustfmt 1.5.2-stable (90c5418 2023-05-31)".
var toolVersionRe = regexp.MustCompile(`^\S+\s+(\S+)\s+\((\S+)\s+(\S+)\)`)

func parseToolVersion(output string) (Version, error) {
	line := strings.TrimSpace(output)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	m := toolVersionRe.FindStringSubmatch(line)
	if m == nil {
		return Version{}, fmt.Errorf("unrecognised tool version output: %q", line)
	}
	return Version{Release: m[1], CommitHash: m[2], CommitDate: m[3]}, nil
}

// filterAssembly drops assembler directives and blank lines, keeping
// labels and instructions.
func filterAssembly(asm string) string {
	var b strings.Builder
	for _, line := range strings.Split(asm, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ".") && !strings.HasSuffix(trimmed, ":") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Legacy (_ZN...E) and v0 (_R...) Rust symbol names.
var mangledSymbolRe = regexp.MustCompile(`\b_(?:ZN[\w$.]+|R[\w]+)`)

// demangleAssembly rewrites mangled symbol names into readable paths.
// Names that fail to demangle are left as they are.
func demangleAssembly(asm string) string {
	return mangledSymbolRe.ReplaceAllStringFunc(asm, func(sym string) string {
		return demangle.Filter(sym)
	})
}
