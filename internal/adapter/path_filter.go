package adapter

import (
	"path"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	m "gapfill.dev/pkg/gapfill/internal/model"
)

// PathFilter excludes project paths by folder prefix. Prefixes are compiled as
// root-anchored gitignore patterns, so "internal/legacy" also excludes
// everything beneath it and glob characters keep their gitignore meaning.
type PathFilter struct {
	matcher *ignore.GitIgnore
}

// NewPathFilter compiles the excluded folder prefixes.
func NewPathFilter(prefixes []string) *PathFilter {
	lines := make([]string, 0, len(prefixes))

	for _, prefix := range prefixes {
		prefix = strings.TrimSpace(prefix)
		prefix = strings.TrimPrefix(prefix, "./")

		if prefix == "" || prefix == "." {
			continue
		}

		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}

		lines = append(lines, prefix)
	}

	if len(lines) == 0 {
		return &PathFilter{}
	}

	return &PathFilter{matcher: ignore.CompileIgnoreLines(lines...)}
}

// Excluded reports whether p falls under an excluded prefix.
func (f *PathFilter) Excluded(p m.Path) bool {
	if f == nil || f.matcher == nil {
		return false
	}

	return f.matcher.MatchesPath(path.Clean(string(p)))
}
