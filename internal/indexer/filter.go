package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Skip reasons reported by Filter
const (
	ReasonIgnored  = "ignored"
	ReasonHidden   = "hidden"
	ReasonVendored = "vendored"
	ReasonBinary   = "binary"
	ReasonEmpty    = "empty"
)

// Filter decides which discovered files are vectorised
type Filter struct {
	root    string
	ignore  *gitignore.GitIgnore
	force   bool
	vendors bool
}

// NewFilter reads <root>/.gitignore when present.
// With force set, ignore rules and vendored-path detection are disabled.
func NewFilter(root string, force bool) (*Filter, error) {
	f := &Filter{root: root, force: force}
	if force {
		return f, nil
	}

	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		gi, err := gitignore.CompileIgnoreFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read .gitignore: %w", err)
		}
		f.ignore = gi
	}
	f.vendors = true
	return f, nil
}

// SkipPath reports why path should not be read, or "" to keep it
func (f *Filter) SkipPath(path string) string {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	if hidden(rel) {
		return ReasonHidden
	}
	if f.force {
		return ""
	}
	if f.ignore != nil && f.ignore.MatchesPath(rel) {
		return ReasonIgnored
	}
	if f.vendors && enry.IsVendor(rel) {
		return ReasonVendored
	}
	return ""
}

// SkipContent reports why file content should not be stored, or "" to keep it
func (f *Filter) SkipContent(content []byte) string {
	if len(content) == 0 {
		return ReasonEmpty
	}
	if enry.IsBinary(content) {
		return ReasonBinary
	}
	return ""
}

// hidden reports whether any path component starts with a dot
func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
