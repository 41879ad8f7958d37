package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExpandPath expands a leading ~ and environment variables.
// With absolute set the result is made absolute.
func ExpandPath(path string, absolute bool) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	path = os.ExpandEnv(path)
	if absolute {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
	}
	return path
}

// ExpandEnvs replaces $VAR string values in m, recursing into nested maps.
// References to unset variables are kept verbatim.
func ExpandEnvs(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			m[k] = expandSet(val)
		case map[string]any:
			ExpandEnvs(val)
		}
	}
}

func expandSet(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "$" + name
	})
}

// ExpandGlobs turns files, directories and glob patterns into a sorted list of files.
// Directories contribute their files, and with recursive set the files of every
// subdirectory. Paths that match nothing are dropped.
func ExpandGlobs(paths []string, recursive bool) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}

	for _, pattern := range paths {
		matches, err := filepath.Glob(ExpandPath(pattern, false))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				continue
			}
			if !info.IsDir() {
				add(m)
				continue
			}
			if err := walkDir(m, recursive, add); err != nil {
				return nil, err
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func walkDir(root string, recursive bool, add func(string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			add(path)
		}
		return nil
	})
}

// FindProjectConfigDir walks upward from start and returns the first .vectorcode
// or .git directory found. A directory holding both anchors returns .vectorcode.
// It returns "" when no anchor exists.
func FindProjectConfigDir(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		for _, anchor := range []string{ProjectDir, ".git"} {
			candidate := filepath.Join(dir, anchor)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// FindProjectRoot returns the directory holding the nearest project anchor above start,
// or start itself when there is none
func FindProjectRoot(start string) string {
	if anchor := FindProjectConfigDir(start); anchor != "" {
		return filepath.Dir(anchor)
	}
	return ExpandPath(start, true)
}
