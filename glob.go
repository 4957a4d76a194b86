package streadmulti

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ResolveGlob expands pattern into a sorted, deduplicated list of file paths.
// A leading "~" is the user home directory and "**" matches any number of
// directories. Relative patterns resolve against the working directory. No
// match is not an error.
func ResolveGlob(pattern string) ([]string, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	expanded, err := expandHome(pattern)
	if err != nil {
		return nil, err
	}
	if !doublestar.ValidatePathPattern(expanded) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}

	matches, err := doublestar.FilepathGlob(expanded, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Clean(m))
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

func expandHome(pattern string) (string, error) {
	if pattern != "~" && !strings.HasPrefix(pattern, "~/") && !strings.HasPrefix(pattern, "~"+string(filepath.Separator)) {
		return pattern, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: cannot expand ~: %v", ErrInvalidPattern, err)
	}
	return filepath.Join(home, pattern[1:]), nil
}
