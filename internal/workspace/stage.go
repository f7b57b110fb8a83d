// Package workspace owns the on-disk layout of a run: per-backend input and
// output directories namespaced by run id, and the helpers that stage them.
package workspace

import (
	"fmt"
	"os"
	"strings"
)

// StageDirectory ensures path exists as a directory, creating any missing
// ancestors. With reset, an existing tree at path is removed first so the
// caller starts from an empty directory. Filesystem errors are returned.
func StageDirectory(path string, reset bool) error {
	if path == "" {
		return fmt.Errorf("stage directory: empty path")
	}

	if reset {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("reset directory %s: %w", path, err)
		}
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}

	return nil
}

// SafeName reduces a structure name to a single path element usable as a
// file name. Separators and other unsafe characters become '_'.
func SafeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	safe := strings.Trim(b.String(), ".")
	if safe == "" {
		return "structure1"
	}
	return safe
}
