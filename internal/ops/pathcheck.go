package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/siftly/siftly/internal/config"
	"github.com/siftly/siftly/internal/errors"
)

// ValidatePath checks a CSV export destination. The file must end in .csv,
// sit directly in the exports directory or an allowed_paths entry, and
// neither it nor its directory may be a symlink. AllowUnsafePaths lifts
// the directory rule only.
func ValidatePath(path string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if hasDotDot(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".csv" {
		return errors.NewInvalidRequest("path must have .csv extension")
	}
	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		dirs, err := exportDirs(cfg)
		if err != nil {
			return err
		}
		parent := filepath.Dir(absPath)
		if !slices.Contains(dirs, parent) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", dirs))
		}
		if isSymlink(parent) {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	// The export open uses O_NOFOLLOW as well; this gives the clearer error.
	if isSymlink(absPath) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// exportDirs lists the directories an export may write into, absolute and
// with a symlinked allowed_paths entry replaced by its target. Relative
// allowed_paths entries are ignored.
func exportDirs(cfg *config.Config) ([]string, error) {
	def, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	candidates := []string{def}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				candidates = append(candidates, p)
			}
		}
	}

	dirs := make([]string, 0, len(candidates))
	for _, d := range candidates {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if isSymlink(abs) {
			if abs, err = filepath.EvalSymlinks(abs); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
		}
		dirs = append(dirs, abs)
	}
	return dirs, nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// DefaultExportsDir returns ~/.siftly/exports.
func DefaultExportsDir() (string, error) {
	base, err := config.BaseDir()
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return filepath.Join(base, "exports"), nil
}

// hasDotDot reports a ".." element under either separator.
func hasDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}
