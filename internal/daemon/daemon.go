// Package daemon locates and validates the companion executable every
// instance drives. The check runs once at boot; a missing or unusable
// executable stops botherd before any instance starts.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"botherd/pkg/logging"
)

// ErrNotFound is returned when no companion executable can be located.
var ErrNotFound = errors.New("companion daemon not found")

// lookPath is overridable in tests.
var lookPath = exec.LookPath

// Resolve returns the absolute path of the companion executable.
//
// An explicit path is used as is. Otherwise name is looked up next to the
// botherd binary (baseDir) first, then on PATH.
func Resolve(explicit, name, baseDir string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", fmt.Errorf("failed to resolve daemon path %s: %w", explicit, err)
		}
		return abs, nil
	}

	candidate := filepath.Join(baseDir, executableName(name))
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}

	found, err := lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s is neither in %s nor on PATH", ErrNotFound, name, baseDir)
	}
	abs, err := filepath.Abs(found)
	if err != nil {
		return "", fmt.Errorf("failed to resolve daemon path %s: %w", found, err)
	}
	return abs, nil
}

// Check verifies that path is an existing, executable regular file.
func Check(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to inspect daemon %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("daemon %s is not a regular file", path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("daemon %s is not executable", path)
	}

	logging.Debug("Daemon", "Companion daemon found at %s", path)
	return nil
}

// Prerequisites resolves and checks the companion executable.
func Prerequisites(explicit, name, baseDir string) (string, error) {
	path, err := Resolve(explicit, name, baseDir)
	if err != nil {
		return "", err
	}
	if err := Check(path); err != nil {
		return "", err
	}
	return path, nil
}

func executableName(name string) string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		return name + ".exe"
	}
	return name
}
