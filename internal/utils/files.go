package utils

import (
	"fmt"
	"os"
)

// Standard default permissions
// Dir:  u=rwx, g=rwx, o=rx (Requires +x to traverse)
const PermDir os.FileMode = 0775

// Executable script: u=rwx, g=rx, o=rx
const PermExec os.FileMode = 0755

// EnsureDir creates a directory if it does not exist. Safe under
// repeated or concurrent calls with the same path.
func EnsureDir(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(path, PermDir); err != nil {
		return fmt.Errorf("could not create directory %s: %w", path, err)
	}
	return nil
}
