package args

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Directory validation failures. Each is distinct so callers can report the
// exact reason a launch was refused.
var (
	ErrDirNotSpecified = errors.New("directory not specified")
	ErrDirNotExist     = errors.New("directory does not exist")
	ErrDirNotDir       = errors.New("path is not a directory")
	ErrDirNotReadable  = errors.New("directory is not readable")
)

// ValidateDirectory checks that path names a readable, traversable directory.
func ValidateDirectory(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrDirNotSpecified
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrDirNotExist, path)
		}
		return fmt.Errorf("%w: %s: %v", ErrDirNotReadable, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrDirNotDir, path)
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDirNotReadable, path, err)
	}
	return nil
}
