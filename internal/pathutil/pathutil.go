// Package pathutil provides shared path validation helpers.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSamePath is returned when the source and destination resolve to the same file.
var ErrSamePath = errors.New("input and output refer to the same file")

// ValidateFilePath rejects paths that cannot name a regular file:
// empty paths, paths containing NUL bytes, and paths ending in a separator.
func ValidateFilePath(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.Contains(filePath, "\x00") {
		return fmt.Errorf("file path contains invalid characters")
	}
	if strings.HasSuffix(filepath.ToSlash(filePath), "/") {
		return fmt.Errorf("file path %q names a directory", filePath)
	}
	return nil
}

// Resolve validates filePath and returns its cleaned absolute form.
func Resolve(filePath string) (string, error) {
	if err := ValidateFilePath(filePath); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", filePath, err)
	}
	return abs, nil
}

// ValidateDistinct returns ErrSamePath when src and dst name the same file.
// Creating the destination truncates it, so such a run would destroy its own input.
// Paths are compared after resolution; when both files exist, os.SameFile
// also catches links and case-insensitive filesystems.
func ValidateDistinct(src, dst string) error {
	absSrc, err := Resolve(src)
	if err != nil {
		return err
	}
	absDst, err := Resolve(dst)
	if err != nil {
		return err
	}
	if absSrc == absDst {
		return fmt.Errorf("%w: %s", ErrSamePath, absSrc)
	}

	srcInfo, srcErr := os.Stat(absSrc)
	dstInfo, dstErr := os.Stat(absDst)
	if srcErr == nil && dstErr == nil && os.SameFile(srcInfo, dstInfo) {
		return fmt.Errorf("%w: %s and %s", ErrSamePath, absSrc, absDst)
	}
	return nil
}
