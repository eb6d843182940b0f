package util

import (
	"os"

	"github.com/pkg/errors"
)

// Exists checks whether the path exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// CreateDirectoryIfNotExists creates a directory and its parents unless
// it already exists, an existing non-directory is an error
func CreateDirectoryIfNotExists(path string, mode os.FileMode) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return errors.Errorf("%s exists and is not a directory", path)
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return errors.Wrapf(err, "failed to inspect %s", path)
	}

	if err = os.MkdirAll(path, mode); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", path)
	}

	return nil
}
