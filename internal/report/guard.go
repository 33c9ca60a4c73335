package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Existing returns the paths that already exist. A run that would overwrite
// any of them does no work.
func Existing(paths ...string) ([]string, error) {
	var found []string
	for _, p := range paths {
		_, err := os.Stat(p)
		switch {
		case err == nil:
			found = append(found, p)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return found, nil
}
