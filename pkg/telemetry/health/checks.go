package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// RotationCheck fails while the storage rotation journal exists, which
// means a migration cutover was interrupted and the storage files may not
// describe the active backend yet.
func RotationCheck(journalPath string) CheckFunc {
	return func(ctx context.Context) error {
		_, err := os.Stat(journalPath)
		switch {
		case err == nil:
			return fmt.Errorf("storage file rotation incomplete, journal %s present", journalPath)
		case errors.Is(err, fs.ErrNotExist):
			return nil
		default:
			return fmt.Errorf("check rotation journal: %w", err)
		}
	}
}

// BacklogCheck fails when more than max cached cells wait to be flushed.
// A growing backlog means flushes keep failing. A non-positive max
// disables the check.
func BacklogCheck(dirtyCells func() int, max int) CheckFunc {
	return func(ctx context.Context) error {
		if max <= 0 {
			return nil
		}
		if n := dirtyCells(); n > max {
			return fmt.Errorf("%d cached cells not flushed (limit %d)", n, max)
		}
		return nil
	}
}
