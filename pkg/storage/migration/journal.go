package migration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/storage"
)

// Cutover steps, recorded in errors and logs.
const (
	StepJournal       = "write_journal"
	StepRemoveOld     = "remove_previous_backup"
	StepBackupCurrent = "backup_current"
	StepPromoteNew    = "promote_new"
	StepClearJournal  = "clear_journal"
)

// Files names the storage files of one configuration directory.
type Files struct {
	Dir     string
	Current string
	New     string
	Old     string
	Journal string
}

// FilesFor returns the storage file set for the storage file at path.
// The new, backup and journal files live next to it.
func FilesFor(path string) Files {
	dir := filepath.Dir(path)
	return Files{
		Dir:     dir,
		Current: path,
		New:     filepath.Join(dir, config.DefaultStorageFileNew),
		Old:     filepath.Join(dir, config.DefaultStorageFileOld),
		Journal: filepath.Join(dir, config.DefaultMigrationJournal),
	}
}

// journal is written before the storage files are rotated. Its presence
// means the data was migrated and the rotation must be completed.
type journal struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Migrated  int       `json:"migrated"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

func writeJournal(path string, j journal) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write journal: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync journal: %w", err)
	}
	return f.Close()
}

func readJournal(path string) (journal, error) {
	var j journal
	data, err := os.ReadFile(path)
	if err != nil {
		return j, err
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return j, fmt.Errorf("decode journal: %w", err)
	}
	return j, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// rotate moves the current storage file to the backup slot and the new
// file to the current slot. The journal is written first and removed
// last, so an interrupted rotation is finished by Recover.
func rotate(files Files, j journal) error {
	if err := writeJournal(files.Journal, j); err != nil {
		return &storage.CutoverError{
			Step:         StepJournal,
			Instructions: manualSteps(files),
			Cause:        err,
		}
	}
	return rollForward(files)
}

// rollForward completes a journaled rotation from whatever state it was
// left in. Every step is skipped when its effect is already present.
func rollForward(files Files) error {
	hasNew, err := exists(files.New)
	if err != nil {
		return cutoverError(StepPromoteNew, files, err)
	}
	hasCurrent, err := exists(files.Current)
	if err != nil {
		return cutoverError(StepBackupCurrent, files, err)
	}

	switch {
	case hasNew && hasCurrent:
		if err := os.Remove(files.Old); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cutoverError(StepRemoveOld, files, err)
		}
		if err := os.Rename(files.Current, files.Old); err != nil {
			return cutoverError(StepBackupCurrent, files, err)
		}
		if err := os.Rename(files.New, files.Current); err != nil {
			return cutoverError(StepPromoteNew, files, err)
		}
	case hasNew && !hasCurrent:
		if err := os.Rename(files.New, files.Current); err != nil {
			return cutoverError(StepPromoteNew, files, err)
		}
	case !hasNew && hasCurrent:
		// already rotated
	default:
		return cutoverError(StepPromoteNew, files,
			fmt.Errorf("neither %s nor %s exists", filepath.Base(files.New), filepath.Base(files.Current)))
	}

	if err := os.Remove(files.Journal); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cutoverError(StepClearJournal, files, err)
	}
	return nil
}

func cutoverError(step string, files Files, cause error) *storage.CutoverError {
	return &storage.CutoverError{Step: step, Instructions: manualSteps(files), Cause: cause}
}

func manualSteps(files Files) []string {
	cur := filepath.Base(files.Current)
	next := filepath.Base(files.New)
	old := filepath.Base(files.Old)
	return []string{
		fmt.Sprintf("stop the service and open %s", files.Dir),
		fmt.Sprintf("if %s still exists, delete %s and rename %s to %s", next, old, cur, old),
		fmt.Sprintf("rename %s to %s", next, cur),
		fmt.Sprintf("delete %s", filepath.Base(files.Journal)),
		"do not start a second migration: the data was already copied to the new backend",
	}
}

// Recover completes a rotation interrupted by a crash. It runs at
// startup before a migration is detected and never copies data. Without
// a journal it does nothing.
func Recover(storagePath string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage.migration")
	files := FilesFor(storagePath)

	ok, err := exists(files.Journal)
	if err != nil {
		return fmt.Errorf("stat migration journal: %w", err)
	}
	if !ok {
		return nil
	}

	j, err := readJournal(files.Journal)
	if err != nil {
		logger.Warn("migration journal unreadable, completing rotation anyway", "error", err)
	}

	logger.Warn("found interrupted storage rotation, completing it",
		"migration_id", j.ID,
		"from", j.From,
		"to", j.To,
	)

	if err := rollForward(files); err != nil {
		logCutoverError(logger, err)
		return err
	}

	logger.Info("storage rotation completed", "migration_id", j.ID)
	return nil
}

func logCutoverError(logger *slog.Logger, err error) {
	var cutErr *storage.CutoverError
	if errors.As(err, &cutErr) {
		logger.Error("storage file rotation failed, manual recovery required",
			"step", cutErr.Step,
			"error", cutErr.Cause,
			"instructions", cutErr.Instructions,
		)
		return
	}
	logger.Error("storage file rotation failed", "error", err)
}
