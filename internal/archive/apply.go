package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
)

// BackupSuffix marks the temporary sibling holding a file displaced by an update.
const BackupSuffix = ".taxarchive-bak"

// Stash reasons.
const (
	ReasonReplaced = "replaced"
	ReasonDeleted  = "deleted"
)

// Stasher preserves a file before the archive drops it.
type Stasher interface {
	Stash(originalPath string, r io.Reader, size int64, checksum, reason string) error
}

// SyncResult summarizes one Apply call.
type SyncResult struct {
	Copied      int
	Updated     int
	Deleted     int
	Quarantined int
	Skipped     []string
	Errors      []string

	// Moved holds fresh records of every file moved, at its new location.
	Moved []FileRecord
}

// ApplierOptions configures an Applier.
type ApplierOptions struct {
	// DeleteEnabled permits planned deletions. Without it they are skipped.
	DeleteEnabled bool
}

// Applier executes sync plans against the filesystem. A failing operation is
// recorded in the result and the next one runs.
type Applier struct {
	fsmgr   FilesystemManager
	scanner *Scanner
	stasher Stasher
	logger  Logger
	opts    ApplierOptions
}

// NewApplier creates an Applier. stasher may be nil, in which case displaced
// files are discarded.
func NewApplier(fsmgr FilesystemManager, scanner *Scanner, stasher Stasher, logger Logger, opts ApplierOptions) *Applier {
	return &Applier{
		fsmgr:   fsmgr,
		scanner: scanner,
		stasher: stasher,
		logger:  logger,
		opts:    opts,
	}
}

// Apply runs plan against root. A dry run only counts.
func (a *Applier) Apply(root *Path, plan SyncPlan, dryRun bool) SyncResult {
	var result SyncResult

	if dryRun {
		result.Copied = len(plan.ToCopy)
		result.Updated = len(plan.ToUpdate)
		result.Quarantined = len(plan.DuplicateMoves)
		for _, p := range plan.ToDelete {
			if a.opts.DeleteEnabled {
				result.Deleted++
			} else {
				result.Skipped = append(result.Skipped, deleteDisabled(p))
			}
		}
		return result
	}

	for _, act := range plan.ToCopy {
		if err := a.move(root, act); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("copy %s -> %s: %v", act.Record.Path, act.Target, err))
			continue
		}
		result.Copied++
		result.Moved = append(result.Moved, a.refresh(root, act))
		a.logger.Info("file copied", "from", act.Record.Path, "to", act.Target)
	}

	for _, act := range plan.ToUpdate {
		if err := a.update(root, act, &result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("update %s -> %s: %v", act.Record.Path, act.Target, err))
			continue
		}
		result.Updated++
		result.Moved = append(result.Moved, a.refresh(root, act))
		a.logger.Info("file updated", "from", act.Record.Path, "to", act.Target)
	}

	for _, act := range plan.DuplicateMoves {
		if err := a.move(root, act); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("quarantine %s -> %s: %v", act.Record.Path, act.Target, err))
			continue
		}
		result.Quarantined++
		result.Moved = append(result.Moved, a.refresh(root, act))
		a.logger.Info("duplicate quarantined", "from", act.Record.Path, "to", act.Target)
	}

	for _, p := range plan.ToDelete {
		if !a.opts.DeleteEnabled {
			result.Skipped = append(result.Skipped, deleteDisabled(p))
			continue
		}
		if err := a.delete(root, p); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", p, err))
			continue
		}
		result.Deleted++
		a.logger.Info("duplicate deleted", "path", p)
	}

	if len(result.Errors) > 0 {
		a.logger.Warn("sync finished with errors", "errors", len(result.Errors))
	}
	return result
}

// move relocates a record to a target that must not exist yet.
func (a *Applier) move(root *Path, act Action) error {
	src := root.Join(act.Record.Path)
	dst := root.Join(act.Target)

	if err := a.fsmgr.MkdirAll(filepath.Dir(dst)); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	if _, err := a.fsmgr.Stat(dst); err == nil {
		return fmt.Errorf("destination already exists")
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking destination: %w", err)
	}
	if err := a.fsmgr.Move(src, dst); err != nil {
		return fmt.Errorf("moving file: %w", err)
	}
	return nil
}

// update replaces the file at the target. The displaced file is kept as a
// backup sibling until the new file is in place and the old one is stashed.
// A failed stash leaves the backup on disk and is reported without undoing
// the update.
func (a *Applier) update(root *Path, act Action, result *SyncResult) error {
	src := root.Join(act.Record.Path)
	dst := root.Join(act.Target)
	backup, err := a.freeBackup(dst)
	if err != nil {
		return err
	}

	if err := a.fsmgr.Move(dst, backup); err != nil {
		return fmt.Errorf("backing up existing file: %w", err)
	}
	if err := a.fsmgr.Move(src, dst); err != nil {
		if restoreErr := a.fsmgr.Move(backup, dst); restoreErr != nil {
			return fmt.Errorf("moving file: %w (restoring backup %s: %v)", err, backup, restoreErr)
		}
		return fmt.Errorf("moving file: %w", err)
	}

	if err := a.stashAndRemove(backup, act.Target, ReasonReplaced); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("update %s: backup kept at %s: %v", act.Target, filepath.Base(backup), err))
	}
	return nil
}

// freeBackup returns the first unused backup name for dst. Backups kept by
// earlier failed stashes are left alone.
func (a *Applier) freeBackup(dst string) (string, error) {
	for n := 1; ; n++ {
		candidate := dst + BackupSuffix
		if n > 1 {
			candidate = fmt.Sprintf("%s.%d%s", dst, n, BackupSuffix)
		}
		_, err := a.fsmgr.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking backup %s: %w", filepath.Base(candidate), err)
		}
	}
}

// delete stashes and removes one file.
func (a *Applier) delete(root *Path, relPath string) error {
	if err := a.stashAndRemove(root.Join(relPath), relPath, ReasonDeleted); err != nil {
		return err
	}
	a.scanner.Invalidate(root, relPath)
	return nil
}

func (a *Applier) stashAndRemove(absPath, originalPath, reason string) error {
	if a.stasher != nil {
		if err := a.stash(absPath, originalPath, reason); err != nil {
			return fmt.Errorf("stashing %s: %w", originalPath, err)
		}
	}
	if err := a.fsmgr.Remove(absPath); err != nil {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}

func (a *Applier) stash(absPath, originalPath, reason string) error {
	info, err := a.fsmgr.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	checksum, err := a.scanner.hashFile(absPath)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}

	f, err := a.fsmgr.Open(absPath)
	if err != nil {
		return fmt.Errorf("opening: %w", err)
	}
	defer f.Close()

	return a.stasher.Stash(originalPath, f, info.Size(), checksum, reason)
}

// refresh drops stale cache entries and rescans the moved file.
func (a *Applier) refresh(root *Path, act Action) FileRecord {
	a.scanner.Invalidate(root, act.Record.Path)
	a.scanner.Invalidate(root, act.Target)
	return a.scanner.Record(root, act.Target)
}

func deleteDisabled(p string) string {
	return fmt.Sprintf("delete %s skipped: deletion is disabled", p)
}
