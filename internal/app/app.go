package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"taxarchive/internal/archive"
	"taxarchive/internal/classify"
	"taxarchive/internal/config"
	"taxarchive/internal/database"
	"taxarchive/internal/encryption"
	osfs "taxarchive/internal/fs"
	"taxarchive/internal/report"
	"taxarchive/internal/vault"
	"taxarchive/internal/watch"
)

// snapshotName is the vault metadata item holding the database snapshot.
const snapshotName = "db"

// appDatabase is the store plus the lifecycle hooks the app needs.
type appDatabase interface {
	archive.Store
	CheckMigrations() error
	BackupTo(destPath string) error
}

// App is the application layer between the CLI and archive.Service.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the DB lifecycle on Close.
type App struct {
	cfg       *config.Config
	db        appDatabase
	vault     archive.Vault
	fsmgr     *osfs.OSFilesystemManager
	encryptor archive.Encryptor
	service   *archive.Service
	logger    *slog.Logger
	op        *Operation
	logFile   io.Closer
}

// New creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Sync", "Scan").
// The caller must call Close when done.
func New(cfg *config.Config, operation string) (*App, error) {
	return newApp(cfg, operation, os.Stderr)
}

func newApp(cfg *config.Config, operation string, stderr io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fsmgr := osfs.NewOSFilesystemManager()
	ignore, err := osfs.LoadIgnoreMatcher(cfg.Archive.Root, cfg.Archive.Ignore)
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var v archive.Vault
	if len(cfg.Vaults) > 0 {
		v, err = vault.NewVaultFromConfig(cfg.Vaults[0])
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.ArchiveID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	if v != nil {
		if err := checkSnapshotVersion(db, v, cfg.ArchiveID); err != nil {
			db.Close()
			return nil, err
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, cfg.Log, runID, stderr)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc, err := archive.NewService(db, v, enc, fsmgr,
		classify.NewFilenameClassifier(cfg.Archive.Categories),
		&slogAdapter{l: logger}, archive.RealClock{}, archive.UUIDGenerator{},
		serviceOptions(cfg, ignore))
	if err != nil {
		logFile.Close()
		db.Close()
		return nil, fmt.Errorf("creating service: %w", err)
	}

	return &App{
		cfg:       cfg,
		db:        db,
		vault:     v,
		fsmgr:     fsmgr,
		encryptor: enc,
		service:   svc,
		logger:    logger,
		op:        NewOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

// checkSnapshotVersion refuses to run against a local database that is
// older than the snapshot another machine uploaded.
func checkSnapshotVersion(db appDatabase, v archive.Vault, archiveID string) error {
	remoteVersion, err := v.GetMetadataVersion(archiveID, snapshotName)
	if err != nil {
		return fmt.Errorf("checking remote metadata version: %w", err)
	}
	localMax, err := db.MaxOperationID()
	if err != nil {
		return fmt.Errorf("checking local metadata version: %w", err)
	}
	if remoteVersion > localMax {
		return fmt.Errorf("local database is behind remote (local=%d, remote=%d): restore from vault or re-initialize", localMax, remoteVersion)
	}
	return nil
}

func serviceOptions(cfg *config.Config, ignore archive.PathMatcher) archive.ServiceOptions {
	exclude := cfg.Archive.ExcludeDirs
	if len(exclude) == 0 {
		exclude = archive.DefaultExcludeDirs
	}
	planner := archive.DefaultPlannerOptions()
	planner.DeleteDuplicates = cfg.Sync.DeleteDuplicates
	planner.QuarantineDuplicates = cfg.Sync.QuarantineDuplicates
	planner.MinConfidence = cfg.Sync.MinConfidence
	if cfg.Sync.QuarantineDir != "" {
		planner.QuarantineDir = cfg.Sync.QuarantineDir
	}

	return archive.ServiceOptions{
		Scanner: archive.ScannerOptions{
			ExcludeDirs: exclude,
			Categories:  cfg.Archive.Categories,
			Ignore:      ignore,
			CacheSize:   cfg.Archive.HashCacheSize,
		},
		Categories:       cfg.Archive.Categories,
		OrphanExceptions: cfg.Archive.OrphanExceptions,
		Planner:          planner,
	}
}

// Config returns the config the app was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for DB-mutating commands.
func (a *App) persistOperation() error {
	if a.op.Persisted() {
		return nil
	}
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Scan scans the archive root and stores the manifest.
func (a *App) Scan() (*archive.Scan, []archive.FileRecord, error) {
	if err := a.persistOperation(); err != nil {
		return nil, nil, err
	}
	scan, records, err := a.service.Scan(a.cfg.Archive.Root)
	return scan, records, a.op.Fail(err)
}

// Validate scans and validates the archive root.
func (a *App) Validate() (archive.ValidationReport, error) {
	if err := a.persistOperation(); err != nil {
		return archive.ValidationReport{}, err
	}
	vr, err := a.service.Validate(a.cfg.Archive.Root)
	return vr, a.op.Fail(err)
}

// Plan scans the archive root and returns the sync plan without applying it.
func (a *App) Plan() (archive.SyncPlan, error) {
	if err := a.persistOperation(); err != nil {
		return archive.SyncPlan{}, err
	}
	plan, err := a.service.Plan(a.cfg.Archive.Root)
	return plan, a.op.Fail(err)
}

// Sync scans, plans and applies. Per-file failures mark the operation as failed.
func (a *App) Sync(opts archive.SyncOptions) (archive.SyncPlan, archive.SyncResult, error) {
	a.op.Parameters = fmt.Sprintf("dry_run=%t delete_duplicates=%t quarantine_duplicates=%t",
		opts.DryRun, opts.DeleteDuplicates, opts.QuarantineDuplicates)
	if err := a.persistOperation(); err != nil {
		return archive.SyncPlan{}, archive.SyncResult{}, err
	}
	plan, result, err := a.service.Sync(a.cfg.Archive.Root, opts)
	if len(result.Errors) > 0 {
		a.op.Status = StatusError
	}
	return plan, result, a.op.Fail(err)
}

// Watch syncs the archive every time a batch of files lands in the inbox,
// until ctx is cancelled.
func (a *App) Watch(ctx context.Context) error {
	debounce, err := a.cfg.Watch.DebounceDuration()
	if err != nil {
		return err
	}
	inbox := a.cfg.Watch.Inbox
	if inbox == "" {
		inbox = filepath.Join(a.cfg.Archive.Root, "inbox")
	}
	if err := a.persistOperation(); err != nil {
		return err
	}

	w := watch.New(inbox, debounce, &slogAdapter{l: a.logger})
	err = w.Run(ctx, func(ctx context.Context, paths []string) error {
		_, result, err := a.service.Sync(a.cfg.Archive.Root, archive.SyncOptions{})
		if err != nil {
			a.op.Status = StatusError
			return err
		}
		if len(result.Errors) > 0 {
			a.op.Status = StatusError
			return fmt.Errorf("sync finished with %d errors", len(result.Errors))
		}
		return nil
	})
	return a.op.Fail(err)
}

// Lookup returns the manifest entries with the given content hash.
func (a *App) Lookup(hash string) ([]archive.FileRecord, error) {
	return a.service.Lookup(hash)
}

// LatestScan returns the newest stored scan and its records.
func (a *App) LatestScan() (*archive.Scan, []archive.FileRecord, error) {
	return a.service.LatestScan()
}

// GetHistory returns the most recent operations.
func (a *App) GetHistory(limit int) ([]*archive.Operation, error) {
	return a.service.GetHistory(limit)
}

// Stashes returns the most recent stashes.
func (a *App) Stashes(limit int) ([]*archive.Stash, error) {
	return a.service.Stashes(limit)
}

// RestoreStash writes a stashed file to rawDest, which must not exist.
// passphrase is only called when the stash is encrypted.
func (a *App) RestoreStash(checksum, rawDest string, passphrase func() (string, error)) error {
	dest, err := filepath.Abs(rawDest)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	stash, err := a.service.FindStash(checksum)
	if err != nil {
		return err
	}
	if stash == nil {
		return fmt.Errorf("no stash with checksum %s", checksum)
	}

	var decryptCtx archive.DecryptionContext
	if stash.Encrypted {
		if a.encryptor == nil {
			return fmt.Errorf("stash is encrypted but encryption is not configured")
		}
		pass, err := passphrase()
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		decryptCtx, err = a.encryptor.Unlock(pass)
		if err != nil {
			return fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return a.service.RestoreStash(checksum, dest, decryptCtx)
}

// Report writes the latest scan and its validation report as an XLSX workbook.
func (a *App) Report(outPath string) (*archive.Scan, error) {
	scan, records, err := a.service.LatestScan()
	if err != nil {
		return nil, err
	}
	if scan == nil {
		return nil, fmt.Errorf("no scan recorded: run `taxarchive scan` first")
	}

	wb, err := report.New(scan, records, a.service.ValidateRecords(records))
	if err != nil {
		return nil, fmt.Errorf("building report: %w", err)
	}
	defer wb.Close()

	if err := wb.Save(outPath); err != nil {
		return nil, err
	}
	a.logger.Info("report written", "path", outPath, "scan", scan.ID, "files", len(records))
	return scan, nil
}

// InitKeys generates the encryption key pair protected by passphrase.
func (a *App) InitKeys(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is disabled: set encryption.type = \"age\" in the config")
	}
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption keys: %w", err)
	}
	return nil
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, backs up the DB, and uploads to vault.
// For non-persisted operations: just closes the database.
func (a *App) Close() error {
	var firstErr error
	setErr := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			setErr(fmt.Errorf("finishing operation: %w", err))
		}

		// Snapshot before closing; upload after, so the file is complete.
		var tmpPath string
		if a.vault != nil {
			var err error
			if tmpPath, err = a.snapshot(); err != nil {
				setErr(err)
			}
		}

		if err := a.db.Close(); err != nil {
			setErr(fmt.Errorf("closing database: %w", err))
		}

		if tmpPath != "" {
			if err := a.uploadSnapshot(tmpPath, a.op.ID); err != nil {
				setErr(err)
			}
			os.Remove(tmpPath)
		}
	} else if err := a.db.Close(); err != nil {
		setErr(fmt.Errorf("closing database: %w", err))
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// snapshot copies the database into a temp file and returns its path.
func (a *App) snapshot() (string, error) {
	tmpFile, err := os.CreateTemp("", "taxarchive-db-backup-*.db")
	if err != nil {
		return "", fmt.Errorf("creating temp file for db backup: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	if err := a.db.BackupTo(tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("backing up database: %w", err)
	}
	return tmpPath, nil
}

// uploadSnapshot uploads the database snapshot to the vault as metadata.
func (a *App) uploadSnapshot(path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db backup for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db backup: %w", err)
	}

	if err := a.vault.PutMetadata(a.cfg.ArchiveID, snapshotName, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading metadata to vault: %w", err)
	}
	return nil
}
