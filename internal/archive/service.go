package archive

import (
	"fmt"
)

// ServiceOptions carries the tunables of the archive pipeline.
type ServiceOptions struct {
	Scanner          ScannerOptions
	Categories       []string
	OrphanExceptions []string
	Planner          PlannerOptions
}

// SyncOptions overrides the configured duplicate handling for one sync.
type SyncOptions struct {
	DryRun               bool
	DeleteDuplicates     bool
	QuarantineDuplicates bool
}

// Service is the orchestration layer that runs scan, validate, plan and
// apply against an archive root and records the outcome in the store.
type Service struct {
	store      Store
	vault      Vault
	encryptor  Encryptor
	fsmgr      FilesystemManager
	classifier Classifier
	logger     Logger
	clock      Clock
	idgen      IDGenerator

	scanner   *Scanner
	validator *Validator
	opts      ServiceOptions
}

// NewService creates a Service with the provided dependencies.
// vault and encryptor may be nil; without a vault displaced files are not kept.
func NewService(store Store, vault Vault, encryptor Encryptor, fsmgr FilesystemManager, classifier Classifier, logger Logger, clock Clock, idgen IDGenerator, opts ServiceOptions) (*Service, error) {
	if opts.Scanner.Categories == nil {
		opts.Scanner.Categories = opts.Categories
	}
	scanner, err := NewScanner(fsmgr, logger, opts.Scanner)
	if err != nil {
		return nil, fmt.Errorf("creating scanner: %w", err)
	}

	return &Service{
		store:      store,
		vault:      vault,
		encryptor:  encryptor,
		fsmgr:      fsmgr,
		classifier: classifier,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		scanner:    scanner,
		validator:  NewValidator(opts.Categories, opts.OrphanExceptions),
		opts:       opts,
	}, nil
}

// Scan walks the archive root, saves the manifest and returns the records.
func (s *Service) Scan(rawRoot string) (*Scan, []FileRecord, error) {
	root, err := s.fsmgr.Resolve(rawRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving archive root: %w", err)
	}
	return s.scan(root)
}

func (s *Service) scan(root *Path) (*Scan, []FileRecord, error) {
	started := s.clock.Now()
	records, err := s.scanner.Scan(root)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning archive: %w", err)
	}

	scan := &Scan{
		ID:         s.idgen.New(),
		Root:       root.String(),
		StartedAt:  started,
		TotalFiles: len(records),
	}
	if err := s.store.SaveScan(scan, records); err != nil {
		return nil, nil, fmt.Errorf("saving scan: %w", err)
	}

	s.logger.Info("archive scanned", "scan", scan.ID, "root", root.String(), "files", len(records))
	return scan, records, nil
}

// Validate scans the archive root and checks the records.
func (s *Service) Validate(rawRoot string) (ValidationReport, error) {
	_, records, err := s.Scan(rawRoot)
	if err != nil {
		return ValidationReport{}, err
	}
	report := s.validator.Validate(records)
	s.logger.Info("archive validated",
		"files", report.TotalFiles,
		"errors", report.Count(LevelError),
		"warnings", report.Count(LevelWarning))
	return report, nil
}

// ValidateRecords checks already scanned records.
func (s *Service) ValidateRecords(records []FileRecord) ValidationReport {
	return s.validator.Validate(records)
}

// Plan scans the archive root and computes a sync plan with the configured options.
func (s *Service) Plan(rawRoot string) (SyncPlan, error) {
	_, records, err := s.Scan(rawRoot)
	if err != nil {
		return SyncPlan{}, err
	}
	return NewPlanner(s.classifier, s.opts.Planner).Plan(records), nil
}

// Sync scans, plans and applies. The configured duplicate handling is
// widened by opts. After a wet run the archive is rescanned so the stored
// manifest reflects the new layout.
func (s *Service) Sync(rawRoot string, opts SyncOptions) (SyncPlan, SyncResult, error) {
	root, err := s.fsmgr.Resolve(rawRoot)
	if err != nil {
		return SyncPlan{}, SyncResult{}, fmt.Errorf("resolving archive root: %w", err)
	}
	scan, records, err := s.scan(root)
	if err != nil {
		return SyncPlan{}, SyncResult{}, err
	}
	logger := s.logger.With("scan", scan.ID)

	plannerOpts := s.opts.Planner
	plannerOpts.DeleteDuplicates = plannerOpts.DeleteDuplicates || opts.DeleteDuplicates
	plannerOpts.QuarantineDuplicates = plannerOpts.QuarantineDuplicates || opts.QuarantineDuplicates
	plan := NewPlanner(s.classifier, plannerOpts).Plan(records)

	var stasher Stasher
	if s.vault != nil {
		stasher = s
	}
	applier := NewApplier(s.fsmgr, s.scanner, stasher, logger, ApplierOptions{DeleteEnabled: plannerOpts.DeleteDuplicates})
	result := applier.Apply(root, plan, opts.DryRun)

	logger.Info("sync complete",
		"dry_run", opts.DryRun,
		"copied", result.Copied,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"quarantined", result.Quarantined,
		"errors", len(result.Errors))

	if !opts.DryRun && !plan.Empty() {
		if _, _, err := s.scan(root); err != nil {
			return plan, result, fmt.Errorf("rescanning after sync: %w", err)
		}
	}
	return plan, result, nil
}

// Lookup returns the records of the latest scan whose content has the given hash.
func (s *Service) Lookup(hash string) ([]FileRecord, error) {
	records, err := s.store.FindRecordsByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("looking up hash: %w", err)
	}
	return records, nil
}

// LatestScan returns the newest stored scan, or nil if there is none.
func (s *Service) LatestScan() (*Scan, []FileRecord, error) {
	scan, records, err := s.store.LatestScan()
	if err != nil {
		return nil, nil, fmt.Errorf("loading latest scan: %w", err)
	}
	return scan, records, nil
}

// GetHistory returns the most recent operations, newest first.
func (s *Service) GetHistory(limit int) ([]*Operation, error) {
	ops, err := s.store.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
