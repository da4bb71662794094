package archive

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// DefaultQuarantineDir is the top-level folder receiving duplicate losers.
const DefaultQuarantineDir = "_duplicates"

// Action moves one record to a target path relative to the archive root.
type Action struct {
	Record FileRecord
	Target string
}

// SyncPlan is the set of filesystem changes that canonicalize an archive.
// A plan is computed once and not modified afterwards.
type SyncPlan struct {
	ToCopy         []Action
	ToUpdate       []Action
	ToDelete       []string
	DuplicateMoves []Action
}

// Len returns the number of planned operations.
func (p *SyncPlan) Len() int {
	return len(p.ToCopy) + len(p.ToUpdate) + len(p.ToDelete) + len(p.DuplicateMoves)
}

// Empty reports whether the plan has nothing to do.
func (p *SyncPlan) Empty() bool {
	return p.Len() == 0
}

// PlannerOptions configures a Planner.
type PlannerOptions struct {
	// DeleteDuplicates plans deletion of every content duplicate but the winner.
	DeleteDuplicates bool

	// QuarantineDuplicates moves losers of a canonical-path conflict into QuarantineDir.
	QuarantineDuplicates bool
	QuarantineDir        string

	// MinConfidence is the lowest classifier confidence accepted for a missing year.
	MinConfidence float64
}

// DefaultPlannerOptions returns the options used when nothing is configured.
func DefaultPlannerOptions() PlannerOptions {
	return PlannerOptions{
		QuarantineDir: DefaultQuarantineDir,
		MinConfidence: 0.5,
	}
}

// Planner computes sync plans. It never touches the filesystem.
type Planner struct {
	classifier Classifier
	opts       PlannerOptions
}

// NewPlanner creates a Planner. classifier may be nil, in which case records
// without a folder year are left alone.
func NewPlanner(classifier Classifier, opts PlannerOptions) *Planner {
	if opts.QuarantineDir == "" {
		opts.QuarantineDir = DefaultQuarantineDir
	}
	return &Planner{classifier: classifier, opts: opts}
}

// slot tracks who currently holds a canonical target.
type slot struct {
	holder   FileRecord
	existing bool // holder is the file already on disk at the target
	claimed  bool // a non-canonical record has won the target
}

// Plan computes the actions that bring records to their canonical paths.
func (p *Planner) Plan(records []FileRecord) SyncPlan {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b FileRecord) int { return strings.Compare(a.Path, b.Path) })

	byPath := make(map[string]FileRecord, len(sorted))
	for _, r := range sorted {
		byPath[r.Path] = r
	}

	slots := make(map[string]*slot)
	var losers []FileRecord

	for _, r := range sorted {
		if r.TopSegment() == p.opts.QuarantineDir || r.IsBackup() {
			continue
		}
		r = p.resolve(r)
		target, ok := r.Canonical()
		if !ok || target == r.Path {
			continue
		}

		s, found := slots[target]
		if !found {
			if existing, ok := byPath[target]; ok {
				s = &slot{holder: existing, existing: true}
			} else {
				s = &slot{holder: r, claimed: true}
				slots[target] = s
				continue
			}
			slots[target] = s
		}

		if !Prefer(r, s.holder) {
			losers = append(losers, r)
			continue
		}
		if !s.existing {
			losers = append(losers, s.holder)
		}
		s.holder = r
		s.existing = false
		s.claimed = true
	}

	var plan SyncPlan
	protected := make(map[string]bool)
	for target, s := range slots {
		if !s.claimed {
			continue
		}
		action := Action{Record: s.holder, Target: target}
		if _, exists := byPath[target]; exists {
			plan.ToUpdate = append(plan.ToUpdate, action)
		} else {
			plan.ToCopy = append(plan.ToCopy, action)
		}
		protected[s.holder.Path] = true
		protected[target] = true
	}

	if p.opts.QuarantineDuplicates {
		slices.SortFunc(losers, func(a, b FileRecord) int { return strings.Compare(a.Path, b.Path) })
		taken := make(map[string]bool)
		for _, l := range losers {
			target := uniqueTarget(path.Join(p.opts.QuarantineDir, CanonicalPath(l.Year.Int32, l.Category.String, l.Base())), byPath, taken)
			taken[target] = true
			plan.DuplicateMoves = append(plan.DuplicateMoves, Action{Record: l, Target: target})
			protected[l.Path] = true
			protected[target] = true
		}
	}

	if p.opts.DeleteDuplicates {
		plan.ToDelete = duplicateDeletes(sorted, protected)
	}

	sortActions(plan.ToCopy)
	sortActions(plan.ToUpdate)
	return plan
}

// resolve fills a missing year from the classifier when the category is known.
func (p *Planner) resolve(r FileRecord) FileRecord {
	if r.Year.Valid || !r.Category.Valid || p.classifier == nil {
		return r
	}
	c := p.classifier.Classify(r.Path)
	if c.Year.Valid && ValidYear(int(c.Year.Int32)) && c.Confidence >= p.opts.MinConfidence {
		r.Year = c.Year
	}
	return r
}

// duplicateDeletes returns every member of a content-hash group except its
// winner, skipping paths that other actions read or write.
func duplicateDeletes(records []FileRecord, protected map[string]bool) []string {
	groups := make(map[string][]FileRecord)
	for _, r := range records {
		if r.ContentHash.Valid && !r.IsBackup() {
			groups[r.ContentHash.String] = append(groups[r.ContentHash.String], r)
		}
	}

	var deletes []string
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		_, winner := Winner(group)
		for i, r := range group {
			if i == winner || protected[r.Path] {
				continue
			}
			deletes = append(deletes, r.Path)
		}
	}
	slices.Sort(deletes)
	return deletes
}

// uniqueTarget appends ~N to the stem until the target collides with nothing.
func uniqueTarget(target string, existing map[string]FileRecord, taken map[string]bool) string {
	free := func(t string) bool {
		_, onDisk := existing[t]
		return !onDisk && !taken[t]
	}
	if free(target) {
		return target
	}
	dir, base := path.Split(target)
	ext := path.Ext(base)
	if strings.Contains(ext, "__") {
		ext = ""
	}
	stem := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		candidate := dir + fmt.Sprintf("%s~%d%s", stem, n, ext)
		if free(candidate) {
			return candidate
		}
	}
}

func sortActions(actions []Action) {
	slices.SortFunc(actions, func(a, b Action) int { return strings.Compare(a.Target, b.Target) })
}
