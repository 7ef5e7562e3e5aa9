package media

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// ReorganizeRequest describes one reorganize run.
type ReorganizeRequest struct {
	// Sources are the source roots, indexed into SourceIndex.
	Sources     []string
	SourceIndex *Index
	// Destination is the destination root, indexed into DestIndex.
	Destination string
	DestIndex   *Index
	// Confirm is called with the pre-copy summary. Returning false aborts
	// the run before anything is copied. A nil Confirm always proceeds.
	Confirm func(*Report) bool
}

// Report summarizes a reorganize run.
type Report struct {
	// Indexed is the number of files added to the source index by this run.
	Indexed int
	// Empty, Duplicates and Collisions count the classification of the sources.
	Empty      int
	Duplicates int
	Collisions int
	// AlreadyPresent counts source items already held by the destination
	// before copying started.
	AlreadyPresent int
	// Planned and BytesPlanned estimate the copies into the date tree.
	Planned      int
	BytesPlanned int64
	// Ignored counts non-media source files.
	Ignored int
	// Copied counts files copied into the date tree.
	Copied int
	// Skipped counts items not copied because the destination holds them.
	Skipped int
	// Quarantined counts collision members copied into the collisions directory.
	Quarantined int
	// BytesCopied is the total size of every copy.
	BytesCopied int64
}

// Reorganizer copies every distinct media item of the source trees into a
// date-organized destination tree exactly once.
type Reorganizer struct {
	fsmgr    FilesystemManager
	copier   Copier
	policy   RecordTimePolicy
	retry    RetryPolicy
	journal  Journal
	logger   Logger
	clock    Clock
	progress Progress
}

// NewReorganizer creates a Reorganizer with the provided dependencies.
// journal, logger, clock and progress may be nil.
func NewReorganizer(fsmgr FilesystemManager, copier Copier, policy RecordTimePolicy, retry RetryPolicy, journal Journal, logger Logger, clock Clock, progress Progress) *Reorganizer {
	if journal == nil {
		journal = NopJournal{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if progress == nil {
		progress = NopProgress{}
	}
	return &Reorganizer{
		fsmgr:    fsmgr,
		copier:   copier,
		policy:   policy,
		retry:    retry,
		journal:  journal,
		logger:   logger,
		clock:    clock,
		progress: progress,
	}
}

// Reorganize indexes the sources and the destination, then copies every
// source item the destination does not hold yet. Collision members are
// copied into the collisions directory instead of the date tree.
//
// A copy that fails after every retry stops the run with a *CopyError.
// Copies completed before the failure stay indexed, so running again
// resumes where the failed run stopped.
func (r *Reorganizer) Reorganize(req ReorganizeRequest) (*Report, error) {
	report := &Report{}

	for _, src := range req.Sources {
		n, err := req.SourceIndex.Update(src, r.progress)
		if err != nil {
			return report, fmt.Errorf("indexing source %s: %w", src, err)
		}
		report.Indexed += n
	}
	if err := r.fsmgr.MkdirAll(req.Destination); err != nil {
		return report, fmt.Errorf("creating destination: %w", err)
	}
	if _, err := req.DestIndex.Update(req.Destination, r.progress); err != nil {
		return report, fmt.Errorf("indexing destination %s: %w", req.Destination, err)
	}

	destRoot, err := r.fsmgr.Resolve(req.Destination)
	if err != nil {
		return report, fmt.Errorf("resolving destination: %w", err)
	}
	planner := NewPlanner(destRoot.String(), r.policy, r.fsmgr)

	items := req.SourceIndex.Items()
	issues := Classify(items, r.policy)
	collided := issues.CollisionFingerprints()
	report.Empty = len(issues.Empty)
	report.Duplicates = len(issues.Duplicates)
	report.Collisions = len(issues.Collisions)
	r.summarize(items, collided, req.DestIndex, planner, report)

	r.logger.Info("reorganize summary",
		"sources", len(req.Sources),
		"items", len(items),
		"indexed", report.Indexed,
		"empty", report.Empty,
		"duplicates", report.Duplicates,
		"collisions", report.Collisions,
		"already_present", report.AlreadyPresent,
		"to_copy", report.Planned,
		"bytes_to_copy", humanize.IBytes(uint64(report.BytesPlanned)),
	)
	if req.Confirm != nil && !req.Confirm(report) {
		return report, ErrAborted
	}

	r.progress.Start("copying", report.Planned)
	for _, d := range items {
		switch {
		case d.Size == 0:
			continue
		case !d.Type.IsMedia():
			report.Ignored++
			continue
		case collided[d.Fingerprint]:
			continue
		case r.present(d, req.DestIndex, planner):
			report.Skipped++
			continue
		}
		if err := r.place(d, planner, planner.Plan(d), CopyOrganized, req.DestIndex); err != nil {
			r.progress.Finish()
			return report, err
		}
		r.progress.Advance(d.Path)
		report.Copied++
		report.BytesCopied += d.Size
	}
	r.progress.Finish()

	if err := r.quarantine(issues, planner, req.DestIndex, report); err != nil {
		return report, err
	}

	r.logger.Info("reorganize finished",
		"copied", report.Copied,
		"skipped", report.Skipped,
		"quarantined", report.Quarantined,
		"ignored", report.Ignored,
		"bytes_copied", humanize.IBytes(uint64(report.BytesCopied)),
	)
	return report, nil
}

// summarize estimates the work ahead without touching the destination.
func (r *Reorganizer) summarize(items []*Descriptor, collided map[string]bool, dest *Index, planner *Planner, report *Report) {
	planned := make(map[string]bool)
	for _, d := range items {
		if d.Size == 0 || !d.Type.IsMedia() || collided[d.Fingerprint] {
			continue
		}
		if r.present(d, dest, planner) {
			report.AlreadyPresent++
			continue
		}
		key := r.itemKey(d)
		if planned[key] {
			continue
		}
		planned[key] = true
		report.Planned++
		report.BytesPlanned += d.Size
	}
}

// itemKey is equal for two descriptors exactly when SameItem holds.
func (r *Reorganizer) itemKey(d *Descriptor) string {
	t := recordTimeOrSentinel(d, r.policy)
	return fmt.Sprintf("%s/%04d-%02d", d.Fingerprint, t.Year(), int(t.Month()))
}

// present reports whether dest already holds the same item as d, or holds
// its content at the path d would be planned to.
func (r *Reorganizer) present(d *Descriptor, dest *Index, planner *Planner) bool {
	target := planner.Plan(d)
	for _, e := range dest.ByFingerprint(d.Fingerprint) {
		if SameItem(e, d, r.policy) {
			return true
		}
		if filepath.Join(filepath.Dir(e.Path), stripIncrement(e.Name())) == target {
			return true
		}
	}
	return false
}

// quarantine copies collision members into the collisions directory.
// Members already quarantined by an earlier run are skipped; existing copies
// are matched by fingerprint and file name, counting each copy once.
func (r *Reorganizer) quarantine(issues *Issues, planner *Planner, dest *Index, report *Report) error {
	members := issues.CollisionMembers()
	if len(members) == 0 {
		return nil
	}

	dir := filepath.Join(planner.Root, CollisionsDir)
	held := make(map[string]int)
	for _, e := range dest.Items() {
		if filepath.Dir(e.Path) == dir {
			held[quarantineKey(e)]++
		}
	}

	r.progress.Start("quarantining", len(members))
	defer r.progress.Finish()
	for _, d := range members {
		if !d.Type.IsMedia() {
			report.Ignored++
			continue
		}
		key := quarantineKey(d)
		if held[key] > 0 {
			held[key]--
			report.Skipped++
			continue
		}
		if err := r.place(d, planner, planner.Quarantine(d), CopyCollision, dest); err != nil {
			return err
		}
		r.progress.Advance(d.Path)
		report.Quarantined++
		report.BytesCopied += d.Size
	}
	return nil
}

func quarantineKey(d *Descriptor) string {
	return d.Fingerprint + "/" + stripIncrement(d.Name())
}

// place copies d to the first free variant of target, adds the copy to the
// destination index and journals it. The indexed copy keeps d's record
// month, which its destination path alone may not express.
func (r *Reorganizer) place(d *Descriptor, planner *Planner, target string, kind CopyKind, dest *Index) error {
	dst, err := planner.Resolve(target)
	if err != nil {
		return err
	}

	attempts, err := r.retry.Do(func() error {
		if err := r.fsmgr.MkdirAll(filepath.Dir(dst)); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
		return r.copier.Copy(d.Path, dst)
	}, func(attempt int, err error) {
		r.logger.Warn("copy failed, retrying", "source", d.Path, "destination", dst, "attempt", attempt, "error", err)
	})
	if err != nil {
		return &CopyError{
			Descriptor:  d,
			Source:      d.Path,
			Destination: dst,
			Attempts:    attempts,
			Err:         err,
		}
	}

	placed := d.Rehome(dst)
	if t, ok := r.policy.RecordTime(d); ok {
		placed = d.Place(dst, t)
	}
	if _, err := dest.Add(placed); err != nil {
		return fmt.Errorf("indexing copy %s: %w", dst, err)
	}

	rec := &CopyRecord{
		Kind:        kind,
		SourcePath:  d.Path,
		DestPath:    dst,
		Fingerprint: d.Fingerprint,
		Size:        d.Size,
		CopiedAt:    r.clock.Now(),
	}
	if err := r.journal.RecordCopy(rec); err != nil {
		r.logger.Warn("copy not journaled", "source", d.Path, "destination", dst, "error", err)
	}
	r.logger.Info("copied", "kind", string(kind), "source", d.Path, "destination", dst)
	return nil
}
