package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"mediasort/internal/config"
	"mediasort/internal/database"
	"mediasort/internal/encryption"
	"mediasort/internal/fs"
	"mediasort/internal/indexlog"
	"mediasort/internal/media"
	"mediasort/internal/metadata"
	"mediasort/internal/vault"
)

// RunsSnapshot is the vault name of the run database snapshot, below the host ID.
const RunsSnapshot = "runs.db"

// App is the application layer between the CLI and the media package.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and uploads snapshots on Close.
type App struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	vault     media.Vault
	fsmgr     *fs.OSFilesystemManager
	builder   *media.Builder
	encryptor media.Encryptor
	policy    media.RecordTimePolicy
	retry     media.RetryPolicy
	logger    media.Logger
	progress  media.Progress
	clock     media.Clock
	op        *Operation
	logs      []openLog
	logFile   *os.File
}

// openLog is an index log opened by this App, closed and snapshotted on Close.
type openLog struct {
	name string
	log  indexlog.Log
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "index", "reorganize").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore)

	policy, err := media.PolicyByName(cfg.Organize.RecordTime)
	if err != nil {
		return nil, fmt.Errorf("organize.record_time: %w", err)
	}

	extractor, err := metadata.NewExtractorFromConfig(cfg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("creating metadata extractor: %w", err)
	}

	var v media.Vault
	if len(cfg.Vaults) > 0 {
		v, err = vault.NewVaultFromConfig(cfg.Vaults[0])
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if v != nil && !enc.IsConfigured() {
		return nil, fmt.Errorf("encryption keys missing: run 'mediasort config keys init'")
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	op := NewOperation(operation, "", media.UUIDGenerator{}.New())
	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(cfg.BaseDir, "log")
	}
	slogger, logFile, err := newLogger(logDir, op.UUID[:8], cfg.LogLevel, os.Stderr)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	return &App{
		cfg:       cfg,
		db:        db,
		vault:     v,
		fsmgr:     fsmgr,
		builder:   media.NewBuilder(fsmgr, metadata.NewExtensionClassifier(), extractor, logger),
		encryptor: enc,
		policy:    policy,
		retry:     retryPolicyFromConfig(cfg.Retry),
		logger:    logger,
		progress:  newProgress(os.Stderr),
		clock:     media.RealClock{},
		op:        op,
		logFile:   logFile,
	}, nil
}

// retryPolicyFromConfig builds the copy retry policy. Unset values keep
// the defaults of media.DefaultRetryPolicy.
func retryPolicyFromConfig(cfg config.RetryConfig) media.RetryPolicy {
	p := media.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	delay := cfg.Delay.Duration
	if delay <= 0 {
		return p
	}
	if cfg.Backoff == "exponential" {
		p.Delay = media.ExponentialBackoff(delay, cfg.MaxDelay.Duration)
	} else {
		p.Delay = media.FixedDelay(delay)
	}
	return p
}

// persistOperation records the operation as a run, giving it an auto-increment ID.
// It refuses to start when the vault holds a newer run database than ours.
func (a *App) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	if err := a.checkSnapshotVersion(); err != nil {
		return err
	}
	a.op.Parameters = parameters
	run, err := a.db.CreateRun(a.op.UUID, a.op.Name, parameters, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting run: %w", err)
	}
	a.op.ID = run.ID
	return nil
}

func (a *App) checkSnapshotVersion() error {
	if a.vault == nil {
		return nil
	}
	remoteVersion, err := a.vault.GetSnapshotVersion(a.snapshotName(RunsSnapshot))
	if err != nil {
		return fmt.Errorf("checking remote run database version: %w", err)
	}
	localMax, err := a.db.MaxRunID()
	if err != nil {
		return fmt.Errorf("checking local run database version: %w", err)
	}
	if remoteVersion > localMax {
		return fmt.Errorf("local run database is behind the vault (local=%d, remote=%d): restore %s with 'mediasort snapshot restore' or re-initialize", localMax, remoteVersion, RunsSnapshot)
	}
	return nil
}

func (a *App) fail(err error) error {
	a.op.Fail()
	return err
}

// resolveRoots turns raw directory arguments into absolute paths.
func (a *App) resolveRoots(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("no directories given")
	}
	roots := make([]string, 0, len(raw))
	for _, r := range raw {
		p, err := a.fsmgr.Resolve(r)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", r, err)
		}
		if !p.IsDir() {
			return nil, fmt.Errorf("not a directory: %s", p.String())
		}
		roots = append(roots, p.String())
	}
	return roots, nil
}

// openIndex opens the index of kind over roots. The same set of roots
// always opens the same index.
func (a *App) openIndex(kind string, roots []string) (*media.Index, error) {
	name := indexlog.Name(kind, roots)
	log, err := indexlog.NewLogFromConfig(a.cfg.Index, name)
	if err != nil {
		return nil, fmt.Errorf("opening %s index: %w", kind, err)
	}
	if fl, ok := log.(*indexlog.FileLog); ok && fl.Repaired() > 0 {
		a.logger.Warn("dropped incomplete trailing index record", "index", fl.Path(), "bytes", fl.Repaired())
	}
	idx, err := media.NewIndex(log, a.builder, a.logger, a.cfg.Index.Workers)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("opening %s index %s: %w", kind, name, err)
	}
	a.logs = append(a.logs, openLog{name: name, log: log})
	return idx, nil
}

func (a *App) updateSourceIndex(roots []string) (*media.Index, int, error) {
	idx, err := a.openIndex("source", roots)
	if err != nil {
		return nil, 0, err
	}
	total := 0
	for _, root := range roots {
		n, err := idx.Update(root, a.progress)
		total += n
		if err != nil {
			return nil, total, fmt.Errorf("indexing %s: %w", root, err)
		}
	}
	return idx, total, nil
}

// Index updates the source index of roots and returns the number of files added.
func (a *App) Index(rawRoots []string) (int, error) {
	roots, err := a.resolveRoots(rawRoots)
	if err != nil {
		return 0, err
	}
	if err := a.persistOperation(strings.Join(roots, " ")); err != nil {
		return 0, err
	}
	_, added, err := a.updateSourceIndex(roots)
	if err != nil {
		return added, a.fail(err)
	}
	a.logger.Info("index updated", "roots", len(roots), "added", added)
	return added, nil
}

// Issues updates the source index of roots and classifies its items.
func (a *App) Issues(rawRoots []string) (*media.Issues, error) {
	roots, err := a.resolveRoots(rawRoots)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(strings.Join(roots, " ")); err != nil {
		return nil, err
	}
	idx, _, err := a.updateSourceIndex(roots)
	if err != nil {
		return nil, a.fail(err)
	}
	return media.Classify(idx.Items(), a.policy), nil
}

// Reorganize copies the distinct media items of the source directories into
// the date tree under dest. confirm is shown the summary before any copy;
// nil proceeds without asking.
func (a *App) Reorganize(rawSources []string, rawDest string, confirm func(*media.Report) bool) (*media.Report, error) {
	sources, err := a.resolveRoots(rawSources)
	if err != nil {
		return nil, err
	}
	// The destination may not exist yet; the reorganizer creates it.
	dest, err := a.fsmgr.Abs(rawDest)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	for _, src := range sources {
		if within(dest, src) || within(src, dest) {
			return nil, fmt.Errorf("destination %s overlaps source %s", dest, src)
		}
	}

	if err := a.persistOperation("dest=" + dest + " sources=" + strings.Join(sources, " ")); err != nil {
		return nil, err
	}
	srcIdx, err := a.openIndex("source", sources)
	if err != nil {
		return nil, a.fail(err)
	}
	destIdx, err := a.openIndex("dest", []string{dest})
	if err != nil {
		return nil, a.fail(err)
	}

	r := media.NewReorganizer(a.fsmgr, a.fsmgr, a.policy, a.retry, media.NewRunJournal(a.db, a.op.ID), a.logger, a.clock, a.progress)
	report, err := r.Reorganize(media.ReorganizeRequest{
		Sources:     sources,
		SourceIndex: srcIdx,
		Destination: dest,
		DestIndex:   destIdx,
		Confirm:     confirm,
	})
	if report != nil {
		a.op.Copied = int64(report.Copied)
		a.op.Quarantined = int64(report.Quarantined)
	}
	if err != nil {
		return report, a.fail(err)
	}
	return report, nil
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// GetHistory returns the most recent runs.
func (a *App) GetHistory(limit int) ([]*media.Run, error) {
	return a.db.ListRuns(limit)
}

// GetCopyHistory returns the copies made from rawPath. When rawPath is an
// existing file, copies of its content are included too, so destination
// paths can be looked up as well as sources.
func (a *App) GetCopyHistory(rawPath string) ([]*media.CopyRecord, error) {
	absPath, err := a.fsmgr.Abs(rawPath)
	if err != nil {
		return nil, err
	}
	copies, err := a.db.FindCopiesBySource(absPath)
	if err != nil {
		return nil, err
	}

	p, err := a.fsmgr.Resolve(absPath)
	if err != nil || p.IsDir() {
		return copies, nil
	}
	d, err := a.builder.Build(p.String())
	if err != nil {
		return nil, err
	}
	byContent, err := a.db.FindCopiesByFingerprint(d.Fingerprint)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(copies))
	for _, c := range copies {
		seen[c.ID] = true
	}
	for _, c := range byContent {
		if !seen[c.ID] {
			copies = append(copies, c)
		}
	}
	return copies, nil
}

// NeedsPassphrase reports whether restoring snapshots requires a passphrase.
func (a *App) NeedsPassphrase() bool {
	return encryption.NeedsPassphrase(a.encryptor)
}

func (a *App) snapshotName(base string) string {
	return a.cfg.HostID + "/" + base
}

// RestoreSnapshot downloads the snapshot name of this host from the vault,
// decrypts it and writes it to outPath, which must not exist yet.
func (a *App) RestoreSnapshot(name, outPath, passphrase string) error {
	if a.vault == nil {
		return fmt.Errorf("no vault configured")
	}
	if _, err := os.Stat(outPath); err == nil {
		return fmt.Errorf("%s already exists", outPath)
	}
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	sealed, err := os.CreateTemp(dir, ".mediasort-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(sealed.Name())
	defer sealed.Close()

	if err := a.vault.GetSnapshot(a.snapshotName(name), sealed); err != nil {
		return fmt.Errorf("downloading snapshot %s: %w", name, err)
	}
	if _, err := sealed.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding snapshot: %w", err)
	}

	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}
	out, err := os.CreateTemp(dir, ".mediasort-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(out.Name())
	if err := dc.Decrypt(sealed, out); err != nil {
		out.Close()
		return fmt.Errorf("decrypting snapshot %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	if err := os.Rename(out.Name(), outPath); err != nil {
		return fmt.Errorf("moving snapshot into place: %w", err)
	}
	a.logger.Info("snapshot restored", "name", name, "path", outPath)
	return nil
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the run record, then uploads the run
// database and every opened index log to the vault with version = run ID.
func (a *App) Close() error {
	var errs []error

	if a.op.Persisted() {
		if err := a.db.FinishRun(a.op.ID, a.op.Status, a.op.Copied, a.op.Quarantined, a.clock.Now()); err != nil {
			errs = append(errs, fmt.Errorf("finishing run: %w", err))
		}
		if a.vault != nil {
			if err := a.uploadSnapshots(a.op.ID); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, l := range a.logs {
		if err := l.log.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing index %s: %w", l.name, err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}

// uploadSnapshots stores the run database and the opened index logs in the vault.
func (a *App) uploadSnapshots(version int64) error {
	tmpDir, err := os.MkdirTemp("", "mediasort-snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, RunsSnapshot)
	if err := a.db.BackupTo(dbPath); err != nil {
		return fmt.Errorf("backing up run database: %w", err)
	}
	if err := a.uploadFile(RunsSnapshot, dbPath, version); err != nil {
		return err
	}

	for _, l := range a.logs {
		base := l.name + ".jsonl"
		p := filepath.Join(tmpDir, base)
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("creating index snapshot: %w", err)
		}
		_, err = l.log.Snapshot(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("snapshotting index %s: %w", l.name, err)
		}
		if err := a.uploadFile(base, p, version); err != nil {
			return err
		}
	}
	return nil
}

// uploadFile encrypts the file at plainPath and stores it in the vault.
func (a *App) uploadFile(base, plainPath string, version int64) error {
	in, err := os.Open(plainPath)
	if err != nil {
		return fmt.Errorf("opening %s for upload: %w", base, err)
	}
	defer in.Close()

	sealed, err := os.CreateTemp(filepath.Dir(plainPath), "sealed-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer sealed.Close()

	if err := a.encryptor.Encrypt(in, sealed); err != nil {
		return fmt.Errorf("encrypting %s: %w", base, err)
	}
	size, err := sealed.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("sizing %s: %w", base, err)
	}
	if _, err := sealed.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding %s: %w", base, err)
	}

	name := a.snapshotName(base)
	if err := a.vault.PutSnapshot(name, sealed, size, version); err != nil {
		return fmt.Errorf("uploading %s to vault: %w", name, err)
	}
	a.logger.Info("snapshot uploaded", "name", name, "version", version, "size", humanize.IBytes(uint64(size)))
	return nil
}
