package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"speechset/internal/catalog"
	"speechset/internal/config"
	"speechset/internal/cookies"
	"speechset/internal/fileutil"
	"speechset/internal/logging"
	"speechset/internal/manifest"
	"speechset/internal/pool"
	"speechset/internal/resolver"
	"speechset/internal/segmenter"
	"speechset/internal/services"
	"speechset/internal/ytdlp"
)

// Option configures the driver.
type Option func(*Driver)

// WithClient injects a download adapter (primarily for tests).
func WithClient(client *ytdlp.Client) Option {
	return func(d *Driver) {
		if client != nil {
			d.client = client
		}
	}
}

// WithSegmenter injects a segmenter (primarily for tests).
func WithSegmenter(seg *segmenter.Segmenter) Option {
	return func(d *Driver) {
		if seg != nil {
			d.seg = seg
		}
	}
}

// Driver runs the full dataset pipeline for one invocation.
type Driver struct {
	cfg     *config.Config
	runtime config.Runtime
	logger  *slog.Logger
	client  *ytdlp.Client
	seg     *segmenter.Segmenter
	creds   cookies.Credentials
	runID   string
}

// New wires a driver from configuration: credentials, runtime profile, the
// download adapter, and the segmenter.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Driver, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	creds, err := cookies.Resolve(cfg.Auth.CookiesFile, cfg.Auth.CookiesFromBrowser)
	if err != nil {
		return nil, err
	}
	rt, err := cfg.ResolveRuntime()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "runtime", err.Error(), nil)
	}

	d := &Driver{
		cfg:     cfg,
		runtime: rt,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
		client:  ytdlp.New(cfg.Tools.YtdlpBin, creds, logger),
		seg:     segmenter.New(cfg.Tools.FFmpegBin, logger),
		creds:   creds,
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// RunID identifies this invocation in summaries and log lines.
func (d *Driver) RunID() string {
	return d.runID
}

// Runtime exposes the resolved concurrency profile.
func (d *Driver) Runtime() config.Runtime {
	return d.runtime
}

// RunResult is the aggregate outcome of one invocation.
type RunResult struct {
	Summary manifest.Summary
	Success int
	Partial int
	Failed  int
	Skipped int
}

// ExitCode maps this run's own outcomes onto the process exit status: any
// outright unit failure is non-zero.
func (r *RunResult) ExitCode() int {
	if r.Failed > 0 {
		return 1
	}
	return 0
}

// ProcessInput runs the URL-first flow over the references in inputPath.
func (d *Driver) ProcessInput(ctx context.Context, inputPath string) (*RunResult, error) {
	refs, err := resolver.LoadRefs(inputPath, "urls")
	if err != nil {
		return nil, err
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "setup", err.Error(), nil)
	}
	d.snapshotInput("input", refs)

	store, err := d.openStore(manifest.FlowVideos)
	if err != nil {
		return nil, err
	}

	units, refFailures := resolver.ResolveVideos(refs)
	d.recordResolveFailures(store, refFailures)

	d.logger.Info("run starting",
		logging.String(logging.FieldRunID, d.runID),
		logging.Int("units", len(units)),
		logging.Int("video_workers", d.runtime.VideoWorkers),
		logging.Int("segment_workers", d.runtime.SegmentWorkers),
	)

	if err := d.processUnits(ctx, store, units); err != nil {
		return nil, err
	}
	return d.finalize(ctx, store)
}

// processUnits dispatches the video pool. Per-unit failures become manifest
// records; only store I/O and cancellation abort the run.
func (d *Driver) processUnits(ctx context.Context, store *manifest.Store, units []resolver.Unit) error {
	if len(units) == 0 {
		return nil
	}
	results, err := pool.Run(ctx, units, d.runtime.VideoWorkers, func(ctx context.Context, _ int, unit resolver.Unit) (manifest.Record, error) {
		rec := d.processUnit(ctx, store, unit)
		if err := store.Append(rec); err != nil {
			return rec, err
		}
		d.logger.Info("unit finished",
			logging.String(logging.FieldVideoID, unit.VideoID),
			logging.String(logging.FieldOutcome, string(rec.Status)),
		)
		return rec, nil
	})
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Err != nil {
			return fmt.Errorf("record unit outcome: %w", res.Err)
		}
	}
	return nil
}

func (d *Driver) openStore(flow manifest.Flow) (*manifest.Store, error) {
	store, err := manifest.Open(d.cfg.ManifestsDir(), flow, d.logger)
	if err != nil {
		return nil, err
	}
	if store.NeedsFallback() {
		store.SeedDone(d.scanArtifactTree())
	}
	return store, nil
}

// scanArtifactTree lists video IDs whose artifact directories already carry a
// metadata bundle. Used only when no readable manifest exists.
func (d *Driver) scanArtifactTree() []string {
	entries, err := os.ReadDir(d.cfg.VideosDir())
	if err != nil {
		return nil
	}
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if fileutil.Exists(filepath.Join(d.cfg.VideosDir(), entry.Name(), "metadata.json")) {
			ids = append(ids, entry.Name())
		}
	}
	return ids
}

func (d *Driver) recordResolveFailures(store *manifest.Store, failures []resolver.Failure) {
	for _, failure := range failures {
		rec := manifest.Record{
			URL:         failure.Ref,
			Status:      manifest.OutcomeFailed,
			FailureKind: manifest.FailureResolve,
			Error:       failure.Err.Error(),
			FinishedAt:  time.Now().UTC(),
		}
		if err := store.Append(rec); err != nil {
			d.logger.Warn("record resolve failure", logging.Error(err))
		}
	}
}

// snapshotInput preserves the exact reference list used for this run.
func (d *Driver) snapshotInput(kind string, refs []string) {
	stamp := time.Now().Format("20060102_150405")
	path := filepath.Join(d.cfg.LinksDir(), fmt.Sprintf("%s_%s.txt", kind, stamp))
	if err := fileutil.WriteLines(path, refs); err != nil {
		d.logger.Warn("snapshot input list", logging.Error(err))
	}
}

func (d *Driver) finalize(ctx context.Context, store *manifest.Store) (*RunResult, error) {
	summary, err := store.Finalize(d.runID, d.cfg.Paths.DatasetRoot)
	if err != nil {
		return nil, err
	}
	success, partial, failed, skipped := store.RunCounts()
	result := &RunResult{
		Summary: summary,
		Success: success,
		Partial: partial,
		Failed:  failed,
		Skipped: skipped,
	}

	if d.cfg.Catalog.Enabled {
		if err := d.rebuildCatalog(ctx); err != nil {
			d.logger.Warn("catalog rebuild failed", logging.Error(err))
		}
	}

	d.logger.Info("run complete",
		logging.String(logging.FieldRunID, d.runID),
		logging.Int("success", result.Success),
		logging.Int("partial", result.Partial),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
		logging.Duration("wall_clock", summary.WallClock),
	)
	return result, nil
}

// rebuildCatalog refreshes the derived SQLite projection. Failures are logged
// and never affect the run outcome; the projection is recoverable at any
// time.
func (d *Driver) rebuildCatalog(ctx context.Context) error {
	store, err := catalog.Open(d.cfg.Paths.DatasetRoot)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Rebuild(ctx, d.cfg.Paths.DatasetRoot)
}
