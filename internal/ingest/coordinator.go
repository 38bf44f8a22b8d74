// Package ingest implements the ingestion coordinator and workers (C5): it
// splits a job into work units, dispatches bounded parallel workers,
// batches database writes, and streams blobs to the store, fed by a
// discovery.Driver and a parser.Parser.
package ingest

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/biopkg/bdp/internal/blobstore"
	"github.com/biopkg/bdp/internal/config"
	"github.com/biopkg/bdp/internal/dbpg"
	"github.com/biopkg/bdp/internal/logging"
	"github.com/biopkg/bdp/internal/models"
	"github.com/biopkg/bdp/internal/parser"
)

const (
	defaultMetadataBatchSize   = 500
	defaultAnnotationBatchSize = 1000
	defaultMaxRetries          = 3
)

// Source abstracts the downloaded-and-decompressed bytes a job operates on;
// callers populate it before calling Coordinator.Run.
type Source struct {
	OrganizationID  string
	RegistryEntryID string
	OrgSlug         string
	EntrySlug       string
	ExternalVersion string
	Data            []byte
	RootChecksum    string // sha-256 the upstream metalink advertised, if any
}

// RecordWriter is the per-source-type sink a worker calls for every parsed
// batch; concrete ingesters implement it to turn generic parser.Record
// values into rows and, where applicable, blob artifacts.
type RecordWriter interface {
	// WriteBatch performs the bulk upsert(s) for one batch and returns
	// counts of stored and record-level-failed rows.
	WriteBatch(ctx context.Context, jobID string, records []parser.Record) (stored, failed int64, err error)
}

// Coordinator runs one ingestion job to completion.
type Coordinator struct {
	jobs   *dbpg.IngestionJobRepository
	store  *blobstore.Store
	cfg    config.IngestConfig
}

func NewCoordinator(jobs *dbpg.IngestionJobRepository, store *blobstore.Store, cfg config.IngestConfig) *Coordinator {
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = runtime.NumCPU()
	}
	if cfg.MetadataBatchSize <= 0 {
		cfg.MetadataBatchSize = defaultMetadataBatchSize
	}
	if cfg.AnnotationBatchSize <= 0 {
		cfg.AnnotationBatchSize = defaultAnnotationBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BlobConcurrency <= 0 {
		cfg.BlobConcurrency = 8
	}
	return &Coordinator{jobs: jobs, store: store, cfg: cfg}
}

// Run executes the full lifecycle for one job: partition, dispatch workers
// bounded by WorkerThreads, and finalize status. ctx's cancellation is the
// job's cancel token; workers check it between batches and finalize
// cleanly rather than leaving partial state.
func (c *Coordinator) Run(ctx context.Context, job *models.IngestionJob, src Source, p parser.Parser, writer RecordWriter) error {
	log := logging.NewContextLogger(logging.Logger, nil).WithField("job_id", job.ID)

	total, ok := p.CountRecords(src.Data)
	if !ok {
		return models.Fatal(nil, "ingest: parser for %s could not count records", p.RecordType())
	}

	if err := c.jobs.SetStatus(ctx, job.ID, models.JobRunning, ""); err != nil {
		return err
	}

	ranges := parser.Partition(total, c.cfg.WorkerThreads)
	units := make([]models.WorkUnit, 0, len(ranges))
	for _, r := range ranges {
		units = append(units, models.WorkUnit{JobID: job.ID, Start: int64(r[0]), End: int64(r[1])})
	}
	if err := c.jobs.CreateWorkUnits(ctx, units); err != nil {
		return c.fail(ctx, job.ID, err)
	}

	pending, err := c.jobs.PendingWorkUnits(ctx, job.ID)
	if err != nil {
		return c.fail(ctx, job.ID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.WorkerThreads)
	blobSem := make(chan struct{}, c.cfg.BlobConcurrency)

	// A fatal error aborts every other in-flight unit through the
	// errgroup. A unit that fails for any other reason (its transient
	// retry budget exhausted) fails alone: sibling units keep running so
	// a resumed job only re-runs the units that are actually missing.
	var mu sync.Mutex
	var unitErrs []error

	for _, unit := range pending {
		unit := unit
		g.Go(func() error {
			if gctx.Err() != nil {
				return c.cancelUnit(ctx, job, &unit)
			}
			werr := c.runUnit(gctx, job, &unit, src, p, writer, blobSem)
			if werr == nil {
				return nil
			}
			if bdpErr, ok := werr.(*models.Error); ok && bdpErr.Category == models.CategoryFatal {
				return werr
			}
			log.WithError(werr).Error("work unit failed")
			unit.Status = models.WorkUnitFailed
			_ = c.jobs.UpdateWorkUnit(context.Background(), &unit)
			mu.Lock()
			unitErrs = append(unitErrs, werr)
			mu.Unlock()
			return nil
		})
	}

	waitErr := g.Wait()

	if ctx.Err() != nil {
		_ = c.jobs.SetStatus(context.Background(), job.ID, models.JobCancelled, "")
		return models.Cancelled("ingestion job %s cancelled", job.ID)
	}
	if waitErr != nil {
		return c.fail(ctx, job.ID, waitErr)
	}
	if len(unitErrs) > 0 {
		return c.fail(ctx, job.ID, unitErrs[0])
	}

	return c.jobs.SetStatus(ctx, job.ID, models.JobDone, "")
}

func (c *Coordinator) cancelUnit(ctx context.Context, job *models.IngestionJob, unit *models.WorkUnit) error {
	unit.Status = models.WorkUnitFailed
	return c.jobs.UpdateWorkUnit(context.Background(), unit)
}

func (c *Coordinator) fail(ctx context.Context, jobID string, err error) error {
	_ = c.jobs.SetStatus(context.Background(), jobID, models.JobFailed, err.Error())
	return err
}

// runUnit parses one unit's range in batches of the configured size and
// writes each batch in a single round trip.
func (c *Coordinator) runUnit(ctx context.Context, job *models.IngestionJob, unit *models.WorkUnit, src Source, p parser.Parser, writer RecordWriter, blobSem chan struct{}) error {
	unit.Status = models.WorkUnitRunning
	if err := c.jobs.UpdateWorkUnit(ctx, unit); err != nil {
		return err
	}

	batchSize := c.cfg.MetadataBatchSize
	start := int(unit.Start)
	end := int(unit.End)

	for batchStart := start; batchStart <= end; batchStart += batchSize {
		if ctx.Err() != nil {
			return c.cancelUnit(ctx, job, unit)
		}

		batchEnd := batchStart + batchSize - 1
		if batchEnd > end {
			batchEnd = end
		}

		// Parsing is deterministic, so a parse failure is an unparseable
		// container, never a transient condition.
		records, err := p.ParseRange(src.Data, batchStart, batchEnd)
		if err != nil {
			return models.Fatal(err, "ingest: unparseable range [%d,%d]", batchStart, batchEnd)
		}

		blobSem <- struct{}{}
		stored, failed, werr := c.writeBatchWithRetry(ctx, writer, job.ID, records)
		<-blobSem
		if werr != nil {
			return werr
		}

		processed := int64(len(records))
		unit.Processed += processed
		unit.Stored += stored
		unit.Failed += failed
		if err := c.jobs.IncrementCounters(ctx, job.ID, processed, stored, failed); err != nil {
			return err
		}
	}

	unit.Status = models.WorkUnitDone
	return c.jobs.UpdateWorkUnit(ctx, unit)
}

// writeBatchWithRetry retries transient batch-write failures (network
// I/O, database deadlock, temporary blob-store unavailability) with
// exponential backoff. A fatal classification (schema violation,
// checksum mismatch, unparseable container) is returned immediately;
// anything still failing after the retry budget surfaces as transient.
func (c *Coordinator) writeBatchWithRetry(ctx context.Context, writer RecordWriter, jobID string, records []parser.Record) (int64, int64, error) {
	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		stored, failed, err := writer.WriteBatch(ctx, jobID, records)
		if err == nil {
			return stored, failed, nil
		}
		if bdpErr, ok := err.(*models.Error); ok && bdpErr.Category == models.CategoryFatal {
			return stored, failed, err
		}
		lastErr = err
	}
	return 0, 0, models.Transient(lastErr, "ingest: batch write for job %s failed after %d attempts", jobID, c.cfg.MaxRetries)
}
