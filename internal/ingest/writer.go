package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/biopkg/bdp/internal/blobstore"
	"github.com/biopkg/bdp/internal/models"
	"github.com/biopkg/bdp/internal/parser"
)

// BlobRecordWriter is the RecordWriter a discovery-driven ingestion job
// uses: it formats each batch with the source's Formatter and writes the
// concatenated result as one blob per batch, under a key scoped to the job
// and the unit's record range. A record whose formatter call fails is
// counted as failed rather than aborting the whole batch.
type BlobRecordWriter struct {
	store     *blobstore.Store
	formatter parser.Formatter
	format    string
	keyPrefix string // e.g. "org/entry/external_version"
}

func NewBlobRecordWriter(store *blobstore.Store, formatter parser.Formatter, format, keyPrefix string) *BlobRecordWriter {
	return &BlobRecordWriter{store: store, formatter: formatter, format: format, keyPrefix: keyPrefix}
}

// WriteBatch formats every record in the batch and writes the
// concatenation to the blob store as a single object, returning how many
// records formatted successfully versus failed.
func (w *BlobRecordWriter) WriteBatch(ctx context.Context, jobID string, records []parser.Record) (stored, failed int64, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	var buf bytes.Buffer
	for _, rec := range records {
		body, _, ferr := w.formatter.FormatRecord(rec, w.format)
		if ferr != nil {
			failed++
			continue
		}
		buf.Write(body)
		stored++
	}
	if buf.Len() == 0 {
		return stored, failed, nil
	}

	key := fmt.Sprintf("%s/batches/%s-%d-%d.%s", w.keyPrefix, jobID, records[0].Index, records[len(records)-1].Index, w.format)
	if _, err := w.store.Put(ctx, key, buf.Bytes(), ""); err != nil {
		// Blob-store unavailability is retryable; the coordinator redoes
		// the whole batch, which is safe because puts are idempotent by
		// key. Report no counts so a retried batch isn't double-counted.
		return 0, 0, models.Transient(err, "ingest: blob write %s failed", key)
	}
	return stored, failed, nil
}
