package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// archiveBatchSize bounds how many records one export file carries; large
// backlogs are drained over multiple passes.
const archiveBatchSize = 5000

// SignalArchiver implements domain.Archiver: expired signal records are
// exported as JSONL to object storage and then deleted from the hot store.
type SignalArchiver struct {
	writer domain.BlobWriter
	store  domain.SignalStore
}

var _ domain.Archiver = (*SignalArchiver)(nil)

// NewSignalArchiver creates a SignalArchiver over the given writer and store.
func NewSignalArchiver(writer domain.BlobWriter, store domain.SignalStore) *SignalArchiver {
	return &SignalArchiver{writer: writer, store: store}
}

// ArchiveBefore exports expired records last updated before cutoff in
// batches and deletes them once every batch has been uploaded. The upload
// happens strictly before the delete, so a failed pass leaves records in the
// hot store rather than losing them.
func (a *SignalArchiver) ArchiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for {
		records, err := a.store.ListExpiredBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive query: %w", err)
		}
		if len(records) == 0 {
			break
		}

		buf, err := marshalJSONL(records)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive marshal: %w", err)
		}

		path := archivePath(cutoff, total)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive upload %s: %w", path, err)
		}

		total += len(records)
		if len(records) < archiveBatchSize {
			break
		}
	}

	if total > 0 {
		if _, err := a.store.DeleteExpiredBefore(ctx, cutoff); err != nil {
			return total, fmt.Errorf("s3blob: archive delete: %w", err)
		}
	}
	return total, nil
}

// archivePath builds the export key, partitioned by the cutoff date with a
// record offset to keep multi-batch passes from overwriting each other.
//
//	archive/signals/2026-09-01/offset-0.jsonl
func archivePath(cutoff time.Time, offset int) string {
	return fmt.Sprintf("archive/signals/%s/offset-%d.jsonl", cutoff.Format("2006-01-02"), offset)
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL(records []domain.SignalRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
