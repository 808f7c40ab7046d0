package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/veloralabs/liqlock/internal/domain"
)

// multipartThreshold is the payload size above which archive uploads switch
// to the concurrent multipart path (16 MiB).
const multipartThreshold = 16 * 1024 * 1024

// archivePartSize is the part size used for multipart archive uploads.
const archivePartSize int64 = 8 * 1024 * 1024

// EventArchiveStore provides the read access the archiver needs. The
// Postgres event store satisfies it implicitly.
type EventArchiveStore interface {
	// ListBefore returns all events recorded strictly before the cutoff,
	// oldest first.
	ListBefore(ctx context.Context, before time.Time) ([]domain.Event, error)
}

// ArchiveImpl implements domain.Archiver by querying the event store for
// aged rows, serializing them to JSONL, and uploading the result to an
// object keyed by the cutoff month. Objects cannot be appended to, so a
// re-run within the same month reads the existing object and rewrites it
// with the full set. After the upload the object is read back and its line
// count compared against what was written; a mismatch deletes the bad
// object and fails the run so the rows stay in the primary store.
//
// Deletion of the archived rows from the primary store is intentionally NOT
// performed here. That is a separate, explicit step to be executed after the
// archive has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	events EventArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, events EventArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{writer: writer, reader: reader, events: events}
}

// ArchiveEvents flushes all events before the cutoff to
// archive/events/YYYY-MM.jsonl and returns the count of newly archived rows.
func (a *ArchiveImpl) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := archivePath("events", before)

	// Merge with a previous run's object for the same month. The existing
	// lines may overlap the new set when cutoffs within a month advance, so
	// the merged object keeps only one copy of each line.
	existing, err := a.readExisting(ctx, path)
	if err != nil {
		return 0, err
	}
	merged, total := mergeJSONL(existing, buf)

	if err := a.upload(ctx, path, merged); err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}

	if err := a.verify(ctx, path, total); err != nil {
		// Remove the unverifiable object so the next run starts clean; the
		// rows are still in the primary store.
		_ = a.reader.Delete(ctx, path)
		return 0, err
	}

	return int64(len(events)), nil
}

// readExisting returns the current archive object's content, or nil when no
// object exists yet at the path.
func (a *ArchiveImpl) readExisting(ctx context.Context, path string) ([]byte, error) {
	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive head %s: %w", path, err)
	}
	if !exists {
		return nil, nil
	}

	rc, err := a.reader.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive read %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive read %s: %w", path, err)
	}
	return data, nil
}

// upload writes the archive object, using multipart for large payloads.
func (a *ArchiveImpl) upload(ctx context.Context, path string, data []byte) error {
	if len(data) > multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(data), archivePartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(data), "application/x-ndjson")
}

// verify reads the uploaded object back and checks its line count.
func (a *ArchiveImpl) verify(ctx context.Context, path string, wantLines int) error {
	rc, err := a.reader.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: archive verify %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("s3blob: archive verify %s: %w", path, err)
	}

	if got := bytes.Count(data, []byte("\n")); got != wantLines {
		return fmt.Errorf("s3blob: archive verify %s: object has %d lines, wrote %d", path, got, wantLines)
	}
	return nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/events/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// mergeJSONL combines an existing JSONL object with new lines, dropping
// duplicates, and returns the merged payload plus its line count.
func mergeJSONL(existing, fresh []byte) ([]byte, int) {
	seen := make(map[string]struct{})
	var buf bytes.Buffer
	total := 0

	appendLines := func(data []byte) {
		for _, line := range bytes.Split(data, []byte("\n")) {
			if len(line) == 0 {
				continue
			}
			if _, ok := seen[string(line)]; ok {
				continue
			}
			seen[string(line)] = struct{}{}
			buf.Write(line)
			buf.WriteByte('\n')
			total++
		}
	}
	appendLines(existing)
	appendLines(fresh)

	return buf.Bytes(), total
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
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

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
