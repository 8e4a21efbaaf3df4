package policies

import (
	"context"
	"io"
)

// EvidenceStore keeps supporting files for deposit claim requests. The claim
// itself is adjudicated out of band; this core only accepts the submission.
type EvidenceStore interface {
	Put(ctx context.Context, transactionID, filename, contentType string, size int64, r io.Reader) (string, error)
}
