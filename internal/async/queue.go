package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kitchenledger/invoice-pipeline/internal/entity"
)

// Job is the smallest useful unit: one raw invoice to push through the
// pipeline. Extend as needed later (retry, trace, etc).
type Job struct {
	ID          uuid.UUID
	Invoice     *entity.RawInvoice
	SourcePath  string // file the invoice was read from, for logging
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
