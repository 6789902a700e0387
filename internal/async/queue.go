package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one file waiting for the pipeline.
type Job struct {
	ID            uuid.UUID
	FileName      string
	Ext           string
	Content       []byte
	ContentHash   []byte
	CorrelationID string
	SubmittedAt   time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
