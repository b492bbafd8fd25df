// Package textdetect submits documents to an asynchronous text-detection
// service and reports on the submitted jobs.
package textdetect

import (
	"context"
	"errors"

	"github.com/Lllllllleong/docenrich/internal/models"
)

// ErrJobNotFound indicates a poll for a job id the service does not know.
var ErrJobNotFound = errors.New("text-detection job not found")

// JobService is an asynchronous text-detection service. Submit returns as
// soon as the job is accepted; Poll reports its progress.
type JobService interface {
	Submit(ctx context.Context, objectRef string) (string, error)
	Poll(ctx context.Context, jobID string) (models.JobStatus, error)
}

// Engine detects text in a document synchronously. A Runner turns an Engine
// into a JobService.
type Engine interface {
	Detect(ctx context.Context, objectRef string) (*models.RawResult, error)
}
