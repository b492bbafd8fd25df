package services

import (
	"context"
	"errors"
	"image"

	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/testutil"
)

func twoPagePDF() []byte { return testutil.PDF(2) }

func pngImage(w, h int) []byte { return testutil.PNG(w, h) }

// stubRasterizer returns a fixed page instead of calling MuPDF.
type stubRasterizer struct {
	page image.Image
	err  error
}

func (s stubRasterizer) FirstPage([]byte) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.page, nil
}

func (s stubRasterizer) Pages([]byte, float64) ([]image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []image.Image{s.page}, nil
}

// stubJobs is a JobService answering from fixed values.
type stubJobs struct {
	jobID     string
	submitErr error
	status    models.JobStatus
	pollErr   error
	polled    []string
}

func (s *stubJobs) Submit(context.Context, string) (string, error) {
	return s.jobID, s.submitErr
}

func (s *stubJobs) Poll(_ context.Context, jobID string) (models.JobStatus, error) {
	s.polled = append(s.polled, jobID)
	return s.status, s.pollErr
}

var errStub = errors.New("stub failure")

func input(p models.Payload) models.StageInput {
	return models.StageInput{ExecutionID: "exec-1", DocumentID: "doc-1", Payload: p}
}
