package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/export"
	"github.com/slotwise/booking-api/pkg/jobs"
	"github.com/slotwise/booking-api/pkg/storage"
)

type exportTableBuilder interface {
	ExportTable(ctx context.Context, instructorID string) (export.Table, error)
}

// Export job lifecycle states.
const (
	ExportJobPending   = "pending"
	ExportJobCompleted = "completed"
	ExportJobFailed    = "failed"
)

// ExportJob tracks one queued booking export.
type ExportJob struct {
	ID           string     `json:"id"`
	InstructorID string     `json:"-"`
	Format       string     `json:"format"`
	Status       string     `json:"status"`
	Token        string     `json:"token,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	Error        string     `json:"error,omitempty"`
}

// ExportService renders booking exports off the request path. Jobs run on a
// worker pool, results land on local storage, and downloads are authorized by
// a signed token instead of a session.
type ExportService struct {
	builder exportTableBuilder
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	queue   *jobs.Queue
	logger  *zap.Logger

	mu      sync.RWMutex
	records map[string]*ExportJob
}

// NewExportService constructs an ExportService with its own queue.
func NewExportService(builder exportTableBuilder, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger, workers int) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		builder: builder,
		store:   store,
		signer:  signer,
		logger:  logger,
		records: make(map[string]*ExportJob),
	}
	s.queue = jobs.NewQueue("booking-exports", s.process, jobs.QueueConfig{
		Workers: workers,
		Logger:  logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue registers a pending export and hands it to the queue.
func (s *ExportService) Enqueue(instructorID, format string) (*ExportJob, error) {
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	record := &ExportJob{
		ID:           uuid.NewString(),
		InstructorID: instructorID,
		Format:       format,
		Status:       ExportJobPending,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()

	err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: format, Payload: instructorID})
	if err != nil {
		s.markFailed(record.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return snapshotJob(record), nil
}

// Job returns the state of an export owned by the instructor.
func (s *ExportService) Job(id, instructorID string) (*ExportJob, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok || record.InstructorID != instructorID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return snapshotJob(record), nil
}

// Resolve validates a download token and returns the file path plus a
// client-facing filename.
func (s *ExportService) Resolve(token string) (path, filename string, err error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	s.mu.RLock()
	record, ok := s.records[jobID]
	s.mu.RUnlock()
	if !ok || record.Status != ExportJobCompleted {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "export not available")
	}
	return s.store.Path(relPath), fmt.Sprintf("bookings-%s.%s", record.CreatedAt.Format("20060102"), record.Format), nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	instructorID, _ := job.Payload.(string)

	table, err := s.builder.ExportTable(ctx, instructorID)
	if err != nil {
		s.markFailed(job.ID, err)
		return err
	}

	var payload []byte
	switch job.Type {
	case "pdf":
		payload, err = export.RenderPDF(table, "Bookings")
	default:
		payload, err = export.RenderCSV(table)
	}
	if err != nil {
		s.markFailed(job.ID, err)
		return err
	}

	filename := fmt.Sprintf("%s.%s", job.ID, job.Type)
	if _, err := s.store.Save(filename, payload); err != nil {
		s.markFailed(job.ID, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, filename)
	if err != nil {
		s.markFailed(job.ID, err)
		return err
	}

	s.mu.Lock()
	if record, ok := s.records[job.ID]; ok {
		record.Status = ExportJobCompleted
		record.Token = token
		record.ExpiresAt = &expiresAt
		record.Error = ""
	}
	s.mu.Unlock()

	s.logger.Sugar().Infow("export completed", "job_id", job.ID, "format", job.Type)
	return nil
}

func (s *ExportService) markFailed(id string, err error) {
	s.mu.Lock()
	if record, ok := s.records[id]; ok {
		record.Status = ExportJobFailed
		record.Error = err.Error()
	}
	s.mu.Unlock()
}

func snapshotJob(record *ExportJob) *ExportJob {
	copied := *record
	return &copied
}
