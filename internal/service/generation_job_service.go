package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	"github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable/pkg/progress"
)

// ErrQueueUnavailable is returned when a job cannot be queued.
var ErrQueueUnavailable = appErrors.New("QUEUE_UNAVAILABLE", http.StatusServiceUnavailable, "generation queue unavailable")

type timetableRunner interface {
	GenerateCourse(ctx context.Context, req dto.GenerateCourseRequest, recorder progress.Recorder) (*dto.GenerationSummary, error)
	RunWeeklyPlan(ctx context.Context, req dto.WeeklyPlanRequest, tracker *progress.Tracker) (*scheduler.PlanResult, error)
}

type snapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// GenerationJobConfig tunes the worker pool and job retention.
type GenerationJobConfig struct {
	Workers       int
	QueueBuffer   int
	Retention     time.Duration
	PurgeInterval time.Duration
	SnapshotTTL   time.Duration
}

type jobRecord struct {
	kind   string
	result interface{}
}

// GenerationJobService runs course and weekly-plan generation in the background and answers
// status polls from the in-process store, falling back to the snapshot cache.
type GenerationJobService struct {
	runner    timetableRunner
	store     *progress.Store
	cache     snapshotCache
	queue     *jobs.Queue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       GenerationJobConfig

	mu      sync.RWMutex
	records map[string]*jobRecord
}

// NewGenerationJobService wires the job runner. Call Start before submitting.
func NewGenerationJobService(
	runner timetableRunner,
	store *progress.Store,
	cache snapshotCache,
	metrics *MetricsService,
	validate *validator.Validate,
	log *zap.Logger,
	cfg GenerationJobConfig,
) *GenerationJobService {
	if validate == nil {
		validate = validator.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if store == nil {
		store = progress.NewStore(nil)
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 6 * time.Hour
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = 10 * time.Minute
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = time.Hour
	}
	svc := &GenerationJobService{
		runner:    runner,
		store:     store,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    log,
		cfg:       cfg,
		records:   make(map[string]*jobRecord),
	}
	svc.queue = jobs.NewQueue("timetable-generation", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.QueueBuffer,
		Retryable:  isTransient,
		Logger:     log,
	})
	return svc
}

// Start launches the workers and the purge loop. Both stop when ctx is cancelled.
func (s *GenerationJobService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.StartPurge(ctx)
}

// Stop waits for the workers to exit.
func (s *GenerationJobService) Stop() {
	s.queue.Stop()
}

// SubmitCourse queues a single-course generation.
func (s *GenerationJobService) SubmitCourse(ctx context.Context, req dto.GenerateCourseRequest) (*dto.JobAccepted, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return s.submit(ctx, jobs.TypeCourseGeneration, fmt.Sprintf("course %d", req.CourseID), req)
}

// SubmitPlan queues a weekly plan over several courses.
func (s *GenerationJobService) SubmitPlan(ctx context.Context, req dto.WeeklyPlanRequest) (*dto.JobAccepted, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return s.submit(ctx, jobs.TypeWeeklyPlan, fmt.Sprintf("weekly plan of %d course(s)", len(req.CourseIDs)), req)
}

func (s *GenerationJobService) submit(ctx context.Context, kind, label string, payload interface{}) (*dto.JobAccepted, error) {
	tracker := s.store.Create(label)
	s.mu.Lock()
	s.records[tracker.ID()] = &jobRecord{kind: kind}
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: tracker.ID(), Type: kind, Payload: payload}); err != nil {
		tracker.Fail(err.Error())
		s.publish(ctx, tracker.ID())
		return nil, appErrors.Wrap(err, ErrQueueUnavailable.Code, ErrQueueUnavailable.Status, ErrQueueUnavailable.Message)
	}
	s.metrics.SetQueueDepth(s.queue.Len())
	s.publish(ctx, tracker.ID())
	logger.ForJob(s.logger, tracker.ID(), kind).Info("generation job queued", zap.String("label", label), zap.String("request_id", requestid.FromContext(ctx)))
	return &dto.JobAccepted{JobID: tracker.ID(), Kind: kind}, nil
}

// Status returns the job snapshot, from memory when this process owns the job, else from the cache.
func (s *GenerationJobService) Status(ctx context.Context, jobID string) (*dto.JobStatus, error) {
	if status, ok := s.local(jobID); ok {
		return status, nil
	}
	if s.cache == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("job %s not found", jobID))
	}
	var cached dto.JobStatus
	err := s.cache.Get(ctx, repository.JobSnapshotKey(jobID), &cached)
	switch {
	case err == nil:
		s.metrics.RecordCacheOperation(true)
		return &cached, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		s.metrics.RecordCacheOperation(false)
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("job %s not found", jobID))
	default:
		return nil, err
	}
}

// StartPurge drops finished jobs older than the retention on every tick until ctx is done.
func (s *GenerationJobService) StartPurge(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purge(ctx)
		}
	}
}

// purge drops expired trackers and their cached snapshots.
func (s *GenerationJobService) purge(ctx context.Context) int {
	removed := s.store.Purge(s.cfg.Retention)
	if removed == 0 {
		return 0
	}
	var keys []string
	s.mu.Lock()
	for id := range s.records {
		if _, ok := s.store.Get(id); !ok {
			delete(s.records, id)
			keys = append(keys, repository.JobSnapshotKey(id))
		}
	}
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.Delete(ctx, keys...); err != nil {
			s.logger.Sugar().Warnw("failed to drop purged job snapshots", "count", len(keys), "error", err)
		}
	}
	s.logger.Sugar().Infow("finished jobs purged", "count", removed)
	return removed
}

func (s *GenerationJobService) local(jobID string) (*dto.JobStatus, bool) {
	tracker, ok := s.store.Get(jobID)
	if !ok {
		return nil, false
	}
	status := &dto.JobStatus{Snapshot: tracker.Snapshot()}
	s.mu.RLock()
	if rec, ok := s.records[jobID]; ok {
		status.Kind = rec.kind
		status.Result = rec.result
	}
	s.mu.RUnlock()
	return status, true
}

// publish mirrors the current snapshot into the cache; failures only cost cross-instance visibility.
func (s *GenerationJobService) publish(ctx context.Context, jobID string) {
	status, ok := s.local(jobID)
	if !ok || s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, repository.JobSnapshotKey(jobID), status, s.cfg.SnapshotTTL); err != nil {
		s.logger.Sugar().Warnw("failed to cache job snapshot", "job_id", jobID, "error", err)
	}
}

func (s *GenerationJobService) handle(ctx context.Context, job jobs.Job) error {
	tracker, ok := s.store.Get(job.ID)
	if !ok {
		return fmt.Errorf("job %s has no tracker", job.ID)
	}
	s.metrics.SetQueueDepth(s.queue.Len())
	log := logger.ForJob(s.logger, job.ID, job.Type)
	log.Info("generation job started")

	var (
		result  interface{}
		summary string
		err     error
	)
	switch payload := job.Payload.(type) {
	case dto.GenerateCourseRequest:
		var res *dto.GenerationSummary
		if res, err = s.runner.GenerateCourse(ctx, payload, tracker); err == nil {
			result = res
			summary = res.RunLog.Summary
		}
	case dto.WeeklyPlanRequest:
		var plan *scheduler.PlanResult
		if plan, err = s.runner.RunWeeklyPlan(ctx, payload, tracker); plan != nil {
			result = plan
		}
	default:
		err = fmt.Errorf("unsupported payload %T for job type %s", job.Payload, job.Type)
	}

	s.mu.Lock()
	if rec, ok := s.records[job.ID]; ok {
		rec.result = result
	}
	s.mu.Unlock()
	// the planner finishes its own tracker; these calls are no-ops then
	if err != nil {
		tracker.Fail(err.Error())
	} else {
		tracker.Complete(summary)
	}
	s.publish(context.Background(), job.ID)

	if err != nil {
		log.Warn("generation job failed", zap.Error(err))
		return err
	}
	log.Info("generation job finished")
	return nil
}

// isTransient keeps domain and cancellation failures from being retried.
func isTransient(err error) bool {
	return !appErrors.IsDomain(err) && !errors.Is(err, context.Canceled)
}
