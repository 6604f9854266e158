package generation

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/stablegen/gateway/internal/metrics"
	"github.com/stablegen/gateway/internal/services/artifactstore"
	"github.com/stablegen/gateway/internal/services/remoteworker"
	"github.com/stablegen/gateway/internal/utils/imageutil"
)

const (
	DefaultWorkerTimeout = 900 * time.Second
	DefaultRetryBackoff  = time.Second

	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Response is the dual-encoded outcome of a successful generation.
type Response struct {
	ID          string
	ImageURL    string
	Base64Image string
	Image       []byte
	Elapsed     time.Duration
}

// PromptFilter screens prompts before they reach the worker. A non-empty
// reason means the prompt is rejected.
type PromptFilter interface {
	Screen(ctx context.Context, prompt, negativePrompt string) (reason string, err error)
}

// Record is one dispatched generation attempt, successful or not.
type Record struct {
	ID                string
	Prompt            string
	NegativePrompt    string
	Width             int
	Height            int
	NumInferenceSteps int
	GuidanceScale     float64
	Status            string
	ErrorKind         string
	Error             string
	Elapsed           time.Duration
	CreatedAt         time.Time
}

type Recorder interface {
	RecordGeneration(ctx context.Context, record Record) error
}

// Service validates requests, dispatches them to the remote worker and
// persists the result. It holds no per-request state.
type Service struct {
	worker        remoteworker.Worker
	store         artifactstore.Store
	logger        *zap.Logger
	filter        PromptFilter
	recorder      Recorder
	slots         *semaphore.Weighted
	workerTimeout time.Duration
	maxRetries    int
	retryBackoff  time.Duration
	newID         func() string
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMaxInFlight bounds concurrent worker calls. Zero leaves them unbounded.
func WithMaxInFlight(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slots = semaphore.NewWeighted(int64(n))
		} else {
			s.slots = nil
		}
	}
}

// WithMaxRetries sets how many times a worker_unavailable failure is retried.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		s.maxRetries = max(n, 0)
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) {
		s.retryBackoff = d
	}
}

func WithWorkerTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.workerTimeout = d
		}
	}
}

func WithPromptFilter(filter PromptFilter) Option {
	return func(s *Service) {
		s.filter = filter
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func NewService(worker remoteworker.Worker, store artifactstore.Store, opts ...Option) *Service {
	s := &Service{
		worker:        worker,
		store:         store,
		logger:        zap.NewNop(),
		workerTimeout: DefaultWorkerTimeout,
		retryBackoff:  DefaultRetryBackoff,
		newID:         uuid.NewString,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ImageURL is the public path an artifact is served from.
func ImageURL(id string) string {
	return "/images/" + artifactstore.FileName(id)
}

// Generate runs one request end to end. Errors satisfy errors.Is with
// ErrInvalidParameter, ErrGenerationFailed or artifactstore.ErrStorageIO.
func (s *Service) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		metrics.GenerationsTotal.WithLabelValues(metrics.StatusInvalid).Inc()
		return nil, err
	}

	if s.filter != nil {
		reason, err := s.filter.Screen(ctx, req.Prompt, req.NegativePrompt)
		if err != nil {
			return nil, fmt.Errorf("prompt safety check failed: %w", err)
		}
		if reason != "" {
			metrics.GenerationsTotal.WithLabelValues(metrics.StatusRejected).Inc()
			s.logger.Info("prompt rejected by safety filter", zap.String("reason", reason))
			return nil, invalidParameter("prompt", "prompt rejected: "+reason)
		}
	}

	id := s.newID()
	start := s.now()
	logger := s.logger.With(zap.String("id", id))
	logger.Info("dispatching generation",
		zap.Int("width", req.Width),
		zap.Int("height", req.Height),
		zap.Int("steps", req.NumInferenceSteps),
	)

	image, err := s.invoke(ctx, logger, req.params())
	elapsed := s.now().Sub(start)
	if err != nil {
		logger.Warn("generation failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		s.record(ctx, id, req, start, elapsed, err)
		return nil, err
	}

	image, err = imageutil.ToPNG(image)
	if err != nil {
		err = &GenerationFailedError{Failure: &remoteworker.Failure{
			Kind:    remoteworker.KindGeneration,
			Message: "failed to normalize worker image",
			Cause:   err,
		}}
		metrics.GenerationsTotal.WithLabelValues(string(remoteworker.KindGeneration)).Inc()
		s.record(ctx, id, req, start, elapsed, err)
		return nil, err
	}

	// the worker already did the expensive part, so keep the artifact even
	// if the caller has gone away
	if err := s.store.Put(context.WithoutCancel(ctx), id, image); err != nil {
		err = fmt.Errorf("failed to store image %s: %w", id, err)
		logger.Error("failed to persist artifact", zap.Error(err))
		metrics.GenerationsTotal.WithLabelValues("storage_error").Inc()
		s.record(ctx, id, req, start, elapsed, err)
		return nil, err
	}

	metrics.GenerationsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	logger.Info("generation completed", zap.Int("bytes", len(image)), zap.Duration("elapsed", elapsed))
	s.record(ctx, id, req, start, elapsed, nil)

	return &Response{
		ID:          id,
		ImageURL:    ImageURL(id),
		Base64Image: base64.StdEncoding.EncodeToString(image),
		Image:       image,
		Elapsed:     elapsed,
	}, nil
}

func (s *Service) invoke(ctx context.Context, logger *zap.Logger, params remoteworker.Params) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.workerTimeout)
	defer cancel()

	if s.slots != nil {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			metrics.GenerationsTotal.WithLabelValues(string(remoteworker.KindTimeout)).Inc()
			return nil, &GenerationFailedError{Failure: &remoteworker.Failure{
				Kind:    remoteworker.KindTimeout,
				Message: "no worker slot became available",
				Cause:   err,
			}}
		}
		defer s.slots.Release(1)
	}

	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	policy := s.retryPolicy()
	for attempt := 0; ; attempt++ {
		start := time.Now()
		result := s.worker.Generate(ctx, params)
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())

		if result.OK() {
			return result.Image, nil
		}

		failure := result.Failure
		if failure.Kind != remoteworker.KindUnavailable || attempt >= s.maxRetries {
			metrics.GenerationsTotal.WithLabelValues(string(failure.Kind)).Inc()
			return nil, &GenerationFailedError{Failure: failure}
		}

		wait := policy.NextBackOff()
		logger.Warn("worker unavailable, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(failure),
		)

		select {
		case <-ctx.Done():
			metrics.GenerationsTotal.WithLabelValues(string(remoteworker.KindTimeout)).Inc()
			return nil, &GenerationFailedError{Failure: &remoteworker.Failure{
				Kind:    remoteworker.KindTimeout,
				Message: "deadline reached while waiting to retry the worker",
				Cause:   ctx.Err(),
			}}
		case <-time.After(wait):
		}
	}
}

// retryPolicy doubles the wait after every unavailable attempt, without
// jitter and without an elapsed-time cap; the worker timeout bounds it.
func (s *Service) retryPolicy() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = s.workerTimeout
	policy.MaxElapsedTime = 0
	policy.Reset()
	return policy
}

func (s *Service) record(ctx context.Context, id string, req Request, start time.Time, elapsed time.Duration, err error) {
	if s.recorder == nil {
		return
	}

	record := Record{
		ID:                id,
		Prompt:            req.Prompt,
		NegativePrompt:    req.NegativePrompt,
		Width:             req.Width,
		Height:            req.Height,
		NumInferenceSteps: req.NumInferenceSteps,
		GuidanceScale:     req.GuidanceScale,
		Status:            StatusSuccess,
		Elapsed:           elapsed,
		CreatedAt:         start,
	}
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		if failed, ok := err.(*GenerationFailedError); ok {
			record.ErrorKind = string(failed.Kind())
		} else {
			record.ErrorKind = "storage_error"
		}
	}

	if err := s.recorder.RecordGeneration(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Warn("failed to record generation", zap.String("id", id), zap.Error(err))
	}
}
