package remoteworker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stablegen/gateway/internal/config"
)

// Kind classifies why a remote invocation produced no image.
type Kind string

const (
	KindUnavailable Kind = "worker_unavailable"
	KindTimeout     Kind = "worker_timeout"
	KindGeneration  Kind = "generation_error"
)

// MaxImageSize bounds the artifact a worker may return.
const MaxImageSize = 64 << 20

// Params are the generation parameters forwarded to the worker as-is.
type Params struct {
	Prompt            string  `json:"prompt" msgpack:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty" msgpack:"negative_prompt"`
	Width             int     `json:"width" msgpack:"width"`
	Height            int     `json:"height" msgpack:"height"`
	NumInferenceSteps int     `json:"num_inference_steps" msgpack:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale" msgpack:"guidance_scale"`
}

// Failure describes a failed invocation.
type Failure struct {
	Kind    Kind
	Message string
	Cause   error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Cause)
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Result holds either the artifact bytes or a Failure, never both.
type Result struct {
	Image   []byte
	Failure *Failure
}

func (r Result) OK() bool {
	return r.Failure == nil
}

func Success(image []byte) Result {
	return Result{Image: image}
}

func Fail(kind Kind, message string, cause error) Result {
	return Result{Failure: &Failure{Kind: kind, Message: message, Cause: cause}}
}

// Worker is a stateless remote function that turns Params into one image.
// Implementations must honor ctx cancellation and deadlines.
type Worker interface {
	Generate(ctx context.Context, params Params) Result
}

// Pinger is implemented by workers that can report reachability without
// running a generation.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewWorker(cfg *config.WorkerConfig, logger *zap.Logger) (Worker, error) {
	if cfg == nil {
		return nil, config.ErrWorkerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(cfg.Type) {
	case config.WorkerHTTP:
		return NewHTTPWorker(cfg.URL, WithToken(cfg.Token), WithHTTPLogger(logger))
	case config.WorkerTCP:
		return NewTCPWorker(cfg.Address, logger)
	case config.WorkerPlaceholder:
		return NewPlaceholderWorker(), nil
	}

	return nil, fmt.Errorf("invalid worker type %s", cfg.Type)
}

// contextFailure maps a context ending during a call onto a failure kind.
// Returns nil when ctx is still live.
func contextFailure(ctx context.Context, err error) *Failure {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Failure{Kind: KindTimeout, Message: "worker did not answer before the deadline", Cause: context.DeadlineExceeded}
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return &Failure{Kind: KindTimeout, Message: "request was cancelled while waiting for the worker", Cause: context.Canceled}
	}
	return nil
}

func remaining(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return fallback
}
