package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stablegen/gateway/internal/services/artifactstore"
	"github.com/stablegen/gateway/internal/services/remoteworker"
)

type stubWorker struct {
	calls atomic.Int32
	fn    func(ctx context.Context, params remoteworker.Params) remoteworker.Result
}

func (w *stubWorker) Generate(ctx context.Context, params remoteworker.Params) remoteworker.Result {
	w.calls.Add(1)
	return w.fn(ctx, params)
}

func returning(image []byte) *stubWorker {
	return &stubWorker{fn: func(context.Context, remoteworker.Params) remoteworker.Result {
		return remoteworker.Success(image)
	}}
}

// blocking waits until the call context ends, like a worker that never answers.
func blocking() *stubWorker {
	return &stubWorker{fn: func(ctx context.Context, _ remoteworker.Params) remoteworker.Result {
		<-ctx.Done()
		return remoteworker.Fail(remoteworker.KindTimeout, "worker did not answer", ctx.Err())
	}}
}

type recorderFunc func(ctx context.Context, record Record) error

func (f recorderFunc) RecordGeneration(ctx context.Context, record Record) error {
	return f(ctx, record)
}

type filterFunc func(prompt string) string

func (f filterFunc) Screen(_ context.Context, prompt, _ string) (string, error) {
	return f(prompt), nil
}

type failingStore struct{ artifactstore.Store }

func (failingStore) Put(ctx context.Context, id string, content []byte) error {
	return errors.Join(artifactstore.ErrStorageIO, errors.New("disk full"))
}

func newStore(t *testing.T) *artifactstore.LocalStore {
	t.Helper()
	store, err := artifactstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func countArtifacts(t *testing.T, store *artifactstore.LocalStore) int {
	t.Helper()
	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestGenerateRoundTrip(t *testing.T) {
	stub := bytes.Repeat([]byte{0xAB}, 100)
	store := newStore(t)
	worker := returning(stub)
	service := NewService(worker, store)

	resp, err := service.Generate(context.Background(), NewRequest("a red fox in snow"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(resp.Base64Image)
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	if !bytes.Equal(decoded, stub) {
		t.Errorf("base64 payload differs from worker output")
	}

	stored, err := store.Get(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(stored, stub) {
		t.Errorf("stored artifact differs from worker output")
	}

	if resp.ImageURL != "/images/"+resp.ID+".png" {
		t.Errorf("ImageURL = %q", resp.ImageURL)
	}
	if worker.calls.Load() != 1 {
		t.Errorf("worker called %d times", worker.calls.Load())
	}
}

func TestGenerateForwardsParams(t *testing.T) {
	var got remoteworker.Params
	worker := &stubWorker{fn: func(_ context.Context, params remoteworker.Params) remoteworker.Result {
		got = params
		return remoteworker.Success([]byte("img"))
	}}

	req := Request{
		Prompt:            "castle",
		NegativePrompt:    "blurry",
		Width:             512,
		Height:            768,
		NumInferenceSteps: 50,
		GuidanceScale:     7.5,
	}
	if _, err := NewService(worker, newStore(t)).Generate(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	want := remoteworker.Params{Prompt: "castle", NegativePrompt: "blurry", Width: 512, Height: 768, NumInferenceSteps: 50, GuidanceScale: 7.5}
	if got != want {
		t.Errorf("params = %+v, want %+v", got, want)
	}
}

func TestGenerateRejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		field  string
	}{
		{"empty prompt", func(r *Request) { r.Prompt = "   " }, "prompt"},
		{"zero width", func(r *Request) { r.Width = 0 }, "width"},
		{"width not multiple of 64", func(r *Request) { r.Width = 300 }, "width"},
		{"height too large", func(r *Request) { r.Height = 2048 }, "height"},
		{"height too small", func(r *Request) { r.Height = 192 }, "height"},
		{"zero steps", func(r *Request) { r.NumInferenceSteps = 0 }, "num_inference_steps"},
		{"too many steps", func(r *Request) { r.NumInferenceSteps = 151 }, "num_inference_steps"},
		{"guidance too low", func(r *Request) { r.GuidanceScale = 0.5 }, "guidance_scale"},
		{"guidance too high", func(r *Request) { r.GuidanceScale = 20.5 }, "guidance_scale"},
		{"guidance NaN", func(r *Request) { r.GuidanceScale = math.NaN() }, "guidance_scale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			worker := returning([]byte("img"))

			req := NewRequest("a prompt")
			tt.mutate(&req)

			_, err := NewService(worker, store).Generate(context.Background(), req)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}

			var invalid *InvalidParameterError
			if !errors.As(err, &invalid) || invalid.Field != tt.field {
				t.Errorf("field = %v, want %s", invalid, tt.field)
			}
			if worker.calls.Load() != 0 {
				t.Errorf("worker called %d times", worker.calls.Load())
			}
			if n := countArtifacts(t, store); n != 0 {
				t.Errorf("%d artifacts written", n)
			}
		})
	}
}

func TestRequestBoundsAreInclusive(t *testing.T) {
	for _, req := range []Request{
		{Prompt: "x", Width: 256, Height: 256, NumInferenceSteps: 10, GuidanceScale: 1.0},
		{Prompt: "x", Width: 1024, Height: 1024, NumInferenceSteps: 150, GuidanceScale: 20.0},
	} {
		if err := req.Validate(); err != nil {
			t.Errorf("Validate(%+v) = %v", req, err)
		}
	}
}

func TestGenerateWorkerTimeoutLeavesNoArtifact(t *testing.T) {
	store := newStore(t)
	service := NewService(blocking(), store, WithWorkerTimeout(50*time.Millisecond))

	_, err := service.Generate(context.Background(), NewRequest("slow"))
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}

	var failed *GenerationFailedError
	if !errors.As(err, &failed) || failed.Kind() != remoteworker.KindTimeout {
		t.Errorf("kind = %v, want worker_timeout", err)
	}
	if n := countArtifacts(t, store); n != 0 {
		t.Errorf("%d artifacts written", n)
	}
}

func TestGenerateConcurrentRequestsGetDistinctIDs(t *testing.T) {
	const n = 8
	store := newStore(t)
	service := NewService(returning([]byte("same image")), store)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := service.Generate(context.Background(), NewRequest("identical prompt"))
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			ids[resp.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != n {
		t.Errorf("got %d distinct ids, want %d", len(ids), n)
	}
	if got := countArtifacts(t, store); got != n {
		t.Errorf("got %d artifacts, want %d", got, n)
	}
}

func TestGenerateRetries(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		failures   int
		kind       remoteworker.Kind
		wantCalls  int32
		wantErr    bool
	}{
		{"no retries by default", 0, 1, remoteworker.KindUnavailable, 1, true},
		{"recovers after unavailable", 2, 2, remoteworker.KindUnavailable, 3, false},
		{"gives up after max retries", 1, 5, remoteworker.KindUnavailable, 2, true},
		{"generation errors are not retried", 3, 1, remoteworker.KindGeneration, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			worker := &stubWorker{}
			worker.fn = func(context.Context, remoteworker.Params) remoteworker.Result {
				if int(worker.calls.Load()) <= tt.failures {
					return remoteworker.Fail(tt.kind, "boom", nil)
				}
				return remoteworker.Success([]byte("img"))
			}

			service := NewService(worker, newStore(t), WithMaxRetries(tt.maxRetries), WithRetryBackoff(time.Millisecond))
			_, err := service.Generate(context.Background(), NewRequest("retry me"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if worker.calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", worker.calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestGenerateMaxInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	worker := &stubWorker{fn: func(ctx context.Context, _ remoteworker.Params) remoteworker.Result {
		started <- struct{}{}
		<-release
		return remoteworker.Success([]byte("img"))
	}}
	service := NewService(worker, newStore(t), WithMaxInFlight(1))

	done := make(chan error, 1)
	go func() {
		_, err := service.Generate(context.Background(), NewRequest("first"))
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := service.Generate(ctx, NewRequest("second"))

	var failed *GenerationFailedError
	if !errors.As(err, &failed) || failed.Kind() != remoteworker.KindTimeout {
		t.Errorf("queued request err = %v, want worker_timeout", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first request: %v", err)
	}
	if worker.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", worker.calls.Load())
	}
}

func TestGeneratePromptFilter(t *testing.T) {
	worker := returning([]byte("img"))
	filter := filterFunc(func(prompt string) string {
		if prompt == "forbidden" {
			return "contains disallowed content"
		}
		return ""
	})
	service := NewService(worker, newStore(t), WithPromptFilter(filter))

	_, err := service.Generate(context.Background(), NewRequest("forbidden"))
	var invalid *InvalidParameterError
	if !errors.As(err, &invalid) || invalid.Field != "prompt" {
		t.Fatalf("err = %v, want InvalidParameter on prompt", err)
	}
	if worker.calls.Load() != 0 {
		t.Errorf("worker called for a rejected prompt")
	}

	if _, err := service.Generate(context.Background(), NewRequest("a meadow")); err != nil {
		t.Errorf("allowed prompt: %v", err)
	}
}

func TestGenerateStorageFailure(t *testing.T) {
	service := NewService(returning([]byte("img")), failingStore{})

	_, err := service.Generate(context.Background(), NewRequest("a prompt"))
	if !errors.Is(err, artifactstore.ErrStorageIO) {
		t.Fatalf("err = %v, want ErrStorageIO", err)
	}
}

func TestGenerateRecordsAttempts(t *testing.T) {
	var (
		mu      sync.Mutex
		records []Record
	)
	recorder := recorderFunc(func(_ context.Context, record Record) error {
		mu.Lock()
		defer mu.Unlock()
		records = append(records, record)
		return nil
	})

	ok := NewService(returning([]byte("img")), newStore(t), WithRecorder(recorder), WithIDGenerator(func() string { return "fixed-id" }))
	if _, err := ok.Generate(context.Background(), NewRequest("success")); err != nil {
		t.Fatal(err)
	}

	failing := &stubWorker{fn: func(context.Context, remoteworker.Params) remoteworker.Result {
		return remoteworker.Fail(remoteworker.KindGeneration, "nan latents", nil)
	}}
	bad := NewService(failing, newStore(t), WithRecorder(recorder))
	bad.Generate(context.Background(), NewRequest("failure"))

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != "fixed-id" || records[0].Status != StatusSuccess || records[0].Prompt != "success" {
		t.Errorf("success record = %+v", records[0])
	}
	if records[1].Status != StatusFailed || records[1].ErrorKind != string(remoteworker.KindGeneration) {
		t.Errorf("failure record = %+v", records[1])
	}
}

func TestGenerateRecorderErrorDoesNotFailRequest(t *testing.T) {
	recorder := recorderFunc(func(context.Context, Record) error {
		return errors.New("database is locked")
	})
	service := NewService(returning([]byte("img")), newStore(t), WithRecorder(recorder))

	if _, err := service.Generate(context.Background(), NewRequest("still works")); err != nil {
		t.Errorf("Generate: %v", err)
	}
}
